package overlay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no overlay is stored for a table and tier.
var ErrNotFound = errors.New("overlay not found")

// Record is the computed row document of one table at one tier.
type Record struct {
	Target catalog.Target
	Tier   pricing.Tier
	Body   []byte
}

// Hash is the content hash used to skip unchanged writes.
func (r Record) Hash() string {
	sum := sha256.Sum256(r.Body)
	return hex.EncodeToString(sum[:])
}

func (r Record) id() string {
	return r.Target.String() + "@" + r.Tier.String()
}

// Store persists overlays.
type Store interface {
	// Upsert fully replaces the overlays of one kind and returns the records that
	// were actually written. Records equal to the stored content are skipped.
	Upsert(ctx context.Context, kind catalog.Kind, records []Record) ([]Record, error)
	// Get returns one stored overlay, or ErrNotFound.
	Get(ctx context.Context, target catalog.Target, tier pricing.Tier) (*Record, error)
}

// DetailOverlay is the stored overlay of a detail table.
type DetailOverlay struct {
	ID          uint      `gorm:"column:id;primaryKey"`
	Feature     string    `gorm:"column:feature;size:100;uniqueIndex:idx_detail_overlay"`
	Key         string    `gorm:"column:key;size:150;uniqueIndex:idx_detail_overlay"`
	Tier        string    `gorm:"column:tier;size:10;uniqueIndex:idx_detail_overlay"`
	Rows        string    `gorm:"column:rows;type:longtext"`
	ContentHash string    `gorm:"column:content_hash;size:64"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (DetailOverlay) TableName() string {
	return "detail_overlays"
}

// MainOverlay is the stored overlay of a main table.
type MainOverlay struct {
	ID          uint      `gorm:"column:id;primaryKey"`
	Page        string    `gorm:"column:page;size:100;uniqueIndex:idx_main_overlay"`
	Name        string    `gorm:"column:name;size:150;uniqueIndex:idx_main_overlay"`
	Tier        string    `gorm:"column:tier;size:10;uniqueIndex:idx_main_overlay"`
	Rows        string    `gorm:"column:rows;type:longtext"`
	ContentHash string    `gorm:"column:content_hash;size:64"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName overrides the table name.
func (MainOverlay) TableName() string {
	return "main_overlays"
}

// Migrate creates the overlay tables when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DetailOverlay{}, &MainOverlay{})
}

// GormStore is the relational overlay store.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates an overlay store backed by db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Upsert implements Store.
func (s *GormStore) Upsert(ctx context.Context, kind catalog.Kind, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	stored, err := s.hashes(ctx, kind, records)
	if err != nil {
		return nil, err
	}

	var changed []Record
	for _, r := range records {
		if stored[r.id()] != r.Hash() {
			changed = append(changed, r)
		}
	}
	if len(changed) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	db := s.db.WithContext(ctx)
	switch kind {
	case catalog.KindDetail:
		rows := make([]DetailOverlay, len(changed))
		for i, r := range changed {
			rows[i] = DetailOverlay{
				Feature: r.Target.Category, Key: r.Target.Key, Tier: r.Tier.String(),
				Rows: string(r.Body), ContentHash: r.Hash(), UpdatedAt: now,
			}
		}
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "feature"}, {Name: "key"}, {Name: "tier"}},
			DoUpdates: clause.AssignmentColumns([]string{"rows", "content_hash", "updated_at"}),
		}).Create(&rows).Error
	case catalog.KindMain:
		rows := make([]MainOverlay, len(changed))
		for i, r := range changed {
			rows[i] = MainOverlay{
				Page: r.Target.Category, Name: r.Target.Key, Tier: r.Tier.String(),
				Rows: string(r.Body), ContentHash: r.Hash(), UpdatedAt: now,
			}
		}
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page"}, {Name: "name"}, {Name: "tier"}},
			DoUpdates: clause.AssignmentColumns([]string{"rows", "content_hash", "updated_at"}),
		}).Create(&rows).Error
	default:
		return nil, fmt.Errorf("unknown overlay kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %d %s overlays: %w", len(changed), kind, err)
	}
	return changed, nil
}

// hashes returns the stored content hash of every record that has one.
func (s *GormStore) hashes(ctx context.Context, kind catalog.Kind, records []Record) (map[string]string, error) {
	keys := make([]string, 0, len(records))
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Target.Key] {
			seen[r.Target.Key] = true
			keys = append(keys, r.Target.Key)
		}
	}

	out := make(map[string]string)
	db := s.db.WithContext(ctx)
	switch kind {
	case catalog.KindDetail:
		var rows []DetailOverlay
		if err := db.Select("feature", "key", "tier", "content_hash").Where("`key` IN ?", keys).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load overlay hashes: %w", err)
		}
		for _, r := range rows {
			out[overlayID(catalog.KindDetail, r.Feature, r.Key, r.Tier)] = r.ContentHash
		}
	case catalog.KindMain:
		var rows []MainOverlay
		if err := db.Select("page", "name", "tier", "content_hash").Where("name IN ?", keys).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load overlay hashes: %w", err)
		}
		for _, r := range rows {
			out[overlayID(catalog.KindMain, r.Page, r.Name, r.Tier)] = r.ContentHash
		}
	default:
		return nil, fmt.Errorf("unknown overlay kind %q", kind)
	}
	return out, nil
}

func overlayID(kind catalog.Kind, category, key, tier string) string {
	return catalog.Target{Kind: kind, Category: category, Key: key}.String() + "@" + tier
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, target catalog.Target, tier pricing.Tier) (*Record, error) {
	db := s.db.WithContext(ctx)
	var body string
	var err error
	switch target.Kind {
	case catalog.KindDetail:
		var row DetailOverlay
		err = db.Where("feature = ? AND `key` = ? AND tier = ?", target.Category, target.Key, tier.String()).Take(&row).Error
		body = row.Rows
	case catalog.KindMain:
		var row MainOverlay
		err = db.Where("page = ? AND name = ? AND tier = ?", target.Category, target.Key, tier.String()).Take(&row).Error
		body = row.Rows
	default:
		return nil, fmt.Errorf("unknown overlay kind %q", target.Kind)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load overlay %s: %w", target, err)
	}
	return &Record{Target: target, Tier: tier, Body: []byte(body)}, nil
}
