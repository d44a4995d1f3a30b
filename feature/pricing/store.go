package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// loadChunk bounds the size of IN (...) lists.
const loadChunk = 500

// Update is one item's refresh result. Only the tiers listed in Tiers are written;
// the fast tier is always part of a refresh.
type Update struct {
	ItemID   int64
	Tiers    []Tier
	Buy      int64
	Sell     int64
	Activity int64
	At       time.Time

	// Metadata is written only when the item's metadata was fetched.
	Metadata *Metadata
}

// Metadata is the vendor/image/rarity part of an item.
type Metadata struct {
	VendorValue  int64
	Image        string
	Rarity       string
	AccountBound bool
}

// Store persists the price tier ladder.
type Store struct {
	db *gorm.DB
}

// NewStore creates a price tier store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the price table when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&PriceEntry{})
}

// LoadAll returns every stored entry.
func (s *Store) LoadAll(ctx context.Context) ([]PriceEntry, error) {
	var entries []PriceEntry
	if err := s.db.WithContext(ctx).Order("item_id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load price entries: %w", err)
	}
	return entries, nil
}

// Load returns the entries of the given ids, keyed by id.
func (s *Store) Load(ctx context.Context, ids []int64) (map[int64]PriceEntry, error) {
	out := make(map[int64]PriceEntry, len(ids))
	for start := 0; start < len(ids); start += loadChunk {
		end := min(start+loadChunk, len(ids))
		var chunk []PriceEntry
		if err := s.db.WithContext(ctx).Where("item_id IN ?", ids[start:end]).Find(&chunk).Error; err != nil {
			return nil, fmt.Errorf("failed to load price entries: %w", err)
		}
		for _, e := range chunk {
			out[e.ItemID] = e
		}
	}
	return out, nil
}

// Apply writes a batch of refresh results. Items that update the same column set
// share one multi-row upsert; a tier absent from an item's Tiers keeps its stored
// values.
func (s *Store) Apply(ctx context.Context, updates []Update) error {
	groups := make(map[string][]Update)
	var order []string
	for _, u := range updates {
		sig := strings.Join(updateColumns(u), ",")
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], u)
	}

	for _, sig := range order {
		group := groups[sig]
		rows := make([]PriceEntry, len(group))
		for i, u := range group {
			rows[i] = u.entry()
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns(strings.Split(sig, ",")),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to upsert %d price entries: %w", len(rows), err)
		}
	}
	return nil
}

func (u Update) entry() PriceEntry {
	e := PriceEntry{ItemID: u.ItemID, Activity: u.Activity}
	for _, t := range u.Tiers {
		e.setTier(t, u.Buy, u.Sell, u.At)
	}
	if m := u.Metadata; m != nil {
		v, img, rar := m.VendorValue, m.Image, m.Rarity
		e.VendorValue, e.Image, e.Rarity = &v, &img, &rar
		e.AccountBound = m.AccountBound
	}
	return e
}

func updateColumns(u Update) []string {
	tiers := append([]Tier(nil), u.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	cols := []string{"activity"}
	seen := make(map[Tier]bool)
	for _, t := range tiers {
		if seen[t] {
			continue
		}
		seen[t] = true
		cols = append(cols, tierColumns(t)...)
	}
	if u.Metadata != nil {
		cols = append(cols, "vendor_value", "image", "rarity", "account_bound")
	}
	return cols
}

// Seed inserts an empty entry for every id not tracked yet and returns the number
// of ids submitted. Existing entries are left untouched.
func (s *Store) Seed(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	for start := 0; start < len(ids); start += loadChunk {
		end := min(start+loadChunk, len(ids))
		rows := make([]PriceEntry, 0, end-start)
		for _, id := range ids[start:end] {
			rows = append(rows, PriceEntry{ItemID: id})
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
		if err != nil {
			return 0, fmt.Errorf("failed to seed price entries: %w", err)
		}
	}
	return len(ids), nil
}
