package catalog

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DetailTable is a base table keyed by feature and key.
type DetailTable struct {
	ID      uint   `gorm:"column:id;primaryKey"`
	Feature string `gorm:"column:feature;size:100;uniqueIndex:idx_detail_feature_key"`
	Key     string `gorm:"column:key;size:150;uniqueIndex:idx_detail_feature_key"`
	Name    string `gorm:"column:name;size:255"`
	Rows    string `gorm:"column:rows;type:longtext"`
}

// TableName overrides the table name.
func (DetailTable) TableName() string {
	return "detail_tables"
}

// MainTable is a base table keyed by page and name.
type MainTable struct {
	ID   uint   `gorm:"column:id;primaryKey"`
	Page string `gorm:"column:page;size:100;uniqueIndex:idx_main_page_name"`
	Name string `gorm:"column:name;size:150;uniqueIndex:idx_main_page_name"`
	Rows string `gorm:"column:rows;type:longtext"`
}

// TableName overrides the table name.
func (MainTable) TableName() string {
	return "main_tables"
}

// Document is one stored, still serialized, base table.
type Document struct {
	Target Target
	Name   string
	Body   []byte
}

// Repository reads the base tables written by the import pipeline.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the base tables when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DetailTable{}, &MainTable{})
}

// LoadAll returns every base table, detail tables first, each ordered by key.
func (r *Repository) LoadAll(ctx context.Context) ([]Document, error) {
	var details []DetailTable
	if err := r.db.WithContext(ctx).Order("feature, `key`").Find(&details).Error; err != nil {
		return nil, fmt.Errorf("failed to load detail tables: %w", err)
	}

	var mains []MainTable
	if err := r.db.WithContext(ctx).Order("page, name").Find(&mains).Error; err != nil {
		return nil, fmt.Errorf("failed to load main tables: %w", err)
	}

	docs := make([]Document, 0, len(details)+len(mains))
	for _, d := range details {
		docs = append(docs, Document{
			Target: Target{Kind: KindDetail, Category: d.Feature, Key: d.Key},
			Name:   d.Name,
			Body:   []byte(d.Rows),
		})
	}
	for _, m := range mains {
		docs = append(docs, Document{
			Target: Target{Kind: KindMain, Category: m.Page, Key: m.Name},
			Name:   m.Name,
			Body:   []byte(m.Rows),
		})
	}
	return docs, nil
}
