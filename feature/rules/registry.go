package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"overlay-engine/feature/catalog"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Output fields a bare formula document applies to.
var defaultFormulaFields = []string{catalog.FieldBuyProfit, catalog.FieldSellProfit}

// Registry is the read-mostly rule snapshot keyed by (category, key).
// Categories match case-insensitively.
type Registry struct {
	db     *gorm.DB
	logger *zap.Logger

	mu     sync.RWMutex
	rules  map[string]*Rule
	loaded bool
	sf     singleflight.Group
}

// NewRegistry creates a rule registry backed by db.
func NewRegistry(db *gorm.DB, logger *zap.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: logger,
		rules:  make(map[string]*Rule),
	}
}

// Migrate creates the rules table when missing.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&CalculationRule{})
}

// Preload replaces the snapshot with every stored rule.
func (r *Registry) Preload(ctx context.Context) error {
	_, err, _ := r.sf.Do("preload", func() (interface{}, error) {
		var stored []CalculationRule
		if err := r.db.WithContext(ctx).Find(&stored).Error; err != nil {
			return nil, fmt.Errorf("failed to load calculation rules: %w", err)
		}

		next := make(map[string]*Rule, len(stored))
		for _, s := range stored {
			op, ok := ParseOperation(s.Operation)
			if !ok {
				r.logger.Warn("Unknown rule operation ignored",
					zap.String("category", s.Category),
					zap.String("key", s.Key),
					zap.String("operation", s.Operation))
			}
			next[ruleKey(s.Category, s.Key)] = &Rule{
				Category:    s.Category,
				Key:         s.Key,
				Operation:   op,
				Taxes:       s.Taxes,
				Notes:       s.Notes,
				Formulas:    ParseFormulas(s.Formula, defaultFormulaFields...),
				SourceTable: strings.TrimSpace(s.SourceTable),
			}
		}

		r.mu.Lock()
		r.rules = next
		r.loaded = true
		r.mu.Unlock()

		r.logger.Debug("Calculation rules preloaded", zap.Int("count", len(next)))
		return nil, nil
	})
	return err
}

// Get returns the rule for (category, key). A registry that was never preloaded
// preloads on first use.
func (r *Registry) Get(ctx context.Context, category, key string) (*Rule, bool) {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()

	if !loaded {
		if err := r.Preload(ctx); err != nil {
			r.logger.Warn("Lazy rule preload failed", zap.Error(err))
			return nil, false
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[ruleKey(category, key)]
	return rule, ok
}

// All returns the current snapshot.
func (r *Registry) All() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}

// SetOperation persists a discovered aggregation operation for (category, key).
// The in-memory snapshot is not updated; the next Preload picks it up.
func (r *Registry) SetOperation(ctx context.Context, category, key string, op Operation) error {
	db := r.db.WithContext(ctx)

	var existing CalculationRule
	err := db.Where("LOWER(category) = ? AND `key` = ?",
		strings.ToLower(strings.TrimSpace(category)), strings.TrimSpace(key)).
		Take(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		created := CalculationRule{
			Category:  strings.TrimSpace(category),
			Key:       strings.TrimSpace(key),
			Operation: op.String(),
		}
		if err := db.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create rule %s/%s: %w", category, key, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up rule %s/%s: %w", category, key, err)
	}

	if existing.Operation == op.String() {
		return nil
	}
	if err := db.Model(&CalculationRule{}).Where("id = ?", existing.ID).
		Update("operation", op.String()).Error; err != nil {
		return fmt.Errorf("failed to update rule %s/%s: %w", category, key, err)
	}
	return nil
}
