package rules

import (
	"encoding/json"
	"strings"
)

// CalculationRule is the stored form of a rule.
type CalculationRule struct {
	ID          uint   `gorm:"column:id;primaryKey"`
	Category    string `gorm:"column:category;size:100;uniqueIndex:idx_rule_category_key"`
	Key         string `gorm:"column:key;size:150;uniqueIndex:idx_rule_category_key"`
	Operation   string `gorm:"column:operation;size:10"`
	Taxes       *int   `gorm:"column:taxes"`
	Notes       string `gorm:"column:notes;type:text"`
	Formula     string `gorm:"column:formula;type:text"`
	SourceTable string `gorm:"column:source_table;size:150"`
}

// TableName overrides the table name.
func (CalculationRule) TableName() string {
	return "calculation_rules"
}

// Rule is the in-memory view of a calculation rule.
type Rule struct {
	Category    string
	Key         string
	Operation   Operation
	Taxes       *int
	Notes       string
	Formulas    map[string]string
	SourceTable string
}

// Formula returns the expression configured for an output field.
func (r *Rule) Formula(field string) (string, bool) {
	if r == nil || r.Formulas == nil {
		return "", false
	}
	f, ok := r.Formulas[field]
	if !ok || strings.TrimSpace(f) == "" {
		return "", false
	}
	return f, true
}

// TaxPercent returns the configured tax and whether one is set.
func (r *Rule) TaxPercent() (int, bool) {
	if r == nil || r.Taxes == nil {
		return 0, false
	}
	return *r.Taxes, true
}

// ParseFormulas decodes a formula document. A JSON object maps output fields to
// expressions; any other non-empty text is one expression applied to every field
// listed in defaults.
func ParseFormulas(doc string, defaults ...string) map[string]string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}
	if strings.HasPrefix(doc, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(doc), &m); err == nil {
			return m
		}
		return nil
	}
	m := make(map[string]string, len(defaults))
	for _, field := range defaults {
		m[field] = doc
	}
	return m
}

func ruleKey(category, key string) string {
	return strings.ToLower(strings.TrimSpace(category)) + "\x00" + strings.TrimSpace(key)
}
