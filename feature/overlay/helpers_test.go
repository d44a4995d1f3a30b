package overlay

import (
	"context"
	"strings"
	"sync"
	"testing"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/expr"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRules struct {
	mu    sync.Mutex
	rules map[string]*rules.Rule
	set   map[string]rules.Operation
	calls int
}

func newFakeRules(rs ...*rules.Rule) *fakeRules {
	f := &fakeRules{rules: make(map[string]*rules.Rule), set: make(map[string]rules.Operation)}
	for _, r := range rs {
		f.rules[fakeKey(r.Category, r.Key)] = r
	}
	return f
}

func fakeKey(cat, key string) string {
	return strings.ToLower(strings.TrimSpace(cat)) + "/" + strings.TrimSpace(key)
}

func (f *fakeRules) Get(_ context.Context, cat, key string) (*rules.Rule, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[fakeKey(cat, key)]
	return r, ok
}

func (f *fakeRules) SetOperation(_ context.Context, cat, key string, op rules.Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.set[fakeKey(cat, key)] = op
	return nil
}

func taxRule(cat, key string, tax int) *rules.Rule {
	return &rules.Rule{Category: cat, Key: key, Taxes: &tax}
}

func formulaRule(cat, key, doc string) *rules.Rule {
	return &rules.Rule{
		Category: cat, Key: key,
		Formulas: rules.ParseFormulas(doc, catalog.FieldBuyProfit, catalog.FieldSellProfit),
	}
}

func mustRows(t *testing.T, doc string) []catalog.Row {
	t.Helper()
	rows, err := catalog.ParseRows([]byte(doc))
	require.NoError(t, err)
	return rows
}

func detail(t *testing.T, feature, key, doc string) *catalog.Table {
	return &catalog.Table{
		Target: catalog.Target{Kind: catalog.KindDetail, Category: feature, Key: key},
		Name:   key,
		Rows:   mustRows(t, doc),
	}
}

func mainTable(t *testing.T, page, name, doc string) *catalog.Table {
	return &catalog.Table{
		Target: catalog.Target{Kind: catalog.KindMain, Category: page, Key: name},
		Name:   name,
		Rows:   mustRows(t, doc),
	}
}

// entry prices an item identically on every tier.
func entry(buy, sell int64) pricing.PriceEntry {
	return pricing.PriceEntry{
		BuyFast: &buy, SellFast: &sell,
		BuyHourly: &buy, SellHourly: &sell,
		BuyDaily: &buy, SellDaily: &sell,
	}
}

func withVendor(e pricing.PriceEntry, vendor int64) pricing.PriceEntry {
	e.VendorValue = &vendor
	return e
}

func newTestContext(tables []*catalog.Table, entries map[int64]pricing.PriceEntry, rs RuleSource, depth int) *runContext {
	return newRunContext("test-run", tables, entries, rs, expr.NewCache(), depth, newRunStats(10), zap.NewNop())
}

func computeTable(t *testing.T, rc *runContext, tier pricing.Tier, table *catalog.Table) []catalog.Row {
	t.Helper()
	ctx := context.Background()
	tc := newTableContext(ctx, rc, tier, table.Target, zap.NewNop())
	rows := catalog.CloneRows(table.Rows)
	for i := range rows {
		tc.computeRow(ctx, &rows[i])
	}
	return applyTotal(rows, tc.decideOperation(ctx, rows))
}

func profit(t *testing.T, row catalog.Row) (int64, int64) {
	t.Helper()
	require.NotNil(t, row.BuyProfit, "buy profit of %q", row.NameValue())
	require.NotNil(t, row.SellProfit, "sell profit of %q", row.NameValue())
	return *row.BuyProfit, *row.SellProfit
}
