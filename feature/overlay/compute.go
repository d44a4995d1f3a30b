package overlay

import (
	"context"
	"math"
	"strings"

	"overlay-engine/core/utils"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/expr"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"go.uber.org/zap"
)

// formulaFields are the outputs a formula computes.
var formulaFields = [2]string{catalog.FieldBuyProfit, catalog.FieldSellProfit}

// tableContext is what the row computer knows about the table being computed.
type tableContext struct {
	rc     *runContext
	tier   pricing.Tier
	target catalog.Target
	rule   *rules.Rule
	logger *zap.Logger
}

func newTableContext(ctx context.Context, rc *runContext, tier pricing.Tier, target catalog.Target, logger *zap.Logger) *tableContext {
	rule, _ := rc.rules.Get(ctx, target.Category, target.Key)
	return &tableContext{rc: rc, tier: tier, target: target, rule: rule, logger: logger}
}

// computeRow writes the profit fields of one row in place. TOTAL rows are left to
// the aggregation step. Bare rows without an item id carry no profit.
func (tc *tableContext) computeRow(ctx context.Context, row *catalog.Row) {
	if row.IsTotal() {
		return
	}

	var buy, sell float64
	kind := row.Kind()
	switch {
	case row.ItemID() == catalog.CoinID:
		buy = math.Floor(row.Quantity())
		sell = buy
	case kind == catalog.RefComposite:
		buy, sell = tc.composite(ctx, row)
	case kind == catalog.RefLeaf && row.ItemID() > 0:
		p := tc.rc.leafNet(tc.tier, row.ItemID(), tc.rowTax(ctx, row))
		buy, sell = p.buy, p.sell
	case kind == catalog.RefLeaf && row.CategoryValue() == "":
		row.BuyProfit, row.SellProfit = nil, nil
		row.BuyProfitHr, row.SellProfitHr = nil, nil
		return
	default:
		buy, sell = tc.formula(ctx, row)
	}

	row.BuyProfit = catalog.Ptr(utils.ClampInt32(buy))
	row.SellProfit = catalog.Ptr(utils.ClampInt32(sell))

	if id := row.ItemID(); id > 0 {
		if m, ok := tc.rc.meta[id]; ok {
			if m.image != nil {
				row.Image = catalog.Ptr(*m.image)
			}
			if m.rarity != nil {
				row.Rarity = catalog.Ptr(*m.rarity)
			}
		}
	}

	if tc.target.Kind == catalog.KindMain {
		if d := row.DurationHours(); d > 0 {
			row.BuyProfitHr = catalog.Ptr(utils.ClampInt32(buy / d))
			row.SellProfitHr = catalog.Ptr(utils.ClampInt32(sell / d))
		}
	}
}

// composite prices a row by the expected value of the table it references.
// Detail rows scale by their quantity; main rows count one unit.
func (tc *tableContext) composite(ctx context.Context, row *catalog.Row) (float64, float64) {
	ev := tc.rc.expectedValue(tc.tier, row.KeyValue(), tc.compositeTax(ctx, row))

	qty := 1.0
	if tc.target.Kind == catalog.KindDetail {
		qty = row.Quantity()
	}
	buy := math.Floor(ev.buy * qty)
	sell := math.Floor(ev.sell * qty)
	if buy < 1 && sell < 1 {
		tc.rc.stats.belowCutoff.Add(1)
		tc.logger.Debug("Reference below cutoff",
			zap.String("table", tc.target.String()),
			zap.String("reference", row.KeyValue()))
		return 0, 0
	}
	return buy, sell
}

// formula evaluates the row's configured expressions. Any output without a
// usable expression is zero and the row is reported as a problem.
func (tc *tableContext) formula(ctx context.Context, row *catalog.Row) (float64, float64) {
	cat, key := row.CategoryValue(), row.KeyValue()
	rule, _ := tc.rc.rules.Get(ctx, cat, key)

	evKey := key
	if row.Kind() == catalog.RefInternal && rule != nil && rule.SourceTable != "" {
		evKey = rule.SourceTable
	}
	bindings := expr.Bindings{
		ID:       row.ItemID(),
		Qty:      row.Quantity(),
		Taxes:    tc.rowTax(ctx, row),
		Category: cat,
		Key:      evKey,
		Name:     row.NameValue(),
	}
	env := formulaEnv{rc: tc.rc, tier: tc.tier}

	var values [2]float64
	var missing []string
	for i, field := range formulaFields {
		src, ok := rule.Formula(field)
		if !ok {
			missing = append(missing, field)
			continue
		}
		prog, err := tc.rc.programs.Compile(cat, key, field, src)
		if err != nil {
			tc.logger.Debug("Formula does not compile", zap.String("field", field), zap.Error(err))
			missing = append(missing, field)
			continue
		}
		v, err := prog.Eval(env, bindings)
		if err != nil {
			tc.logger.Debug("Formula failed", zap.String("field", field), zap.Error(err))
			missing = append(missing, field)
			continue
		}
		values[i] = math.Floor(v)
	}

	if len(missing) > 0 {
		tc.rc.stats.missingFormulas.Add(1)
		tc.rc.stats.problem("%s %s row %q (%s/%s): no usable formula for %s",
			tc.tier, tc.target, row.NameValue(), cat, key, strings.Join(missing, ","))
	}
	return values[0], values[1]
}

// rowTax is the tax applied to the row's own prices. Reference rows are taxed at
// the leaves they reference, so they carry none themselves.
func (tc *tableContext) rowTax(ctx context.Context, row *catalog.Row) float64 {
	cat, key := row.CategoryValue(), row.KeyValue()
	switch {
	case strings.EqualFold(cat, catalog.CategoryNegative), strings.EqualFold(cat, catalog.CategoryInternal):
		return 0
	case cat != "" && key != "":
		return 0
	}
	return tc.ruleTax(ctx, cat, key)
}

// compositeTax is the tax a composite row's expected value is computed at.
func (tc *tableContext) compositeTax(ctx context.Context, row *catalog.Row) float64 {
	return tc.ruleTax(ctx, row.CategoryValue(), row.KeyValue())
}

// ruleTax falls back from the (category, key) rule to the table rule to the default.
func (tc *tableContext) ruleTax(ctx context.Context, cat, key string) float64 {
	if cat != "" || key != "" {
		if rule, ok := tc.rc.rules.Get(ctx, cat, key); ok {
			if t, set := rule.TaxPercent(); set {
				return float64(t)
			}
		}
	}
	if t, set := tc.rule.TaxPercent(); set {
		return float64(t)
	}
	return pricing.DefaultTaxPercent
}
