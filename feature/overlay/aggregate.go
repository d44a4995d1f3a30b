package overlay

import (
	"context"
	"math"
	"strconv"
	"strings"

	"overlay-engine/core/utils"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/rules"

	"go.uber.org/zap"
)

// datasetsStatic is the Datasets hint of references that are alternatives.
const datasetsStatic = "static"

// inferOperation picks the aggregation of a table from its computed rows. It
// returns a non-empty note when the choice deserves a warning.
func inferOperation(rows []catalog.Row) (rules.Operation, string) {
	var composite, static, numeric int
	for i := range rows {
		row := &rows[i]
		if row.IsTotal() {
			continue
		}
		switch row.Kind() {
		case catalog.RefInternal:
			return rules.OpMax, ""
		case catalog.RefComposite:
			composite++
			hint := row.DatasetsHint()
			if strings.EqualFold(hint, datasetsStatic) {
				static++
			} else if n, err := strconv.ParseFloat(hint, 64); err == nil && n != 0 {
				numeric++
			}
		}
	}

	switch {
	case composite == 0:
		return rules.OpSum, ""
	case static > 0 && numeric > 0:
		return rules.OpMax, "mixed Datasets hints"
	case static > 0:
		return rules.OpMax, ""
	case numeric > 0:
		return rules.OpSum, ""
	}
	return rules.OpSum, "no usable Datasets hint"
}

// decideOperation returns the table's aggregation. INTERNAL rows always force
// MAX. Otherwise AVG and MIN are only ever set by hand and win over inference;
// SUM and MAX are re-inferred every run and the result is stored once per table
// and run.
func (tc *tableContext) decideOperation(ctx context.Context, rows []catalog.Row) rules.Operation {
	manual := tc.rule != nil && (tc.rule.Operation == rules.OpAvg || tc.rule.Operation == rules.OpMin)
	if manual && !hasInternal(rows) {
		return tc.rule.Operation
	}

	op, note := inferOperation(rows)
	if note != "" {
		tc.logger.Warn("Aggregation inferred with fallback",
			zap.String("table", tc.target.String()),
			zap.String("operation", op.String()),
			zap.String("reason", note))
	}

	if _, done := tc.rc.persisted.LoadOrStore(tc.target, struct{}{}); !done {
		if tc.rule == nil || tc.rule.Operation != op {
			if err := tc.rc.rules.SetOperation(ctx, tc.target.Category, tc.target.Key, op); err != nil {
				tc.logger.Warn("Failed to store discovered operation",
					zap.String("table", tc.target.String()),
					zap.Error(err))
			}
		}
	}
	return op
}

func hasInternal(rows []catalog.Row) bool {
	for i := range rows {
		if !rows[i].IsTotal() && rows[i].Kind() == catalog.RefInternal {
			return true
		}
	}
	return false
}

// aggregate folds values with op. An empty input aggregates to 0.
func aggregate(op rules.Operation, values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	switch op {
	case rules.OpMax:
		return values[bestIndex(values, func(a, b int64) bool { return a > b })]
	case rules.OpMin:
		return values[bestIndex(values, func(a, b int64) bool { return a < b })]
	case rules.OpAvg:
		var sum float64
		for _, v := range values {
			sum += float64(v)
		}
		return utils.ClampInt32(math.Floor(sum / float64(len(values))))
	default:
		var sum float64
		for _, v := range values {
			sum += float64(v)
		}
		return utils.ClampInt32(sum)
	}
}

// bestIndex returns the first index whose value beats every other.
func bestIndex(values []int64, better func(a, b int64) bool) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if better(values[i], values[best]) {
			best = i
		}
	}
	return best
}

type column struct {
	values []int64
	names  []string
}

func (c *column) add(v *int64, name string) {
	if v == nil {
		return
	}
	c.values = append(c.values, *v)
	c.names = append(c.names, name)
}

// applyTotal updates the table's TOTAL row in place, or appends one, with the
// aggregate of every other row. Under MAX the names of the best rows are
// attached; any other operation clears them.
func applyTotal(rows []catalog.Row, op rules.Operation) []catalog.Row {
	totalIdx := -1
	var buy, sell, buyHr, sellHr column
	for i := range rows {
		row := &rows[i]
		if row.IsTotal() {
			if totalIdx < 0 {
				totalIdx = i
			}
			continue
		}
		name := row.NameValue()
		buy.add(row.BuyProfit, name)
		sell.add(row.SellProfit, name)
		buyHr.add(row.BuyProfitHr, name)
		sellHr.add(row.SellProfitHr, name)
	}

	if totalIdx < 0 {
		rows = append(rows, catalog.Row{Name: catalog.Ptr(catalog.TotalName)})
		totalIdx = len(rows) - 1
	}
	total := &rows[totalIdx]

	total.BuyProfit = catalog.Ptr(aggregate(op, buy.values))
	total.SellProfit = catalog.Ptr(aggregate(op, sell.values))
	if len(buyHr.values) > 0 {
		total.BuyProfitHr = catalog.Ptr(aggregate(op, buyHr.values))
	}
	if len(sellHr.values) > 0 {
		total.SellProfitHr = catalog.Ptr(aggregate(op, sellHr.values))
	}

	total.BestBuy, total.BestSell = nil, nil
	if op == rules.OpMax {
		total.BestBuy = bestName(buy)
		total.BestSell = bestName(sell)
	}
	return rows
}

func bestName(c column) *string {
	if len(c.values) == 0 {
		return nil
	}
	return catalog.Ptr(c.names[bestIndex(c.values, func(a, b int64) bool { return a > b })])
}
