package overlay

import (
	"context"
	"testing"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func profitRows(t *testing.T) []catalog.Row {
	return mustRows(t, `[
		{"Name":"Low","TPBuyProfit":10,"TPSellProfit":5},
		{"Name":"High","TPBuyProfit":30,"TPSellProfit":15},
		{"Name":"Mid","TPBuyProfit":20,"TPSellProfit":25}
	]`)
}

func TestApplyTotal_Sum(t *testing.T) {
	rows := applyTotal(profitRows(t), rules.OpSum)
	require.Len(t, rows, 4)
	total := rows[3]
	assert.True(t, total.IsTotal())
	buy, sell := profit(t, total)
	assert.Equal(t, int64(60), buy)
	assert.Equal(t, int64(45), sell)
	assert.Nil(t, total.BestBuy)
	assert.Nil(t, total.BestSell)
}

func TestApplyTotal_MaxNamesBestRows(t *testing.T) {
	rows := applyTotal(profitRows(t), rules.OpMax)
	total := rows[3]
	buy, sell := profit(t, total)
	assert.Equal(t, int64(30), buy)
	assert.Equal(t, int64(25), sell)
	require.NotNil(t, total.BestBuy)
	assert.Equal(t, "High", *total.BestBuy)
	assert.Equal(t, "Mid", *total.BestSell)
}

func TestApplyTotal_AvgAndMin(t *testing.T) {
	buy, _ := profit(t, applyTotal(profitRows(t), rules.OpAvg)[3])
	assert.Equal(t, int64(20), buy)

	buy, sell := profit(t, applyTotal(profitRows(t), rules.OpMin)[3])
	assert.Equal(t, int64(10), buy)
	assert.Equal(t, int64(5), sell)
}

func TestApplyTotal_UpdatesExistingTotalInPlace(t *testing.T) {
	rows := mustRows(t, `[
		{"Name":"total","TPBuyProfit":999,"BestBuy":"stale","Note":"keep"},
		{"Name":"A","TPBuyProfit":10,"TPSellProfit":10,"TPBuyProfitHr":4},
		{"Name":"B","TPBuyProfit":20,"TPSellProfit":20,"TPBuyProfitHr":6}
	]`)

	out := applyTotal(rows, rules.OpSum)
	require.Len(t, out, 3)
	buy, _ := profit(t, out[0])
	assert.Equal(t, int64(30), buy)
	require.NotNil(t, out[0].BuyProfitHr)
	assert.Equal(t, int64(10), *out[0].BuyProfitHr)
	assert.Nil(t, out[0].SellProfitHr)
	assert.Nil(t, out[0].BestBuy)
	require.Len(t, out[0].Extra, 1)
	assert.Equal(t, "Note", out[0].Extra[0].Name)
}

func TestApplyTotal_EmptyTable(t *testing.T) {
	out := applyTotal(nil, rules.OpSum)
	require.Len(t, out, 1)
	buy, sell := profit(t, out[0])
	assert.Zero(t, buy)
	assert.Zero(t, sell)
}

func TestInferOperation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		op   rules.Operation
		warn bool
	}{
		{"leaves only", `[{"Id":5},{"Id":6}]`, rules.OpSum, false},
		{"internal wins", `[{"Category":"Bags","Key":"a","Datasets":"3"},{"Category":"INTERNAL","Key":"x"}]`, rules.OpMax, false},
		{"static", `[{"Category":"Bags","Key":"a","Datasets":"static"},{"Category":"Bags","Key":"b","Datasets":"Static"}]`, rules.OpMax, false},
		{"numeric", `[{"Category":"Bags","Key":"a","Datasets":"12"},{"Category":"Bags","Key":"b","Datasets":4}]`, rules.OpSum, false},
		{"mixed", `[{"Category":"Bags","Key":"a","Datasets":"static"},{"Category":"Bags","Key":"b","Datasets":"12"}]`, rules.OpMax, true},
		{"no hints", `[{"Category":"Bags","Key":"a"},{"Category":"Bags","Key":"b","Datasets":"0"}]`, rules.OpSum, true},
		{"total ignored", `[{"Id":5},{"Name":"TOTAL","Category":"INTERNAL","Key":"x"}]`, rules.OpSum, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, note := inferOperation(mustRows(t, tc.doc))
			assert.Equal(t, tc.op, op)
			assert.Equal(t, tc.warn, note != "")
		})
	}
}

func TestDecideOperation_PersistsOncePerTable(t *testing.T) {
	table := detail(t, "salvage", "choices", `[{"Category":"Bags","Key":"a","Datasets":"static"}]`)
	rs := newFakeRules()
	rc := newTestContext([]*catalog.Table{table}, nil, rs, 0)

	for _, tier := range pricing.Tiers {
		rows := computeTable(t, rc, tier, table)
		assert.Equal(t, catalog.TotalName, rows[len(rows)-1].NameValue())
	}
	assert.Equal(t, 1, rs.calls)
	assert.Equal(t, rules.OpMax, rs.set["salvage/choices"])
}

func TestDecideOperation_ManualAvgWins(t *testing.T) {
	table := detail(t, "salvage", "avg", `[{"Id":5}]`)
	rs := newFakeRules(&rules.Rule{Category: "salvage", Key: "avg", Operation: rules.OpAvg})
	rc := newTestContext([]*catalog.Table{table}, nil, rs, 0)

	ctx := context.Background()
	tc := newTableContext(ctx, rc, pricing.TierFast, table.Target, zap.NewNop())
	assert.Equal(t, rules.OpAvg, tc.decideOperation(ctx, table.Rows))
	assert.Zero(t, rs.calls)
}

func TestDecideOperation_InternalRowsForceMaxOverManualAvg(t *testing.T) {
	source := detail(t, "bags", "real-bag", `[{"Id":5,"AverageAmount":1}]`)
	table := detail(t, "salvage", "avg", `[
		{"Name":"Derived","Category":"INTERNAL","Key":"alias"},
		{"Name":"Ore","Id":5}
	]`)
	rs := newFakeRules(
		&rules.Rule{Category: "salvage", Key: "avg", Operation: rules.OpAvg},
		&rules.Rule{
			Category:    "INTERNAL",
			Key:         "alias",
			SourceTable: "real-bag",
			Formulas:    rules.ParseFormulas("EV(Key, taxes).buy", catalog.FieldBuyProfit, catalog.FieldSellProfit),
		},
	)
	rc := newTestContext([]*catalog.Table{source, table}, map[int64]pricing.PriceEntry{5: entry(100, 0)}, rs, 0)

	rows := computeTable(t, rc, pricing.TierFast, table)
	total := rows[len(rows)-1]
	require.True(t, total.IsTotal())
	buy, _ := profit(t, total)
	assert.Equal(t, int64(100), buy)
	require.NotNil(t, total.BestBuy)
	assert.Equal(t, "Derived", *total.BestBuy)
	assert.Equal(t, rules.OpMax, rs.set["salvage/avg"])
}

func TestDecideOperation_UnchangedNotPersisted(t *testing.T) {
	table := detail(t, "salvage", "sum", `[{"Id":5}]`)
	rs := newFakeRules(&rules.Rule{Category: "salvage", Key: "sum", Operation: rules.OpSum})
	rc := newTestContext([]*catalog.Table{table}, nil, rs, 0)

	computeTable(t, rc, pricing.TierFast, table)
	assert.Zero(t, rs.calls)
}
