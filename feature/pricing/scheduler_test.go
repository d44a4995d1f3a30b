package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMarket struct {
	mu         sync.Mutex
	quotes     map[int64]Quote
	items      map[int64]ItemInfo
	priceCalls [][]int64
	itemCalls  [][]int64
	failures   int
	failWith   error
}

func (f *fakeMarket) Prices(_ context.Context, ids []int64) (map[int64]Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls = append(f.priceCalls, append([]int64(nil), ids...))
	if f.failures > 0 {
		f.failures--
		return nil, f.failWith
	}
	out := make(map[int64]Quote)
	for _, id := range ids {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeMarket) Items(_ context.Context, ids []int64) (map[int64]ItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls = append(f.itemCalls, append([]int64(nil), ids...))
	out := make(map[int64]ItemInfo)
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, market Market, batch int) (*Scheduler, *Store) {
	store, _ := setupStore(t)
	s := NewScheduler(store, market,
		Config{FastActiveSeconds: 120, FastIdleSeconds: 3600, HourlySeconds: 3600, DailySeconds: 86400, ActivityThreshold: 1000},
		MarketConfig{BatchSize: batch, MaxRetries: 2, InitialBackoffMs: 1, MaxBackoffMs: 2},
		zap.NewNop())
	s.now = func() time.Time { return testNow }
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s, store
}

func meta() *Metadata {
	return &Metadata{VendorValue: 1, Image: "i.png", Rarity: "Basic"}
}

func TestScheduler_RefreshesOnlyDueCoarseTiers(t *testing.T) {
	market := &fakeMarket{quotes: map[int64]Quote{
		10: {ID: 10, BuyPrice: 50, SellPrice: 60, BuyQty: 1, SellQty: 1},
	}}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()

	// Fast stale for an idle item, hourly stale, daily fresh.
	require.NoError(t, store.Apply(ctx, []Update{{
		ItemID: 10, Tiers: []Tier{TierFast, TierHourly}, Buy: 1, Sell: 2, At: testNow.Add(-2 * time.Hour), Metadata: meta(),
	}}))
	require.NoError(t, store.Apply(ctx, []Update{{
		ItemID: 10, Tiers: []Tier{TierDaily}, Buy: 3, Sell: 4, At: testNow.Add(-time.Hour),
	}}))

	summary, err := s.Refresh(ctx, 0, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Picked)
	assert.Equal(t, 1, summary.PerTierUpdated[TierFast])
	assert.Equal(t, 1, summary.PerTierUpdated[TierHourly])
	assert.Equal(t, 0, summary.PerTierUpdated[TierDaily])
	assert.Empty(t, market.itemCalls, "metadata present, no item lookup")

	entries, err := store.Load(ctx, []int64{10})
	require.NoError(t, err)
	e := entries[10]
	buy, sell, _ := e.Price(TierHourly)
	assert.Equal(t, int64(50), buy)
	assert.Equal(t, int64(60), sell)
	buy, sell, ok := e.Price(TierDaily)
	require.True(t, ok)
	assert.Equal(t, int64(3), buy)
	assert.Equal(t, int64(4), sell)
}

func TestScheduler_FreshItemsSkipped(t *testing.T) {
	market := &fakeMarket{}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, []Update{{
		ItemID: 10, Tiers: Tiers, Buy: 1, Sell: 1, At: testNow.Add(-time.Minute), Metadata: meta(),
	}}))

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Picked)
	assert.Empty(t, market.priceCalls)
}

func TestScheduler_ActiveItemsUseShortInterval(t *testing.T) {
	market := &fakeMarket{quotes: map[int64]Quote{}}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()

	at := testNow.Add(-5 * time.Minute)
	require.NoError(t, store.Apply(ctx, []Update{
		{ItemID: 1, Tiers: Tiers, Activity: 5000, At: at, Metadata: meta()},
		{ItemID: 2, Tiers: Tiers, Activity: 10, At: at, Metadata: meta()},
	}))

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Picked)
	require.Len(t, market.priceCalls, 1)
	assert.Equal(t, []int64{1}, market.priceCalls[0])
}

func TestScheduler_OldestFirstAndBatches(t *testing.T) {
	market := &fakeMarket{quotes: map[int64]Quote{}}
	s, store := newTestScheduler(t, market, 2)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, []Update{
		{ItemID: 1, Tiers: Tiers, At: testNow.Add(-2 * time.Hour), Metadata: meta()},
		{ItemID: 2, Tiers: Tiers, At: testNow.Add(-4 * time.Hour), Metadata: meta()},
		{ItemID: 3, Tiers: Tiers, At: testNow.Add(-3 * time.Hour), Metadata: meta()},
	}))
	_, err := store.Seed(ctx, []int64{4})
	require.NoError(t, err)

	summary, err := s.Refresh(ctx, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Picked)
	require.Len(t, market.priceCalls, 2)
	assert.Equal(t, []int64{4, 2}, market.priceCalls[0])
	assert.Equal(t, []int64{3}, market.priceCalls[1])
	require.Len(t, market.itemCalls, 1)
	assert.Equal(t, []int64{4}, market.itemCalls[0])
}

func TestScheduler_AccountBoundForcedToZero(t *testing.T) {
	market := &fakeMarket{
		quotes: map[int64]Quote{7: {ID: 7, BuyPrice: 100, SellPrice: 120}},
		items:  map[int64]ItemInfo{7: {ID: 7, Icon: "x.png", Rarity: "Rare", AccountBound: true}},
	}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()
	_, err := store.Seed(ctx, []int64{7})
	require.NoError(t, err)

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.VendorUpdated)

	entries, err := store.Load(ctx, []int64{7})
	require.NoError(t, err)
	e := entries[7]
	buy, sell, ok := e.Price(TierFast)
	require.True(t, ok)
	assert.Zero(t, buy)
	assert.Zero(t, sell)
	assert.True(t, e.AccountBound)

	// Account-bound entries are no longer candidates.
	market.priceCalls = nil
	summary, err = s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Picked)
}

func TestScheduler_RetriesTransientFailures(t *testing.T) {
	market := &fakeMarket{
		quotes:   map[int64]Quote{1: {ID: 1, BuyPrice: 5, SellPrice: 6}},
		failures: 2,
		failWith: ErrTransient,
	}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()
	require.NoError(t, store.Apply(ctx, []Update{{ItemID: 1, Tiers: Tiers, At: testNow.Add(-48 * time.Hour), Metadata: meta()}}))

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.BatchesFailed)
	assert.Len(t, market.priceCalls, 3)
	assert.Equal(t, 1, summary.PerTierUpdated[TierFast])
}

func TestScheduler_ExhaustedRetriesSkipBatchOnly(t *testing.T) {
	market := &fakeMarket{
		quotes:   map[int64]Quote{2: {ID: 2, BuyPrice: 5, SellPrice: 6}},
		failures: 3,
		failWith: ErrTransient,
	}
	s, store := newTestScheduler(t, market, 1)
	ctx := context.Background()
	old := testNow.Add(-48 * time.Hour)
	require.NoError(t, store.Apply(ctx, []Update{
		{ItemID: 1, Tiers: Tiers, Buy: 1, Sell: 1, At: old, Metadata: meta()},
		{ItemID: 2, Tiers: Tiers, Buy: 1, Sell: 1, At: old, Metadata: meta()},
	}))

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BatchesFailed)
	assert.Equal(t, 1, summary.PerTierUpdated[TierFast])

	entries, err := store.Load(ctx, []int64{1, 2})
	require.NoError(t, err)
	e1, e2 := entries[1], entries[2]
	buy, _, _ := e1.Price(TierFast)
	assert.Equal(t, int64(1), buy, "skipped batch keeps stored prices")
	buy, _, _ = e2.Price(TierFast)
	assert.Equal(t, int64(5), buy)
}

func TestScheduler_PermanentErrorNotRetried(t *testing.T) {
	market := &fakeMarket{failures: 5, failWith: assert.AnError}
	s, store := newTestScheduler(t, market, 200)
	ctx := context.Background()
	_, err := store.Seed(ctx, []int64{1})
	require.NoError(t, err)

	summary, err := s.Refresh(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BatchesFailed)
	assert.Len(t, market.priceCalls, 1)
}
