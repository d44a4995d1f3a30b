package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Summary reports one refresh cycle.
type Summary struct {
	Picked         int          `json:"picked"`
	PerTierUpdated map[Tier]int `json:"per_tier_updated"`
	VendorUpdated  int          `json:"vendor_updated"`
	BatchesFailed  int          `json:"batches_failed"`
}

// candidate is an item selected for refresh.
type candidate struct {
	entry       PriceEntry
	due         []Tier
	needsMeta   bool
	oldestFresh time.Time
}

// Scheduler decides which items are stale and refreshes them from the market.
type Scheduler struct {
	store  *Store
	market Market
	cfg    Config
	mcfg   MarketConfig
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a price refresh scheduler.
func NewScheduler(store *Store, market Market, cfg Config, mcfg MarketConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		market: market,
		cfg:    cfg,
		mcfg:   mcfg,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Refresh runs one refresh cycle over at most limit candidates (0 means all),
// pausing sleep between batches.
func (s *Scheduler) Refresh(ctx context.Context, limit int, sleep time.Duration) (Summary, error) {
	summary := Summary{PerTierUpdated: make(map[Tier]int)}

	entries, err := s.store.LoadAll(ctx)
	if err != nil {
		return summary, err
	}

	candidates := s.selectCandidates(entries, s.now())
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	summary.Picked = len(candidates)
	if len(candidates) == 0 {
		s.logger.Info("No stale prices to refresh")
		return summary, nil
	}

	batch := s.mcfg.Batch()
	for start := 0; start < len(candidates); start += batch {
		if start > 0 && sleep > 0 {
			if err := s.sleep(ctx, sleep); err != nil {
				return summary, err
			}
		}

		end := min(start+batch, len(candidates))
		if err := s.refreshBatch(ctx, candidates[start:end], &summary); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.BatchesFailed++
			s.logger.Warn("Price batch skipped",
				zap.Int("offset", start),
				zap.Int("size", end-start),
				zap.Error(err))
		}
	}

	s.logger.Info("Price refresh finished",
		zap.Int("picked", summary.Picked),
		zap.Int("fast", summary.PerTierUpdated[TierFast]),
		zap.Int("hourly", summary.PerTierUpdated[TierHourly]),
		zap.Int("daily", summary.PerTierUpdated[TierDaily]),
		zap.Int("vendor", summary.VendorUpdated),
		zap.Int("batches_failed", summary.BatchesFailed))

	return summary, nil
}

// selectCandidates returns tradable items whose fast tier is stale for their
// activity, whose coarser tiers exceeded their own interval, or whose metadata is
// missing, oldest fast refresh first.
func (s *Scheduler) selectCandidates(entries []PriceEntry, now time.Time) []candidate {
	var out []candidate
	for _, e := range entries {
		if e.AccountBound {
			continue
		}

		var due []Tier
		for _, t := range Tiers {
			at := e.UpdatedAt(t)
			if at == nil || now.Sub(*at) >= s.cfg.Interval(t, e.Activity) {
				due = append(due, t)
			}
		}
		needsMeta := e.MetadataMissing()
		if len(due) == 0 && !needsMeta {
			continue
		}

		var oldest time.Time
		if at := e.FastUpdatedAt; at != nil {
			oldest = *at
		}
		out = append(out, candidate{entry: e, due: due, needsMeta: needsMeta, oldestFresh: oldest})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].oldestFresh.Equal(out[j].oldestFresh) {
			return out[i].oldestFresh.Before(out[j].oldestFresh)
		}
		return out[i].entry.ItemID < out[j].entry.ItemID
	})
	return out
}

func (s *Scheduler) refreshBatch(ctx context.Context, batch []candidate, summary *Summary) error {
	ids := make([]int64, len(batch))
	var metaIDs []int64
	for i, c := range batch {
		ids[i] = c.entry.ItemID
		if c.needsMeta {
			metaIDs = append(metaIDs, c.entry.ItemID)
		}
	}

	var quotes map[int64]Quote
	if err := s.retry(ctx, "prices", func() (err error) {
		quotes, err = s.market.Prices(ctx, ids)
		return err
	}); err != nil {
		return err
	}

	var items map[int64]ItemInfo
	if len(metaIDs) > 0 {
		if err := s.retry(ctx, "items", func() (err error) {
			items, err = s.market.Items(ctx, metaIDs)
			return err
		}); err != nil {
			return err
		}
	}

	now := s.now()
	updates := make([]Update, 0, len(batch))
	tierCounts := make(map[Tier]int)
	vendor := 0
	for _, c := range batch {
		id := c.entry.ItemID
		q, tradable := quotes[id]

		u := Update{
			ItemID:   id,
			Tiers:    withFast(c.due),
			Activity: q.Activity(),
			At:       now,
		}

		bound := c.entry.AccountBound
		if info, ok := items[id]; ok {
			u.Metadata = &Metadata{
				VendorValue:  info.VendorValue,
				Image:        info.Icon,
				Rarity:       info.Rarity,
				AccountBound: info.AccountBound,
			}
			bound = bound || info.AccountBound
			vendor++
		}
		if tradable && !bound {
			u.Buy, u.Sell = q.BuyPrice, q.SellPrice
		}

		for _, t := range u.Tiers {
			tierCounts[t]++
		}
		updates = append(updates, u)
	}

	if err := s.store.Apply(ctx, updates); err != nil {
		return err
	}

	for t, n := range tierCounts {
		summary.PerTierUpdated[t] += n
	}
	summary.VendorUpdated += vendor
	return nil
}

// retry runs op with bounded exponential backoff. Only ErrTransient is retried.
func (s *Scheduler) retry(ctx context.Context, what string, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = millis(s.mcfg.InitialBackoffMs, 500)
	exp.MaxInterval = millis(s.mcfg.MaxBackoffMs, 8000)
	exp.MaxElapsedTime = 0

	maxRetries := s.mcfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		s.logger.Debug("Market call failed, retrying",
			zap.String("call", what),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, policy)
	if err != nil {
		return fmt.Errorf("%s after %d attempts: %w", what, attempt, err)
	}
	return nil
}

// withFast returns due with the fast tier guaranteed to be present.
func withFast(due []Tier) []Tier {
	for _, t := range due {
		if t == TierFast {
			return due
		}
	}
	return append([]Tier{TierFast}, due...)
}

func millis(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
