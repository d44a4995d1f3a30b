package overlay

import (
	"context"
	"sync"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/expr"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"go.uber.org/zap"
)

// RuleSource is the part of the rule registry a run reads and writes.
type RuleSource interface {
	Get(ctx context.Context, category, key string) (*rules.Rule, bool)
	SetOperation(ctx context.Context, category, key string, op rules.Operation) error
}

type pricePair struct {
	buy, sell float64
}

type itemMeta struct {
	vendor float64
	image  *string
	rarity *string
}

// runContext holds every cache of one run. It is built once by the planner and
// shared read-only by the tier workers; the only lazily filled parts are the
// expected-value cache and the discovered-operation set, and their fill functions
// depend on their key alone.
type runContext struct {
	id       string
	tables   []*catalog.Table
	details  map[string]*catalog.Table
	prices   map[pricing.Tier]map[int64]pricePair
	meta     map[int64]itemMeta
	rules    RuleSource
	programs *expr.Cache
	depth    int
	stats    *runStats
	logger   *zap.Logger

	ev        sync.Map
	persisted sync.Map
}

func newRunContext(id string, tables []*catalog.Table, entries map[int64]pricing.PriceEntry,
	ruleSource RuleSource, programs *expr.Cache, depth int, stats *runStats, logger *zap.Logger) *runContext {
	rc := &runContext{
		id:       id,
		tables:   tables,
		details:  make(map[string]*catalog.Table),
		prices:   make(map[pricing.Tier]map[int64]pricePair, len(pricing.Tiers)),
		meta:     make(map[int64]itemMeta, len(entries)),
		rules:    ruleSource,
		programs: programs,
		depth:    depth,
		stats:    stats,
		logger:   logger,
	}

	for _, t := range tables {
		if t.Target.Kind != catalog.KindDetail {
			continue
		}
		if prev, dup := rc.details[t.Target.Key]; dup {
			logger.Warn("Duplicate detail table key, keeping the first",
				zap.String("key", t.Target.Key),
				zap.String("kept", prev.Target.String()),
				zap.String("ignored", t.Target.String()))
			continue
		}
		rc.details[t.Target.Key] = t
	}

	for _, tier := range pricing.Tiers {
		m := make(map[int64]pricePair, len(entries))
		for id, e := range entries {
			if buy, sell, ok := e.Price(tier); ok {
				m[id] = pricePair{buy: float64(buy), sell: float64(sell)}
			}
		}
		rc.prices[tier] = m
	}

	for id, e := range entries {
		var meta itemMeta
		if e.VendorValue != nil {
			meta.vendor = float64(*e.VendorValue)
		}
		meta.image, meta.rarity = e.Image, e.Rarity
		rc.meta[id] = meta
	}

	return rc
}

func (rc *runContext) price(tier pricing.Tier, id int64) pricePair {
	return rc.prices[tier][id]
}

func (rc *runContext) vendor(id int64) float64 {
	return rc.meta[id].vendor
}

// leafNet is the taxed (buy, sell) of one unit. An item without any market value
// falls back to its untaxed vendor value on the sell side.
func (rc *runContext) leafNet(tier pricing.Tier, id int64, tax float64) pricePair {
	p := rc.price(tier, id)
	net := pricePair{
		buy:  pricing.Net(p.buy, tax),
		sell: pricing.Net(p.sell, tax),
	}
	if net.buy == 0 && net.sell == 0 {
		net.sell = rc.vendor(id)
	}
	return net
}

// formulaEnv binds the formula language to one tier of a run.
type formulaEnv struct {
	rc   *runContext
	tier pricing.Tier
}

func (e formulaEnv) Buy(id int64) float64    { return e.rc.price(e.tier, id).buy }
func (e formulaEnv) Sell(id int64) float64   { return e.rc.price(e.tier, id).sell }
func (e formulaEnv) Vendor(id int64) float64 { return e.rc.vendor(id) }

func (e formulaEnv) EV(key string, tax float64) (float64, float64) {
	p := e.rc.expectedValue(e.tier, key, tax)
	return p.buy, p.sell
}
