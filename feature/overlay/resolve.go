package overlay

import (
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"go.uber.org/zap"
)

type evKey struct {
	tier pricing.Tier
	tax  float64
	key  string
}

// expectedValue returns the quantity-weighted, taxed value of one unit of the
// detail table with the given key, memoized per (tier, tax, key) for the run.
// Unknown keys are worth nothing.
func (rc *runContext) expectedValue(tier pricing.Tier, key string, tax float64) pricePair {
	k := evKey{tier: tier, tax: tax, key: key}
	if v, ok := rc.ev.Load(k); ok {
		return v.(pricePair)
	}
	v := rc.expand(tier, key, tax, rc.depth, make(map[string]bool))
	actual, _ := rc.ev.LoadOrStore(k, v)
	return actual.(pricePair)
}

// expand sums the target's leaf rows and, while depth remains, its nested
// composite rows. A reference back into the current path contributes nothing.
func (rc *runContext) expand(tier pricing.Tier, key string, tax float64, depth int, path map[string]bool) pricePair {
	table, ok := rc.details[key]
	if !ok {
		rc.logger.Debug("Expected value of unknown table", zap.String("key", key))
		return pricePair{}
	}

	path[key] = true
	defer delete(path, key)

	var sum pricePair
	for i := range table.Rows {
		row := &table.Rows[i]
		if row.IsTotal() {
			continue
		}
		qty := row.Quantity()

		switch row.Kind() {
		case catalog.RefLeaf:
			id := row.ItemID()
			if id <= 0 {
				continue
			}
			p := rc.leafNet(tier, id, tax)
			sum.buy += qty * p.buy
			sum.sell += qty * p.sell
		case catalog.RefComposite:
			if depth <= 0 {
				continue
			}
			child := row.KeyValue()
			if path[child] {
				rc.logger.Warn("Reference cycle, nested table ignored",
					zap.String("table", key),
					zap.String("reference", child))
				continue
			}
			p := rc.expand(tier, child, tax, depth-1, path)
			sum.buy += qty * p.buy
			sum.sell += qty * p.sell
		}
	}
	return sum
}
