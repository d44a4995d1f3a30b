package pricing

import "time"

// PriceEntry is the stored per-item price ladder.
type PriceEntry struct {
	ItemID int64 `gorm:"column:item_id;primaryKey;autoIncrement:false"`

	BuyFast       *int64     `gorm:"column:buy_fast"`
	SellFast      *int64     `gorm:"column:sell_fast"`
	FastUpdatedAt *time.Time `gorm:"column:fast_updated_at;index"`

	BuyHourly       *int64     `gorm:"column:buy_hourly"`
	SellHourly      *int64     `gorm:"column:sell_hourly"`
	HourlyUpdatedAt *time.Time `gorm:"column:hourly_updated_at"`

	BuyDaily       *int64     `gorm:"column:buy_daily"`
	SellDaily      *int64     `gorm:"column:sell_daily"`
	DailyUpdatedAt *time.Time `gorm:"column:daily_updated_at"`

	Activity     int64   `gorm:"column:activity"`
	VendorValue  *int64  `gorm:"column:vendor_value"`
	Image        *string `gorm:"column:image;size:255"`
	Rarity       *string `gorm:"column:rarity;size:40"`
	AccountBound bool    `gorm:"column:account_bound"`
}

// TableName overrides the table name.
func (PriceEntry) TableName() string {
	return "price_tiers"
}

// Price returns the (buy, sell) pair stored for tier t; ok is false when the tier
// was never refreshed.
func (e *PriceEntry) Price(t Tier) (buy, sell int64, ok bool) {
	var b, s *int64
	switch t {
	case TierFast:
		b, s = e.BuyFast, e.SellFast
	case TierHourly:
		b, s = e.BuyHourly, e.SellHourly
	case TierDaily:
		b, s = e.BuyDaily, e.SellDaily
	}
	if b == nil && s == nil {
		return 0, 0, false
	}
	if b != nil {
		buy = *b
	}
	if s != nil {
		sell = *s
	}
	return buy, sell, true
}

// UpdatedAt returns the last refresh time of tier t.
func (e *PriceEntry) UpdatedAt(t Tier) *time.Time {
	switch t {
	case TierFast:
		return e.FastUpdatedAt
	case TierHourly:
		return e.HourlyUpdatedAt
	case TierDaily:
		return e.DailyUpdatedAt
	}
	return nil
}

// MetadataMissing reports whether vendor value, image or rarity is unknown.
func (e *PriceEntry) MetadataMissing() bool {
	return e.VendorValue == nil || e.Image == nil || e.Rarity == nil
}

func (e *PriceEntry) setTier(t Tier, buy, sell int64, at time.Time) {
	b, s, ts := buy, sell, at
	switch t {
	case TierFast:
		e.BuyFast, e.SellFast, e.FastUpdatedAt = &b, &s, &ts
	case TierHourly:
		e.BuyHourly, e.SellHourly, e.HourlyUpdatedAt = &b, &s, &ts
	case TierDaily:
		e.BuyDaily, e.SellDaily, e.DailyUpdatedAt = &b, &s, &ts
	}
}

func tierColumns(t Tier) []string {
	switch t {
	case TierFast:
		return []string{"buy_fast", "sell_fast", "fast_updated_at"}
	case TierHourly:
		return []string{"buy_hourly", "sell_hourly", "hourly_updated_at"}
	case TierDaily:
		return []string{"buy_daily", "sell_daily", "daily_updated_at"}
	}
	return nil
}
