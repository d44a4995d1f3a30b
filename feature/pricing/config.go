package pricing

import "time"

// MaxBatchSize is the hard cap on ids per market API call.
const MaxBatchSize = 200

// MarketConfig configures the external market API client.
type MarketConfig struct {
	// BaseURL is the API root, e.g. https://api.guildwars2.com/v2.
	BaseURL string `mapstructure:"base_url" default:"https://api.guildwars2.com/v2"`
	// TimeoutSeconds bounds each API call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"15"`
	// BatchSize is the number of ids per call, capped at MaxBatchSize.
	BatchSize int `mapstructure:"batch_size" default:"200"`
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries int `mapstructure:"max_retries" default:"4"`
	// InitialBackoffMs is the first retry delay.
	InitialBackoffMs int `mapstructure:"initial_backoff_ms" default:"500"`
	// MaxBackoffMs caps the retry delay.
	MaxBackoffMs int `mapstructure:"max_backoff_ms" default:"8000"`
}

// Batch returns the effective batch size.
func (c MarketConfig) Batch() int {
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return c.BatchSize
}

// Config holds the staleness intervals of the scheduler.
type Config struct {
	// FastActiveSeconds is the fast tier interval of high-activity items.
	FastActiveSeconds int `mapstructure:"fast_active_seconds" default:"120"`
	// FastIdleSeconds is the fast tier interval of every other item.
	FastIdleSeconds int `mapstructure:"fast_idle_seconds" default:"3600"`
	// HourlySeconds is the hourly tier interval.
	HourlySeconds int `mapstructure:"hourly_seconds" default:"3600"`
	// DailySeconds is the daily tier interval.
	DailySeconds int `mapstructure:"daily_seconds" default:"86400"`
	// ActivityThreshold is the activity at or above which an item is high-activity.
	ActivityThreshold int64 `mapstructure:"activity_threshold" default:"1000"`
	// RefreshLimit caps the candidates per refresh; 0 means no cap.
	RefreshLimit int `mapstructure:"refresh_limit" default:"0"`
	// SleepMs is the pause between batches.
	SleepMs int `mapstructure:"sleep_ms" default:"1000"`
}

// Interval returns the staleness interval of tier t for an item with the given activity.
func (c Config) Interval(t Tier, activity int64) time.Duration {
	switch t {
	case TierFast:
		if activity >= c.ActivityThreshold {
			return seconds(c.FastActiveSeconds, 120)
		}
		return seconds(c.FastIdleSeconds, 3600)
	case TierHourly:
		return seconds(c.HourlySeconds, 3600)
	default:
		return seconds(c.DailySeconds, 86400)
	}
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}
