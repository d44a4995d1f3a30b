package overlay

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WriteStats counts the outcome of overlay writes.
type WriteStats struct {
	Written   int64 `json:"written"`
	Unchanged int64 `json:"unchanged"`
	Failed    int64 `json:"failed"`
}

// RunSummary reports one overlay run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Tiers           []string      `json:"tiers"`
	StartedAt       time.Time     `json:"started_at"`
	TablesProcessed int64         `json:"tables_processed"`
	TablesFailed    int64         `json:"tables_failed"`
	RowsBelowCutoff int64         `json:"rows_below_cutoff"`
	MissingFormulas int64         `json:"missing_formulas"`
	ProblemSamples  []string      `json:"problem_samples"`
	Writes          WriteStats    `json:"writes"`
	TimedOut        bool          `json:"timed_out"`
	Duration        time.Duration `json:"duration"`
}

// runStats is shared by every tier worker of a run.
type runStats struct {
	tablesProcessed atomic.Int64
	tablesFailed    atomic.Int64
	belowCutoff     atomic.Int64
	missingFormulas atomic.Int64

	mu         sync.Mutex
	maxSamples int
	samples    []string
}

func newRunStats(maxSamples int) *runStats {
	return &runStats{maxSamples: maxSamples}
}

// problem records a bounded sample.
func (s *runStats) problem(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) >= s.maxSamples {
		return
	}
	s.samples = append(s.samples, fmt.Sprintf(format, args...))
}

func (s *runStats) fill(summary *RunSummary) {
	summary.TablesProcessed = s.tablesProcessed.Load()
	summary.TablesFailed = s.tablesFailed.Load()
	summary.RowsBelowCutoff = s.belowCutoff.Load()
	summary.MissingFormulas = s.missingFormulas.Load()

	s.mu.Lock()
	summary.ProblemSamples = append([]string{}, s.samples...)
	s.mu.Unlock()
}
