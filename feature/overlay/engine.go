package overlay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"overlay-engine/core/logger"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/expr"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunOptions selects what a run recomputes.
type RunOptions struct {
	// ID identifies the run; a new one is generated when empty.
	ID string
	// Tiers defaults to every tier.
	Tiers []pricing.Tier
}

// Engine plans and executes overlay runs.
type Engine struct {
	catalog  *catalog.Repository
	registry *rules.Registry
	prices   *pricing.Store
	store    Store
	programs *expr.Cache
	cfg      Config
	logger   *zap.Logger
}

// NewEngine creates an overlay engine.
func NewEngine(repo *catalog.Repository, registry *rules.Registry, prices *pricing.Store, store Store, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{
		catalog:  repo,
		registry: registry,
		prices:   prices,
		store:    store,
		programs: expr.NewCache(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run recomputes and persists every overlay of the selected tiers. Per-table
// problems are counted in the summary; only failing to load the inputs is an error.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	started := time.Now()
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = pricing.Tiers
	}

	log := logger.WithRun(e.logger, opts.ID, "")
	summary := &RunSummary{RunID: opts.ID, StartedAt: started.UTC()}
	for _, t := range tiers {
		summary.Tiers = append(summary.Tiers, t.String())
	}
	stats := newRunStats(e.cfg.problemSamples())

	if err := e.registry.Preload(ctx); err != nil {
		log.Warn("Rule preload failed, rules resolve lazily", zap.Error(err))
	}

	tables, err := e.loadTables(ctx, stats, log)
	if err != nil {
		return nil, err
	}

	ids := e.referencedIDs(tables)
	if _, err := e.prices.Seed(ctx, ids); err != nil {
		log.Warn("Failed to seed price entries", zap.Error(err))
	}
	entries, err := e.prices.Load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to warm prices: %w", err)
	}
	log.Info("Run planned",
		zap.Int("tables", len(tables)),
		zap.Int("items", len(ids)),
		zap.Int("priced", len(entries)))

	rc := newRunContext(opts.ID, tables, entries, e.registry, e.programs, e.cfg.ExpansionDepth, stats, log)
	writer := NewWriter(ctx, e.store, e.cfg, log)

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.runTimeout())
	defer cancel()

	var g errgroup.Group
	g.SetLimit(e.cfg.workers())
	for _, tier := range tiers {
		runner := &tierRunner{
			rc:       rc,
			tier:     tier,
			writer:   writer,
			writeCtx: ctx,
			logger:   logger.WithRun(e.logger, opts.ID, tier.String()),
		}
		g.Go(func() error { return runner.run(runCtx) })
	}
	if err := g.Wait(); err != nil {
		summary.TimedOut = errors.Is(err, context.DeadlineExceeded)
		log.Warn("Run did not finish every table", zap.Error(err))
	}

	writer.Close()
	stats.fill(summary)
	summary.Writes = writer.Stats()
	summary.Duration = time.Since(started)

	log.Info("Run finished",
		zap.Int64("tables_processed", summary.TablesProcessed),
		zap.Int64("tables_failed", summary.TablesFailed),
		zap.Int64("below_cutoff", summary.RowsBelowCutoff),
		zap.Int64("missing_formulas", summary.MissingFormulas),
		zap.Int64("written", summary.Writes.Written),
		zap.Int64("unchanged", summary.Writes.Unchanged),
		zap.Int64("write_failures", summary.Writes.Failed),
		zap.Strings("problems", summary.ProblemSamples),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// loadTables parses every base table. Malformed documents are skipped.
func (e *Engine) loadTables(ctx context.Context, stats *runStats, log *zap.Logger) ([]*catalog.Table, error) {
	docs, err := e.catalog.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]*catalog.Table, 0, len(docs))
	for _, d := range docs {
		rows, err := catalog.ParseRows(d.Body)
		if err != nil {
			stats.tablesFailed.Add(1)
			stats.problem("%s: %v", d.Target, err)
			log.Warn("Skipping malformed table", zap.String("table", d.Target.String()), zap.Error(err))
			continue
		}
		tables = append(tables, &catalog.Table{Target: d.Target, Name: d.Name, Rows: rows})
	}
	return tables, nil
}

// referencedIDs is the sorted union of row item ids and literal ids used by
// formulas.
func (e *Engine) referencedIDs(tables []*catalog.Table) []int64 {
	set := make(map[int64]struct{})
	for _, t := range tables {
		for i := range t.Rows {
			if id := t.Rows[i].ItemID(); id > 0 {
				set[id] = struct{}{}
			}
		}
	}
	for _, rule := range e.registry.All() {
		for field, src := range rule.Formulas {
			prog, err := e.programs.Compile(rule.Category, rule.Key, field, src)
			if err != nil {
				continue
			}
			for _, id := range prog.ReferencedIDs() {
				set[id] = struct{}{}
			}
		}
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
