package overlay

import (
	"context"
	"fmt"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"go.uber.org/zap"
)

// tierRunner recomputes every table of one tier.
type tierRunner struct {
	rc       *runContext
	tier     pricing.Tier
	writer   *Writer
	writeCtx context.Context
	logger   *zap.Logger
}

// run computes detail tables, then main tables. It stops between tables once ctx
// is done; a table already started always completes.
func (r *tierRunner) run(ctx context.Context) error {
	r.prewarm(ctx)

	for _, kind := range []catalog.Kind{catalog.KindDetail, catalog.KindMain} {
		for _, t := range r.rc.tables {
			if t.Target.Kind != kind {
				continue
			}
			if err := ctx.Err(); err != nil {
				r.logger.Warn("Tier stopped before finishing", zap.Error(err))
				return err
			}
			if err := r.runTable(ctx, t); err != nil {
				r.rc.stats.tablesFailed.Add(1)
				r.logger.Error("Table failed",
					zap.String("table", t.Target.String()),
					zap.Error(err))
				continue
			}
			r.rc.stats.tablesProcessed.Add(1)
		}
	}
	return nil
}

// prewarm fills the expected values main tables will ask for.
func (r *tierRunner) prewarm(ctx context.Context) {
	n := 0
	for _, t := range r.rc.tables {
		if t.Target.Kind != catalog.KindMain {
			continue
		}
		tc := newTableContext(ctx, r.rc, r.tier, t.Target, r.logger)
		for i := range t.Rows {
			row := &t.Rows[i]
			if row.Kind() != catalog.RefComposite {
				continue
			}
			r.rc.expectedValue(r.tier, row.KeyValue(), tc.compositeTax(ctx, row))
			n++
		}
	}
	r.logger.Debug("Expected values prewarmed", zap.Int("references", n))
}

func (r *tierRunner) runTable(ctx context.Context, t *catalog.Table) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	log := r.logger.With(zap.String("table", t.Target.String()))
	tc := newTableContext(ctx, r.rc, r.tier, t.Target, log)

	rows := catalog.CloneRows(t.Rows)
	for i := range rows {
		tc.computeRow(ctx, &rows[i])
	}
	rows = applyTotal(rows, tc.decideOperation(ctx, rows))

	body, err := catalog.MarshalRows(rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	if err := r.writer.Enqueue(r.writeCtx, Record{Target: t.Target, Tier: r.tier, Body: body}); err != nil {
		return fmt.Errorf("failed to enqueue overlay: %w", err)
	}
	return nil
}
