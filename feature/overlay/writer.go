package overlay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"overlay-engine/feature/catalog"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned by Enqueue after Close.
var ErrWriterClosed = errors.New("overlay writer closed")

// Writer is the single background consumer that persists overlays. Writes are
// coalesced for a short window or until a batch fills, de-duplicated by
// (table, tier) keeping the latest, and upserted once per overlay kind.
type Writer struct {
	store  Store
	logger *zap.Logger
	batch  int
	window time.Duration

	ctx   context.Context
	queue chan Record
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	written   atomic.Int64
	unchanged atomic.Int64
	failed    atomic.Int64
}

// NewWriter starts a writer. ctx bounds the store calls.
func NewWriter(ctx context.Context, store Store, cfg Config, logger *zap.Logger) *Writer {
	w := &Writer{
		store:  store,
		logger: logger,
		batch:  cfg.writerBatch(),
		window: cfg.writerWindow(),
		ctx:    ctx,
		queue:  make(chan Record, cfg.writerQueue()),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enqueue hands a record to the writer, blocking while the queue is full.
func (w *Writer) Enqueue(ctx context.Context, r Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWriterClosed
	}
	select {
	case w.queue <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes and stops the writer.
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
}

// Stats returns the write counters so far.
func (w *Writer) Stats() WriteStats {
	return WriteStats{
		Written:   w.written.Load(),
		Unchanged: w.unchanged.Load(),
		Failed:    w.failed.Load(),
	}
}

func (w *Writer) loop() {
	defer close(w.done)
	for {
		first, ok := <-w.queue
		if !ok {
			return
		}
		pending := []Record{first}
		timer := time.NewTimer(w.window)

	collect:
		for len(pending) < w.batch {
			select {
			case r, ok := <-w.queue:
				if !ok {
					timer.Stop()
					w.flush(pending)
					return
				}
				pending = append(pending, r)
			case <-timer.C:
				break collect
			}
		}
		timer.Stop()
		w.flush(pending)
	}
}

func (w *Writer) flush(pending []Record) {
	for _, kind := range []catalog.Kind{catalog.KindDetail, catalog.KindMain} {
		batch := dedupe(pending, kind)
		if len(batch) == 0 {
			continue
		}

		written, err := w.store.Upsert(w.ctx, kind, batch)
		if err == nil {
			w.written.Add(int64(len(written)))
			w.unchanged.Add(int64(len(batch) - len(written)))
			continue
		}

		w.logger.Warn("Overlay batch failed, writing one by one",
			zap.String("kind", string(kind)),
			zap.Int("size", len(batch)),
			zap.Error(err))
		for _, r := range batch {
			written, err := w.store.Upsert(w.ctx, kind, []Record{r})
			switch {
			case err != nil:
				w.failed.Add(1)
				w.logger.Error("Overlay write failed",
					zap.String("table", r.Target.String()),
					zap.String("tier", r.Tier.String()),
					zap.Error(err))
			case len(written) > 0:
				w.written.Add(1)
			default:
				w.unchanged.Add(1)
			}
		}
	}
}

// dedupe returns the records of one kind, keeping the latest per (table, tier)
// at the position of its first occurrence.
func dedupe(pending []Record, kind catalog.Kind) []Record {
	index := make(map[string]int)
	var out []Record
	for _, r := range pending {
		if r.Target.Kind != kind {
			continue
		}
		id := r.id()
		if i, ok := index[id]; ok {
			out[i] = r
			continue
		}
		index[id] = len(out)
		out = append(out, r)
	}
	return out
}
