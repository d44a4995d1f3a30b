package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingStore struct {
	mu      sync.Mutex
	batches [][]Record
	failOn  map[string]bool
	failAll bool
}

func (s *recordingStore) Upsert(_ context.Context, _ catalog.Kind, records []Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Record(nil), records...))
	if s.failAll && len(records) > 1 {
		return nil, errors.New("batch rejected")
	}
	for _, r := range records {
		if s.failOn[string(r.Body)] {
			return nil, errors.New("row rejected")
		}
	}
	return records, nil
}

func (s *recordingStore) Get(context.Context, catalog.Target, pricing.Tier) (*Record, error) {
	return nil, ErrNotFound
}

func rec(kind catalog.Kind, key string, tier pricing.Tier, body string) Record {
	return Record{Target: catalog.Target{Kind: kind, Category: "f", Key: key}, Tier: tier, Body: []byte(body)}
}

func TestWriter_DedupesKeepingLatest(t *testing.T) {
	store := &recordingStore{}
	w := NewWriter(context.Background(), store, Config{WriterBatch: 100, WriterWindowMs: 5000}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "a", pricing.TierFast, "1")))
	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindMain, "m", pricing.TierFast, "m")))
	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "a", pricing.TierFast, "2")))
	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "a", pricing.TierDaily, "3")))
	w.Close()

	require.Len(t, store.batches, 2)
	details := store.batches[0]
	require.Len(t, details, 2)
	assert.Equal(t, "2", string(details[0].Body))
	assert.Equal(t, "3", string(details[1].Body))
	assert.Len(t, store.batches[1], 1)

	assert.Equal(t, WriteStats{Written: 3}, w.Stats())
}

func TestWriter_FlushesOnBatchSize(t *testing.T) {
	store := &recordingStore{}
	w := NewWriter(context.Background(), store, Config{WriterBatch: 2, WriterWindowMs: 60000}, zap.NewNop())
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, key, pricing.TierFast, key)))
	}
	w.Close()

	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[1], 1)
}

func TestWriter_FallsBackToSingleRows(t *testing.T) {
	store := &recordingStore{failAll: true, failOn: map[string]bool{"bad": true}}
	w := NewWriter(context.Background(), store, Config{WriterBatch: 10, WriterWindowMs: 5000}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "a", pricing.TierFast, "ok")))
	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "b", pricing.TierFast, "bad")))
	require.NoError(t, w.Enqueue(ctx, rec(catalog.KindDetail, "c", pricing.TierFast, "fine")))
	w.Close()

	assert.Equal(t, WriteStats{Written: 2, Failed: 1}, w.Stats())
	assert.Len(t, store.batches, 4)
}

func TestWriter_EnqueueAfterClose(t *testing.T) {
	w := NewWriter(context.Background(), &recordingStore{}, Config{}, zap.NewNop())
	w.Close()
	w.Close()

	err := w.Enqueue(context.Background(), rec(catalog.KindDetail, "a", pricing.TierFast, "x"))
	assert.ErrorIs(t, err, ErrWriterClosed)
}
