package overlay

import (
	"context"
	"testing"

	"overlay-engine/core/storage/mocks"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArchivingStore_MirrorsWrittenOnly(t *testing.T) {
	inner, _ := setupStore(t)
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "overlays", "v1/fast/detail/f/ore.json", mock.Anything, int64(2), mock.Anything).
		Return(minio.UploadInfo{}, nil).Once()

	store := NewArchivingStore(inner, client, "overlays", "v1", zap.NewNop())
	ctx := context.Background()
	r := rec(catalog.KindDetail, "ore", pricing.TierFast, "[]")

	written, err := store.Upsert(ctx, catalog.KindDetail, []Record{r})
	require.NoError(t, err)
	assert.Len(t, written, 1)

	written, err = store.Upsert(ctx, catalog.KindDetail, []Record{r})
	require.NoError(t, err)
	assert.Empty(t, written)

	client.AssertExpectations(t)
}

func TestArchivingStore_UploadFailureIsNotFatal(t *testing.T) {
	inner, _ := setupStore(t)
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	store := NewArchivingStore(inner, client, "overlays", "", zap.NewNop())
	written, err := store.Upsert(context.Background(), catalog.KindMain,
		[]Record{rec(catalog.KindMain, "overview", pricing.TierDaily, "[]")})
	require.NoError(t, err)
	assert.Len(t, written, 1)
}

func TestObjectName(t *testing.T) {
	r := rec(catalog.KindMain, "overview", pricing.TierHourly, "")
	assert.Equal(t, "cdn/hourly/main/f/overview.json", ObjectName("cdn", r))
	assert.Equal(t, "hourly/main/f/overview.json", ObjectName("", r))
}
