package overlay

import (
	"context"
	"testing"

	"overlay-engine/core/database"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/pricing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) (*GormStore, *gorm.DB) {
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewGormStore(db), db
}

func TestGormStore_UpsertSkipsUnchanged(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	a := rec(catalog.KindDetail, "ore", pricing.TierFast, `[{"Id":1}]`)
	b := rec(catalog.KindDetail, "ore", pricing.TierDaily, `[{"Id":2}]`)

	written, err := store.Upsert(ctx, catalog.KindDetail, []Record{a, b})
	require.NoError(t, err)
	assert.Len(t, written, 2)

	written, err = store.Upsert(ctx, catalog.KindDetail, []Record{a, b})
	require.NoError(t, err)
	assert.Empty(t, written)

	a.Body = []byte(`[{"Id":3}]`)
	written, err = store.Upsert(ctx, catalog.KindDetail, []Record{a, b})
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, pricing.TierFast, written[0].Tier)

	var count int64
	require.NoError(t, db.Model(&DetailOverlay{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	got, err := store.Get(ctx, a.Target, pricing.TierFast)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Id":3}]`, string(got.Body))
}

func TestGormStore_MainOverlays(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	m := rec(catalog.KindMain, "overview", pricing.TierHourly, `[]`)

	written, err := store.Upsert(ctx, catalog.KindMain, []Record{m})
	require.NoError(t, err)
	assert.Len(t, written, 1)

	got, err := store.Get(ctx, m.Target, pricing.TierHourly)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got.Body))

	_, err = store.Get(ctx, m.Target, pricing.TierFast)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_UnknownKind(t *testing.T) {
	store, _ := setupStore(t)
	_, err := store.Upsert(context.Background(), catalog.Kind("other"), []Record{{}})
	assert.Error(t, err)
}

func TestGormStore_UpsertError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = NewGormStore(db).Upsert(context.Background(), catalog.KindDetail,
		[]Record{rec(catalog.KindDetail, "ore", pricing.TierFast, "[]")})
	assert.ErrorIs(t, err, assert.AnError)
}
