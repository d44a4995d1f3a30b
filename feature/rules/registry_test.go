package rules

import (
	"context"
	"testing"

	"overlay-engine/core/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupRegistry(t *testing.T) (*Registry, *gorm.DB) {
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return NewRegistry(db, zap.NewNop()), db
}

func intPtr(v int) *int { return &v }

func TestRegistry_GetLazyPreload(t *testing.T) {
	reg, db := setupRegistry(t)
	require.NoError(t, db.Create(&CalculationRule{
		Category: "Salvage", Key: "kit", Operation: "max", Taxes: intPtr(10),
		Formula: `{"TPBuyProfit":"BUY(19700)"}`, SourceTable: " ore ",
	}).Error)

	rule, ok := reg.Get(context.Background(), "SALVAGE", "kit")
	require.True(t, ok)
	assert.Equal(t, OpMax, rule.Operation)
	tax, set := rule.TaxPercent()
	assert.True(t, set)
	assert.Equal(t, 10, tax)
	f, ok := rule.Formula("TPBuyProfit")
	assert.True(t, ok)
	assert.Equal(t, "BUY(19700)", f)
	_, ok = rule.Formula("TPSellProfit")
	assert.False(t, ok)
	assert.Equal(t, "ore", rule.SourceTable)

	_, ok = reg.Get(context.Background(), "salvage", "KIT")
	assert.False(t, ok, "keys are case-sensitive")
}

func TestRegistry_SetOperationNotVisibleUntilPreload(t *testing.T) {
	reg, db := setupRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Preload(ctx))

	require.NoError(t, reg.SetOperation(ctx, "farming", "Routes", OpMax))
	_, ok := reg.Get(ctx, "farming", "Routes")
	assert.False(t, ok)

	var stored CalculationRule
	require.NoError(t, db.Where("category = ?", "farming").Take(&stored).Error)
	assert.Equal(t, "MAX", stored.Operation)

	require.NoError(t, reg.SetOperation(ctx, "FARMING", "Routes", OpSum))
	var count int64
	db.Model(&CalculationRule{}).Count(&count)
	assert.Equal(t, int64(1), count)

	require.NoError(t, reg.Preload(ctx))
	rule, ok := reg.Get(ctx, "farming", "Routes")
	require.True(t, ok)
	assert.Equal(t, OpSum, rule.Operation)
}

func TestRegistry_PreloadFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT \\* FROM `calculation_rules`").WillReturnError(assert.AnError)

	reg := NewRegistry(db, zap.NewNop())
	_, ok := reg.Get(context.Background(), "a", "b")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseOperation(t *testing.T) {
	for in, want := range map[string]Operation{"sum": OpSum, " Max ": OpMax, "AVERAGE": OpAvg, "min": OpMin, "": OpUnset} {
		got, ok := ParseOperation(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseOperation("median")
	assert.False(t, ok)
	assert.Equal(t, "MAX", OpMax.String())
}

func TestParseFormulas(t *testing.T) {
	assert.Nil(t, ParseFormulas(""))
	assert.Nil(t, ParseFormulas("{not json"))
	assert.Equal(t, map[string]string{"a": "1", "b": "1"}, ParseFormulas("1", "a", "b"))
	assert.Equal(t, map[string]string{"x": "BUY(1)"}, ParseFormulas(`{"x":"BUY(1)"}`, "a"))
}
