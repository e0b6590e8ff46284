package repository

import (
	"context"
	"testing"
	"time"

	"discount-rules/internal/model"
	"discount-rules/internal/period"
	"discount-rules/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRule(code string) *model.DiscountRule {
	amount := decimal.RequireFromString("12.50")
	start, end := model.NewTimeOfDay(22, 0, 0), model.NewTimeOfDay(2, 0, 0)
	expiry := time.Date(2030, time.December, 31, 23, 59, 0, 0, time.UTC)
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &model.DiscountRule{
		ID:          uuid.New(),
		Code:        code,
		Name:        "Late night",
		Description: "Night owl discount",
		EMCCode:     "EMC-42",
		Type:        model.RuleTypeCustomer,
		Amount:      &amount,
		Scope: model.Scope{
			CountryIDs: []string{"AE"},
			BrandIDs:   []string{"brand-1", "brand-2"},
			BranchIDs:  []string{},
		},
		Schedule: model.Schedule{
			DaysOfWeek: []model.Weekday{model.Friday, model.Saturday},
			StartTime:  &start,
			EndTime:    &end,
			ExpiryDate: &expiry,
			TimeZone:   "Asia/Dubai",
		},
		IsActive:  true,
		Policy:    model.RateLimited{MaxUses: 3, Cooldown: period.Period{Value: 1, Unit: period.Hours}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRuleRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	rule := newRule("NIGHT1")
	require.NoError(t, repo.Create(ctx, rule))

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, rule.Code, got.Code)
	assert.Equal(t, rule.Type, got.Type)
	require.NotNil(t, got.Amount)
	assert.True(t, rule.Amount.Equal(*got.Amount))
	assert.Nil(t, got.Percentage)
	assert.Equal(t, rule.Scope.BrandIDs, got.Scope.BrandIDs)
	assert.Equal(t, rule.Schedule.DaysOfWeek, got.Schedule.DaysOfWeek)
	assert.Equal(t, *rule.Schedule.StartTime, *got.Schedule.StartTime)
	assert.Equal(t, "Asia/Dubai", got.Schedule.TimeZone)
	assert.True(t, rule.Schedule.ExpiryDate.Equal(*got.Schedule.ExpiryDate))
	assert.Equal(t, rule.Policy, got.Policy)
	assert.True(t, rule.CreatedAt.Equal(got.CreatedAt))
}

func TestRuleRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())

	got, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRuleRepository_Create_DuplicateCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRule("DUP")))

	err := repo.Create(ctx, newRule("DUP"))
	assert.ErrorIs(t, err, model.ErrDuplicateRuleCode)
}

func TestRuleRepository_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	rule := newRule("UPD")
	require.NoError(t, repo.Create(ctx, rule))

	pct := decimal.NewFromInt(15)
	rule.Amount = nil
	rule.Percentage = &pct
	rule.Policy = model.OneTime{}
	rule.IsActive = false
	rule.UpdatedAt = rule.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, rule))

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Amount)
	require.NotNil(t, got.Percentage)
	assert.True(t, pct.Equal(*got.Percentage))
	assert.Equal(t, model.OneTime{}, got.Policy)
	assert.False(t, got.IsActive)

	t.Run("Missing rule", func(t *testing.T) {
		err := repo.Update(ctx, newRule("GHOST"))
		assert.ErrorIs(t, err, model.ErrRuleNotFound)
	})

	t.Run("Code taken by another rule", func(t *testing.T) {
		other := newRule("OTHER")
		require.NoError(t, repo.Create(ctx, other))

		other.Code = "UPD"
		assert.ErrorIs(t, repo.Update(ctx, other), model.ErrDuplicateRuleCode)
	})
}

func TestRuleRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, code := range []string{"L1", "L2", "L3", "L4"} {
		rule := newRule(code)
		rule.CreatedAt = base.Add(time.Duration(i) * time.Second)
		rule.IsActive = i%2 == 0
		require.NoError(t, repo.Create(ctx, rule))
	}

	all, err := repo.List(ctx, ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "L4", all[0].Code, "newest first")

	page, err := repo.List(ctx, ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "L3", page[0].Code)

	active, err := repo.List(ctx, ListFilter{Limit: 10, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, r := range active {
		assert.True(t, r.IsActive)
	}
}

func TestRuleRepository_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewRuleRepository(db.Pool, zerolog.Nop())
	ctx := context.Background()

	rule := newRule("DEL")
	require.NoError(t, repo.Create(ctx, rule))

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO customer_rule_usage (customer_id, rule_id, remaining_uses)
		VALUES ('alice', $1, 2)
	`, rule.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, rule.ID))

	got, err := repo.GetByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	var usageRows int
	require.NoError(t, db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM customer_rule_usage WHERE rule_id = $1`, rule.ID).Scan(&usageRows))
	assert.Zero(t, usageRows)

	assert.ErrorIs(t, repo.Delete(ctx, rule.ID), model.ErrRuleNotFound)
}
