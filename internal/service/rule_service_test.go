package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"discount-rules/internal/discount"
	"discount-rules/internal/model"
	"discount-rules/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.June, 5, 12, 0, 0, 0, time.UTC)

func newTestRuleService(repo *MockRuleRepository, l *MockLedger) *ruleService {
	svc := NewRuleService(repo, l, discount.NewRuleValidator(), 4, zerolog.Nop()).(*ruleService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func ruleInput(code string) model.RuleInput {
	amount := decimal.NewFromInt(10)
	maxUses := 3
	cooldown := "PT1H"
	return model.RuleInput{
		Code:     code,
		Name:     "Summer ten off",
		EMCCode:  "EMC-001",
		Type:     model.RuleTypeCustomer,
		Amount:   &amount,
		Scope:    model.Scope{CountryIDs: []string{"AE"}, BrandIDs: []string{"b1"}},
		IsActive: true,
		UsagePolicyFields: model.UsagePolicyFields{
			Limitation:     true,
			MaxUses:        &maxUses,
			CooldownPeriod: &cooldown,
		},
	}
}

func storedRule(t *testing.T, code string) *model.DiscountRule {
	t.Helper()
	rule, err := discount.NewRuleValidator().Validate(ruleInput(code))
	require.NoError(t, err)
	rule.ID = uuid.New()
	rule.CreatedAt = fixedNow.Add(-24 * time.Hour)
	rule.UpdatedAt = rule.CreatedAt
	return &rule
}

func TestRuleService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))

		repo.On("Create", ctx, mock.MatchedBy(func(r *model.DiscountRule) bool {
			return r.Code == "SUMMER10" && r.ID != uuid.Nil
		})).Return(nil)

		in := ruleInput("  SUMMER10 ")
		rule, err := svc.Create(ctx, in)
		require.NoError(t, err)

		assert.Equal(t, "SUMMER10", rule.Code)
		assert.Equal(t, fixedNow, rule.CreatedAt)
		assert.Equal(t, fixedNow, rule.UpdatedAt)
		assert.Equal(t, model.PolicyRateLimited, rule.Policy.Kind())
		repo.AssertExpectations(t)
	})

	t.Run("Validation failure never reaches storage", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))

		in := ruleInput("BAD")
		pct := decimal.NewFromInt(5)
		in.Percentage = &pct

		_, err := svc.Create(ctx, in)

		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has(model.KindDiscountRepresentation))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate code", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		repo.On("Create", ctx, mock.Anything).Return(model.ErrDuplicateRuleCode)

		_, err := svc.Create(ctx, ruleInput("DUP"))
		assert.ErrorIs(t, err, model.ErrDuplicateRuleCode)
		assert.False(t, model.IsInfrastructure(err))
	})

	t.Run("Storage failure is retriable", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		repo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused"))

		_, err := svc.Create(ctx, ruleInput("X"))
		assert.True(t, model.IsInfrastructure(err))
	})
}

func TestRuleService_Get(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name      string
		mockRule  *model.DiscountRule
		mockError error
		check     func(t *testing.T, rule *model.DiscountRule, err error)
	}{
		{
			name:     "Found",
			mockRule: &model.DiscountRule{ID: id, Code: "FOUND"},
			check: func(t *testing.T, rule *model.DiscountRule, err error) {
				require.NoError(t, err)
				assert.Equal(t, "FOUND", rule.Code)
			},
		},
		{
			name: "Not found",
			check: func(t *testing.T, rule *model.DiscountRule, err error) {
				assert.ErrorIs(t, err, model.ErrRuleNotFound)
				assert.Nil(t, rule)
			},
		},
		{
			name:      "Repository error",
			mockError: errors.New("database error"),
			check: func(t *testing.T, rule *model.DiscountRule, err error) {
				assert.True(t, model.IsInfrastructure(err))
				assert.Nil(t, rule)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRuleRepository)
			svc := newTestRuleService(repo, new(MockLedger))

			if tt.mockRule != nil {
				repo.On("GetByID", ctx, id).Return(tt.mockRule, nil)
			} else {
				repo.On("GetByID", ctx, id).Return(nil, tt.mockError)
			}

			rule, err := svc.Get(ctx, id)
			tt.check(t, rule, err)
		})
	}
}

func TestRuleService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		limit          int
		offset         int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "Valid pagination", limit: 20, offset: 5, expectedLimit: 20, expectedOffset: 5},
		{name: "Zero limit defaults to 10", limit: 0, offset: 0, expectedLimit: 10, expectedOffset: 0},
		{name: "Negative limit defaults to 10", limit: -3, offset: 0, expectedLimit: 10, expectedOffset: 0},
		{name: "Limit exceeding max caps at 100", limit: 500, offset: 0, expectedLimit: 100, expectedOffset: 0},
		{name: "Negative offset defaults to 0", limit: 10, offset: -1, expectedLimit: 10, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRuleRepository)
			svc := newTestRuleService(repo, new(MockLedger))

			filter := repository.ListFilter{Limit: tt.expectedLimit, Offset: tt.expectedOffset, ActiveOnly: true}
			repo.On("List", ctx, filter).Return([]model.DiscountRule{{Code: "A"}}, nil)

			rules, err := svc.List(ctx, tt.limit, tt.offset, true)
			require.NoError(t, err)
			assert.Len(t, rules, 1)
			repo.AssertExpectations(t)
		})
	}

	t.Run("Repository error", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		repo.On("List", ctx, mock.Anything).Return(nil, errors.New("database error"))

		_, err := svc.List(ctx, 10, 0, false)
		assert.True(t, model.IsInfrastructure(err))
	})
}

func TestRuleService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Replaces the whole rule and keeps identity", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		existing := storedRule(t, "OLD")

		repo.On("GetByID", ctx, existing.ID).Return(existing, nil)
		repo.On("Update", ctx, mock.Anything).Return(nil)

		in := ruleInput("NEW")
		in.Amount = nil
		pct := decimal.NewFromInt(150)
		in.Percentage = &pct
		in.OneTime = true

		rule, err := svc.Update(ctx, existing.ID, in)
		require.NoError(t, err)

		assert.Equal(t, existing.ID, rule.ID)
		assert.Equal(t, existing.CreatedAt, rule.CreatedAt)
		assert.Equal(t, fixedNow, rule.UpdatedAt)
		assert.Equal(t, "NEW", rule.Code)
		assert.Nil(t, rule.Amount)
		assert.True(t, decimal.NewFromInt(100).Equal(*rule.Percentage))
		assert.Equal(t, model.OneTime{}, rule.Policy)
	})

	t.Run("Missing rule", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(nil, nil)

		_, err := svc.Update(ctx, id, ruleInput("X"))
		assert.ErrorIs(t, err, model.ErrRuleNotFound)
	})

	t.Run("Invalid input leaves the rule untouched", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		existing := storedRule(t, "OLD")
		repo.On("GetByID", ctx, existing.ID).Return(existing, nil)

		in := ruleInput("OLD")
		bad := "1 hour"
		in.CooldownPeriod = &bad

		_, err := svc.Update(ctx, existing.ID, in)

		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has(model.KindMalformedCooldown))
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRuleService_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("Active rule", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		existing := storedRule(t, "ACT")

		repo.On("GetByID", ctx, existing.ID).Return(existing, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(r *model.DiscountRule) bool {
			return !r.IsActive && r.ID == existing.ID && r.Code == "ACT"
		})).Return(nil)

		rule, err := svc.Deactivate(ctx, existing.ID)
		require.NoError(t, err)
		assert.False(t, rule.IsActive)
		assert.True(t, existing.IsActive, "stored rule is not mutated in place")
		repo.AssertExpectations(t)
	})

	t.Run("Already inactive", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		existing := storedRule(t, "OFF")
		existing.IsActive = false

		repo.On("GetByID", ctx, existing.ID).Return(existing, nil)

		rule, err := svc.Deactivate(ctx, existing.ID)
		require.NoError(t, err)
		assert.False(t, rule.IsActive)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestRuleService_Copy(t *testing.T) {
	ctx := context.Background()

	t.Run("Generated code", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		source := storedRule(t, "SUMMER")

		repo.On("GetByID", ctx, source.ID).Return(source, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil)

		copied, err := svc.Copy(ctx, source.ID, nil)
		require.NoError(t, err)

		assert.NotEqual(t, source.ID, copied.ID)
		assert.Regexp(t, `^SUMMER-COPY-[0-9A-F]{8}$`, copied.Code)
		assert.Equal(t, source.Name, copied.Name)
		assert.Equal(t, source.Policy, copied.Policy)
		assert.True(t, source.Amount.Equal(*copied.Amount))
		assert.Equal(t, source.Scope, copied.Scope)
		assert.Equal(t, fixedNow, copied.CreatedAt)

		copied.Scope.CountryIDs[0] = "SA"
		*copied.Amount = decimal.NewFromInt(99)
		assert.Equal(t, "AE", source.Scope.CountryIDs[0])
		assert.True(t, decimal.NewFromInt(10).Equal(*source.Amount))
	})

	t.Run("Supplied code", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		source := storedRule(t, "SUMMER")
		code := "WINTER"

		repo.On("GetByID", ctx, source.ID).Return(source, nil)
		repo.On("Create", ctx, mock.Anything).Return(nil)

		copied, err := svc.Copy(ctx, source.ID, &code)
		require.NoError(t, err)
		assert.Equal(t, "WINTER", copied.Code)
	})

	t.Run("Blank supplied code is rejected", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		source := storedRule(t, "SUMMER")
		code := "  "

		repo.On("GetByID", ctx, source.ID).Return(source, nil)

		_, err := svc.Copy(ctx, source.ID, &code)

		var verr *model.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.True(t, verr.Has(model.KindMissingRequiredField))
	})

	t.Run("Missing source", func(t *testing.T) {
		repo := new(MockRuleRepository)
		svc := newTestRuleService(repo, new(MockLedger))
		id := uuid.New()
		repo.On("GetByID", ctx, id).Return(nil, nil)

		_, err := svc.Copy(ctx, id, nil)
		assert.ErrorIs(t, err, model.ErrRuleNotFound)
	})
}

func TestRuleService_Delete(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("Removes rule and usage", func(t *testing.T) {
		repo := new(MockRuleRepository)
		l := new(MockLedger)
		svc := newTestRuleService(repo, l)

		repo.On("Delete", ctx, id).Return(nil)
		l.On("DeleteRule", ctx, id).Return(nil)

		require.NoError(t, svc.Delete(ctx, id))
		repo.AssertExpectations(t)
		l.AssertExpectations(t)
	})

	t.Run("Missing rule leaves the ledger alone", func(t *testing.T) {
		repo := new(MockRuleRepository)
		l := new(MockLedger)
		svc := newTestRuleService(repo, l)

		repo.On("Delete", ctx, id).Return(model.ErrRuleNotFound)

		assert.ErrorIs(t, svc.Delete(ctx, id), model.ErrRuleNotFound)
		l.AssertNotCalled(t, "DeleteRule", mock.Anything, mock.Anything)
	})

	t.Run("Ledger failure is reported", func(t *testing.T) {
		repo := new(MockRuleRepository)
		l := new(MockLedger)
		svc := newTestRuleService(repo, l)

		infra := model.NewInfrastructureError("delete usage", errors.New("timeout"))
		repo.On("Delete", ctx, id).Return(nil)
		l.On("DeleteRule", ctx, id).Return(infra)

		err := svc.Delete(ctx, id)
		assert.ErrorIs(t, err, infra)
		assert.True(t, model.IsInfrastructure(err))
	})
}

func TestRuleService_BulkDelete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRuleRepository)
	l := new(MockLedger)
	svc := newTestRuleService(repo, l)

	ok1, ok2, missing, broken := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	repo.On("Delete", ctx, ok1).Return(nil)
	repo.On("Delete", ctx, ok2).Return(nil)
	repo.On("Delete", ctx, missing).Return(model.ErrRuleNotFound)
	repo.On("Delete", ctx, broken).Return(errors.New("connection reset"))
	l.On("DeleteRule", ctx, mock.Anything).Return(nil)

	ids := []string{ok1.String(), "not-a-uuid", missing.String(), ok2.String(), broken.String()}
	report := svc.BulkDelete(ctx, ids)

	assert.Equal(t, []string{ok1.String(), ok2.String()}, report.Succeeded)
	require.Len(t, report.Failed, 3)
	assert.Equal(t, "not-a-uuid", report.Failed[0].Item)
	assert.Equal(t, model.ErrInvalidRuleID.Error(), report.Failed[0].Error)
	assert.Equal(t, missing.String(), report.Failed[1].Item)
	assert.Equal(t, model.ErrRuleNotFound.Error(), report.Failed[1].Error)
	assert.Equal(t, broken.String(), report.Failed[2].Item)
	assert.Contains(t, report.Failed[2].Error, "connection reset")

	t.Run("Empty input", func(t *testing.T) {
		report := svc.BulkDelete(ctx, nil)
		assert.Empty(t, report.Succeeded)
		assert.Empty(t, report.Failed)
	})
}
