package handler

import (
	"context"
	"net/http"

	"discount-rules/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRuleService is a mock implementation of RuleService.
type MockRuleService struct {
	mock.Mock
}

func (m *MockRuleService) Create(ctx context.Context, in model.RuleInput) (*model.DiscountRule, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) Update(ctx context.Context, id uuid.UUID, in model.RuleInput) (*model.DiscountRule, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) Get(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.DiscountRule, error) {
	args := m.Called(ctx, limit, offset, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRuleService) Deactivate(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) Copy(ctx context.Context, id uuid.UUID, newCode *string) (*model.DiscountRule, error) {
	args := m.Called(ctx, id, newCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleService) BulkDelete(ctx context.Context, ids []string) model.BulkReport {
	return m.Called(ctx, ids).Get(0).(model.BulkReport)
}

// MockRedemptionService is a mock implementation of RedemptionService.
type MockRedemptionService struct {
	mock.Mock
}

func (m *MockRedemptionService) Redeem(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error) {
	args := m.Called(ctx, attempt)
	return args.Get(0).(model.Eligibility), args.Error(1)
}

func (m *MockRedemptionService) Preview(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error) {
	args := m.Called(ctx, attempt)
	return args.Get(0).(model.Eligibility), args.Error(1)
}

func (m *MockRedemptionService) Usage(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error) {
	args := m.Called(ctx, customerID, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerRuleUsage), args.Error(1)
}

func (m *MockRedemptionService) Reset(ctx context.Context, req model.ResetRequest) error {
	return m.Called(ctx, req).Error(0)
}

// withURLParams attaches chi route parameters to r.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
