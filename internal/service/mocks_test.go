package service

import (
	"context"
	"time"

	"discount-rules/internal/model"
	"discount-rules/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRuleRepository is a mock implementation of RuleRepository.
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *model.DiscountRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *model.DiscountRule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DiscountRule), args.Error(1)
}

func (m *MockRuleRepository) List(ctx context.Context, filter repository.ListFilter) ([]model.DiscountRule, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DiscountRule), args.Error(1)
}

func (m *MockRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockLedger is a mock implementation of ledger.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) TryConsume(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	args := m.Called(ctx, customerID, ruleID, policy, now)
	usage, _ := args.Get(1).(*model.CustomerRuleUsage)
	return args.Get(0).(model.ConsumeResult), usage, args.Error(2)
}

func (m *MockLedger) Peek(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error) {
	args := m.Called(ctx, customerID, ruleID, policy, now)
	usage, _ := args.Get(1).(*model.CustomerRuleUsage)
	return args.Get(0).(model.ConsumeResult), usage, args.Error(2)
}

func (m *MockLedger) Get(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error) {
	args := m.Called(ctx, customerID, ruleID)
	usage, _ := args.Get(0).(*model.CustomerRuleUsage)
	return usage, args.Error(1)
}

func (m *MockLedger) Reset(ctx context.Context, customerID string, ruleID uuid.UUID) error {
	return m.Called(ctx, customerID, ruleID).Error(0)
}

func (m *MockLedger) ResetCustomer(ctx context.Context, customerID string) error {
	return m.Called(ctx, customerID).Error(0)
}

func (m *MockLedger) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	return m.Called(ctx, ruleID).Error(0)
}
