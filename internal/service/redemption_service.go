package service

import (
	"context"
	"strings"
	"time"

	"discount-rules/internal/engine"
	"discount-rules/internal/ledger"
	"discount-rules/internal/metrics"
	"discount-rules/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// redemptionService implements RedemptionService.
type redemptionService struct {
	rules   RuleService
	engine  *engine.Engine
	ledger  ledger.Ledger
	metrics *metrics.Metrics
	now     func() time.Time
	logger  zerolog.Logger
}

// NewRedemptionService creates a new redemption service.
func NewRedemptionService(
	rules RuleService,
	eng *engine.Engine,
	usage ledger.Ledger,
	m *metrics.Metrics,
	logger zerolog.Logger,
) RedemptionService {
	return &redemptionService{
		rules:   rules,
		engine:  eng,
		ledger:  usage,
		metrics: m,
		now:     time.Now,
		logger:  logger.With().Str("service", "redemption").Logger(),
	}
}

// Redeem evaluates an attempt and commits the use when it is eligible.
func (s *redemptionService) Redeem(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error) {
	attempt.CustomerID = strings.TrimSpace(attempt.CustomerID)
	rule, now, err := s.prepare(ctx, attempt)
	if err != nil {
		return model.Eligibility{}, err
	}

	result, err := s.engine.Evaluate(ctx, *rule, attempt.CustomerID, now)
	if err != nil {
		s.logger.Error().Err(err).
			Str("rule_id", rule.ID.String()).
			Str("customer_id", attempt.CustomerID).
			Msg("redemption failed")
		return model.Eligibility{}, err
	}

	s.metrics.Redemption(string(result.Reason))

	return result, nil
}

// Preview reports what Redeem would decide without consuming a use.
func (s *redemptionService) Preview(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error) {
	attempt.CustomerID = strings.TrimSpace(attempt.CustomerID)
	rule, now, err := s.prepare(ctx, attempt)
	if err != nil {
		return model.Eligibility{}, err
	}

	result, err := s.engine.Peek(ctx, *rule, attempt.CustomerID, now)
	if err != nil {
		s.logger.Error().Err(err).
			Str("rule_id", rule.ID.String()).
			Str("customer_id", attempt.CustomerID).
			Msg("redemption preview failed")
		return model.Eligibility{}, err
	}

	s.metrics.Preview(string(result.Reason))

	return result, nil
}

// Usage returns the customer's usage record for a rule, or nil when there is none.
func (s *redemptionService) Usage(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, model.ErrCustomerIDRequired
	}

	if _, err := s.rules.Get(ctx, ruleID); err != nil {
		return nil, err
	}

	return s.ledger.Get(ctx, customerID, ruleID)
}

// Reset clears usage for one rule, or for every rule when RuleID is "ALL".
func (s *redemptionService) Reset(ctx context.Context, req model.ResetRequest) error {
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		return model.ErrCustomerIDRequired
	}

	target := strings.TrimSpace(req.RuleID)
	if strings.EqualFold(target, model.ResetAllRules) {
		if err := s.ledger.ResetCustomer(ctx, customerID); err != nil {
			s.logger.Error().Err(err).Str("customer_id", customerID).Msg("failed to reset customer usage")
			return err
		}
	} else {
		ruleID, err := uuid.Parse(target)
		if err != nil {
			return model.ErrInvalidRuleID
		}
		if err := s.ledger.Reset(ctx, customerID, ruleID); err != nil {
			s.logger.Error().Err(err).
				Str("customer_id", customerID).
				Str("rule_id", target).
				Msg("failed to reset usage")
			return err
		}
	}

	s.metrics.Reset()
	s.logger.Info().
		Str("customer_id", customerID).
		Str("rule_id", target).
		Msg("usage reset")

	return nil
}

// prepare loads the attempted rule and resolves the evaluation instant.
func (s *redemptionService) prepare(ctx context.Context, attempt model.RedemptionAttempt) (*model.DiscountRule, time.Time, error) {
	if attempt.CustomerID == "" {
		return nil, time.Time{}, model.ErrCustomerIDRequired
	}
	if attempt.RuleID == uuid.Nil {
		return nil, time.Time{}, model.ErrInvalidRuleID
	}

	rule, err := s.rules.Get(ctx, attempt.RuleID)
	if err != nil {
		return nil, time.Time{}, err
	}

	now := s.now()
	if attempt.Timestamp != nil {
		now = *attempt.Timestamp
	}

	return rule, now, nil
}
