// Package engine answers whether a customer may redeem a rule at an instant.
package engine

import (
	"context"
	"fmt"
	"time"

	"discount-rules/internal/discount"
	"discount-rules/internal/ledger"
	"discount-rules/internal/model"

	"github.com/rs/zerolog"
)

// Engine runs the eligibility gates in order: active flag, schedule, usage ledger.
type Engine struct {
	ledger ledger.Ledger
	logger zerolog.Logger
}

// New creates an Engine backed by l.
func New(l ledger.Ledger, logger zerolog.Logger) *Engine {
	return &Engine{
		ledger: l,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Evaluate is the redemption attempt itself. When the result is eligible the
// use has already been committed to the ledger; there is no separate commit.
func (e *Engine) Evaluate(ctx context.Context, rule model.DiscountRule, customerID string, now time.Time) (model.Eligibility, error) {
	if denial, ok := e.gate(rule, now); !ok {
		e.logDenial(rule, customerID, denial)
		return model.Deny(denial, nil), nil
	}

	result, usage, err := e.ledger.TryConsume(ctx, customerID, rule.ID, rule.Policy, now)
	if err != nil {
		return model.Eligibility{}, fmt.Errorf("failed to consume usage: %w", err)
	}

	if !result.Allowed() {
		reason := model.ReasonFor(result)
		e.logDenial(rule, customerID, reason)
		return model.Deny(reason, usage), nil
	}

	e.logger.Debug().
		Str("rule_id", rule.ID.String()).
		Str("customer_id", customerID).
		Int("remaining_uses", usage.RemainingUses).
		Msg("redemption allowed")

	return model.Allow(usage), nil
}

// Peek runs the same gates as Evaluate without consuming anything.
func (e *Engine) Peek(ctx context.Context, rule model.DiscountRule, customerID string, now time.Time) (model.Eligibility, error) {
	if denial, ok := e.gate(rule, now); !ok {
		return model.Deny(denial, nil), nil
	}

	result, usage, err := e.ledger.Peek(ctx, customerID, rule.ID, rule.Policy, now)
	if err != nil {
		return model.Eligibility{}, fmt.Errorf("failed to peek usage: %w", err)
	}

	if !result.Allowed() {
		return model.Deny(model.ReasonFor(result), usage), nil
	}
	return model.Allow(usage), nil
}

// gate applies the rule-level checks that need no customer state.
func (e *Engine) gate(rule model.DiscountRule, now time.Time) (model.DenialReason, bool) {
	if !rule.IsActive {
		return model.ReasonRuleInactive, false
	}
	if !discount.Admits(rule.Schedule, now) {
		return model.ReasonOutsideSchedule, false
	}
	return "", true
}

func (e *Engine) logDenial(rule model.DiscountRule, customerID string, reason model.DenialReason) {
	e.logger.Debug().
		Str("rule_id", rule.ID.String()).
		Str("customer_id", customerID).
		Str("reason", string(reason)).
		Msg("redemption denied")
}
