package model

import (
	"time"

	"github.com/google/uuid"
)

// CustomerRuleUsage tracks one customer's consumption of one rule.
// A missing record is equivalent to a fresh one holding the policy's full allowance.
type CustomerRuleUsage struct {
	CustomerID      string     `json:"customer_id"`
	RuleID          uuid.UUID  `json:"rule_id"`
	RemainingUses   int        `json:"remaining_uses"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	WindowStartedAt *time.Time `json:"window_started_at,omitempty"`
	Version         int64      `json:"-"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Clone returns a copy of u that shares no pointers with it.
func (u *CustomerRuleUsage) Clone() *CustomerRuleUsage {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastUsedAt != nil {
		v := *u.LastUsedAt
		c.LastUsedAt = &v
	}
	if u.WindowStartedAt != nil {
		v := *u.WindowStartedAt
		c.WindowStartedAt = &v
	}
	return &c
}

// ConsumeResult is the outcome of a usage ledger decision.
type ConsumeResult string

// Ledger outcomes.
const (
	ConsumeAllowed                ConsumeResult = "ALLOWED"
	ConsumeDeniedOneTimeExhausted ConsumeResult = "DENIED_ONE_TIME_EXHAUSTED"
	ConsumeDeniedLimitExceeded    ConsumeResult = "DENIED_LIMIT_EXCEEDED"
	ConsumeDeniedCooldownActive   ConsumeResult = "DENIED_COOLDOWN_ACTIVE"
)

// Allowed reports whether the result admits the redemption.
func (r ConsumeResult) Allowed() bool {
	return r == ConsumeAllowed
}

// ResetAllRules is the rule selector that resets every rule for a customer.
const ResetAllRules = "ALL"

// ResetRequest clears usage for one customer and one rule, or every rule when RuleID is "ALL".
type ResetRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	RuleID     string `json:"rule_id" validate:"required"`
}
