package model

import (
	"time"

	"github.com/google/uuid"
)

// DenialReason explains why a redemption was refused.
type DenialReason string

// Denial reasons, in the order the eligibility checks run. Usage denials
// carry the ledger outcome name unchanged.
const (
	ReasonRuleInactive     DenialReason = "RULE_INACTIVE"
	ReasonOutsideSchedule  DenialReason = "OUTSIDE_SCHEDULE"
	ReasonOneTimeExhausted DenialReason = DenialReason(ConsumeDeniedOneTimeExhausted)
	ReasonLimitExceeded    DenialReason = DenialReason(ConsumeDeniedLimitExceeded)
	ReasonCooldownActive   DenialReason = DenialReason(ConsumeDeniedCooldownActive)
)

// ReasonFor maps a denied ledger outcome to its denial reason.
func ReasonFor(r ConsumeResult) DenialReason {
	switch r {
	case ConsumeDeniedOneTimeExhausted:
		return ReasonOneTimeExhausted
	case ConsumeDeniedLimitExceeded:
		return ReasonLimitExceeded
	case ConsumeDeniedCooldownActive:
		return ReasonCooldownActive
	default:
		return ""
	}
}

// Eligibility is the result of evaluating a redemption attempt.
type Eligibility struct {
	Eligible bool               `json:"eligible"`
	Reason   DenialReason       `json:"reason,omitempty"`
	Usage    *CustomerRuleUsage `json:"usage,omitempty"`
}

// Allow builds an eligible result carrying the updated usage.
func Allow(usage *CustomerRuleUsage) Eligibility {
	return Eligibility{Eligible: true, Usage: usage}
}

// Deny builds an ineligible result.
func Deny(reason DenialReason, usage *CustomerRuleUsage) Eligibility {
	return Eligibility{Eligible: false, Reason: reason, Usage: usage}
}

// RedemptionAttempt is a customer's request to use a rule.
// A nil Timestamp means the server clock.
type RedemptionAttempt struct {
	CustomerID string     `json:"customer_id" validate:"required"`
	RuleID     uuid.UUID  `json:"rule_id" validate:"required"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}
