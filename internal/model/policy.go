package model

import (
	"discount-rules/internal/period"
)

// PolicyKind names a usage policy variant.
type PolicyKind string

// Usage policy variants.
const (
	PolicyUnlimited   PolicyKind = "UNLIMITED"
	PolicyOneTime     PolicyKind = "ONE_TIME"
	PolicyRateLimited PolicyKind = "RATE_LIMITED"
)

// UsagePolicy is one of Unlimited, OneTime or RateLimited.
// The unexported method keeps the set of variants closed.
type UsagePolicy interface {
	Kind() PolicyKind
	// Allowance is the number of uses a fresh usage record starts with.
	Allowance() int
	usagePolicy()
}

// Unlimited rules can be redeemed any number of times.
type Unlimited struct{}

// OneTime rules can be redeemed once per customer until an administrative reset.
type OneTime struct{}

// RateLimited rules grant MaxUses redemptions per Cooldown window.
type RateLimited struct {
	MaxUses  int
	Cooldown period.Period
}

func (Unlimited) Kind() PolicyKind { return PolicyUnlimited }
func (OneTime) Kind() PolicyKind { return PolicyOneTime }
func (RateLimited) Kind() PolicyKind { return PolicyRateLimited }

func (Unlimited) Allowance() int { return 0 }
func (OneTime) Allowance() int { return 1 }
func (p RateLimited) Allowance() int { return p.MaxUses }

func (Unlimited) usagePolicy() {}
func (OneTime) usagePolicy() {}
func (RateLimited) usagePolicy() {}

// UsagePolicyFields is the flat wire and storage shape of a usage policy.
type UsagePolicyFields struct {
	OneTime        bool    `json:"one_time"`
	Limitation     bool    `json:"limitation"`
	MaxUses        *int    `json:"max_uses"`
	CooldownPeriod *string `json:"cooldown_period"`
}

// FieldsOf flattens a policy. A nil policy is reported as unlimited.
func FieldsOf(p UsagePolicy) UsagePolicyFields {
	switch v := p.(type) {
	case OneTime:
		return UsagePolicyFields{OneTime: true}
	case RateLimited:
		maxUses := v.MaxUses
		cooldown := v.Cooldown.String()
		return UsagePolicyFields{
			Limitation:     true,
			MaxUses:        &maxUses,
			CooldownPeriod: &cooldown,
		}
	default:
		return UsagePolicyFields{}
	}
}
