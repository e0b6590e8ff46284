// Package ledger owns per-customer, per-rule usage records and the atomic
// check-and-consume that enforces a rule's usage policy.
//
// Both backends share Decide, a pure function from (policy, record, now) to an
// outcome and the next record. Backends differ only in how they make the
// read-decide-write sequence atomic for a single key.
package ledger

import (
	"context"
	"fmt"
	"time"

	"discount-rules/internal/model"

	"github.com/google/uuid"
)

// Ledger is the usage store consulted by the eligibility engine.
type Ledger interface {
	// TryConsume decides and, only when allowed, commits one use.
	// The returned record is the stored state after the call.
	TryConsume(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error)

	// Peek reports what TryConsume would decide without changing anything.
	// The returned record is the current state.
	Peek(ctx context.Context, customerID string, ruleID uuid.UUID, policy model.UsagePolicy, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage, error)

	// Get returns the stored record, or nil when the pair has no history.
	Get(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error)

	// Reset discards the pair's record so the next use starts fresh. Idempotent.
	Reset(ctx context.Context, customerID string, ruleID uuid.UUID) error

	// ResetCustomer discards every record held by the customer. Idempotent.
	ResetCustomer(ctx context.Context, customerID string) error

	// DeleteRule discards every record for the rule.
	DeleteRule(ctx context.Context, ruleID uuid.UUID) error
}

// Mode selects how a rate-limited policy interprets max uses and cooldown.
type Mode string

const (
	// ModeFixedWindow grants MaxUses per cooldown window, replenished when the window elapses.
	ModeFixedWindow Mode = "fixed_window"
	// ModePerUse treats MaxUses as a quota restored only by reset, and requires
	// the cooldown to pass between consecutive uses.
	ModePerUse Mode = "per_use"
)

// ParseMode parses a configured mode name. Empty selects the fixed window.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFixedWindow:
		return ModeFixedWindow, nil
	case ModePerUse:
		return ModePerUse, nil
	default:
		return "", fmt.Errorf("unknown ledger mode %q", s)
	}
}

// Key identifies one usage record.
type Key struct {
	CustomerID string
	RuleID     uuid.UUID
}

// Fresh returns the record implied by a pair with no history.
func Fresh(key Key, policy model.UsagePolicy) *model.CustomerRuleUsage {
	allowance := 0
	if policy != nil {
		allowance = policy.Allowance()
	}
	return &model.CustomerRuleUsage{
		CustomerID:    key.CustomerID,
		RuleID:        key.RuleID,
		RemainingUses: allowance,
	}
}

// Decide applies policy to the current record at now. It never mutates rec.
// On ALLOWED the second value is the record to store; otherwise it is the
// current state (rec, or a fresh record when rec is nil).
func Decide(policy model.UsagePolicy, key Key, rec *model.CustomerRuleUsage, now time.Time, mode Mode) (model.ConsumeResult, *model.CustomerRuleUsage) {
	cur := rec.Clone()
	if cur == nil {
		cur = Fresh(key, policy)
	}

	switch p := policy.(type) {
	case model.OneTime:
		if cur.LastUsedAt != nil {
			return model.ConsumeDeniedOneTimeExhausted, cur
		}
		cur.RemainingUses = 0
		return model.ConsumeAllowed, used(cur, now)

	case model.RateLimited:
		if mode == ModePerUse {
			return decidePerUse(p, cur, now)
		}
		return decideFixedWindow(p, cur, now)

	default:
		// Unlimited only keeps last_used_at for audit
		cur.RemainingUses = 0
		return model.ConsumeAllowed, used(cur, now)
	}
}

func decideFixedWindow(p model.RateLimited, cur *model.CustomerRuleUsage, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage) {
	// No window yet, or the last one has elapsed: open a new one at now
	if cur.WindowStartedAt == nil || !now.Before(p.Cooldown.AddTo(*cur.WindowStartedAt)) {
		start := now
		cur.WindowStartedAt = &start
		cur.RemainingUses = p.MaxUses - 1
		return model.ConsumeAllowed, used(cur, now)
	}

	// The rule may have been edited to a smaller quota mid-window
	remaining := min(cur.RemainingUses, p.MaxUses)
	if remaining <= 0 {
		return model.ConsumeDeniedLimitExceeded, cur
	}

	cur.RemainingUses = remaining - 1
	return model.ConsumeAllowed, used(cur, now)
}

func decidePerUse(p model.RateLimited, cur *model.CustomerRuleUsage, now time.Time) (model.ConsumeResult, *model.CustomerRuleUsage) {
	remaining := min(cur.RemainingUses, p.MaxUses)
	if remaining <= 0 {
		return model.ConsumeDeniedLimitExceeded, cur
	}

	if cur.LastUsedAt != nil && now.Before(p.Cooldown.AddTo(*cur.LastUsedAt)) {
		return model.ConsumeDeniedCooldownActive, cur
	}

	cur.RemainingUses = remaining - 1
	cur.WindowStartedAt = nil
	return model.ConsumeAllowed, used(cur, now)
}

func used(rec *model.CustomerRuleUsage, now time.Time) *model.CustomerRuleUsage {
	at := now
	rec.LastUsedAt = &at
	rec.UpdatedAt = now
	return rec
}
