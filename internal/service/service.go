package service

import (
	"context"

	"discount-rules/internal/model"

	"github.com/google/uuid"
)

// RuleService defines operations for discount rule management.
type RuleService interface {
	// Create validates the input and stores it as a new rule.
	Create(ctx context.Context, in model.RuleInput) (*model.DiscountRule, error)

	// Update replaces every editable field of an existing rule.
	Update(ctx context.Context, id uuid.UUID, in model.RuleInput) (*model.DiscountRule, error)

	// Get retrieves a single rule by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error)

	// List retrieves rules newest first with pagination.
	List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.DiscountRule, error)

	// Delete removes a rule together with its usage records.
	Delete(ctx context.Context, id uuid.UUID) error

	// Deactivate soft-deletes a rule by clearing its active flag.
	Deactivate(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error)

	// Copy duplicates a rule under a new ID and code. Usage history is not copied.
	Copy(ctx context.Context, id uuid.UUID, newCode *string) (*model.DiscountRule, error)

	// BulkDelete deletes each ID independently and reports the outcome per ID.
	BulkDelete(ctx context.Context, ids []string) model.BulkReport
}

// RedemptionService defines the customer-facing eligibility operations.
type RedemptionService interface {
	// Redeem evaluates an attempt and commits the use when it is eligible.
	Redeem(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error)

	// Preview reports what Redeem would decide without consuming a use.
	Preview(ctx context.Context, attempt model.RedemptionAttempt) (model.Eligibility, error)

	// Usage returns the customer's usage record for a rule, or nil when there is none.
	Usage(ctx context.Context, customerID string, ruleID uuid.UUID) (*model.CustomerRuleUsage, error)

	// Reset clears usage for one rule, or for every rule when RuleID is "ALL".
	Reset(ctx context.Context, req model.ResetRequest) error
}
