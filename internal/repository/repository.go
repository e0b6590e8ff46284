package repository

import (
	"context"

	"discount-rules/internal/model"

	"github.com/google/uuid"
)

// ListFilter selects a page of rules.
type ListFilter struct {
	Limit      int
	Offset     int
	ActiveOnly bool
}

// RuleRepository defines the interface for discount rule data access operations.
type RuleRepository interface {
	// Create inserts a new rule. A taken code returns model.ErrDuplicateRuleCode.
	Create(ctx context.Context, rule *model.DiscountRule) error

	// Update replaces every field of an existing rule.
	// Returns model.ErrRuleNotFound when no rule has the ID.
	Update(ctx context.Context, rule *model.DiscountRule) error

	// GetByID retrieves a single rule by its ID. Returns nil when not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.DiscountRule, error)

	// List retrieves rules newest first with pagination support.
	List(ctx context.Context, filter ListFilter) ([]model.DiscountRule, error)

	// Delete removes a rule. Its usage records are removed with it.
	// Returns model.ErrRuleNotFound when no rule has the ID.
	Delete(ctx context.Context, id uuid.UUID) error
}
