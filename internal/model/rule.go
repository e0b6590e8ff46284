package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType is the audience of a discount rule.
type RuleType string

// Discount rule types.
const (
	RuleTypeInternal RuleType = "INTERNAL"
	RuleTypeCustomer RuleType = "CUSTOMER"
)

// Scope lists the countries, brands and branches a rule applies to.
// Empty lists mean the rule is unscoped; interpreting that is left to the caller.
type Scope struct {
	CountryIDs []string `json:"country_ids"`
	BrandIDs   []string `json:"brand_ids"`
	BranchIDs  []string `json:"branch_ids"`
}

// DiscountRule is a validated discount definition.
type DiscountRule struct {
	ID          uuid.UUID        `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	EMCCode     string           `json:"emc_code"`
	Type        RuleType         `json:"discount_rule_type"`
	Amount      *decimal.Decimal `json:"amount"`
	Percentage  *decimal.Decimal `json:"percentage"`
	Scope       Scope            `json:"scope"`
	Schedule    Schedule         `json:"schedule"`
	IsActive    bool             `json:"is_active"`
	Policy      UsagePolicy      `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// MarshalJSON writes the rule with its usage policy flattened into
// one_time, limitation, max_uses and cooldown_period.
func (r DiscountRule) MarshalJSON() ([]byte, error) {
	type plain DiscountRule
	return json.Marshal(struct {
		plain
		UsagePolicyFields
	}{
		plain:             plain(r),
		UsagePolicyFields: FieldsOf(r.Policy),
	})
}

// Clone returns a deep copy of r.
func (r DiscountRule) Clone() DiscountRule {
	c := r
	c.Amount = cloneDecimal(r.Amount)
	c.Percentage = cloneDecimal(r.Percentage)
	c.Scope = Scope{
		CountryIDs: slices.Clone(r.Scope.CountryIDs),
		BrandIDs:   slices.Clone(r.Scope.BrandIDs),
		BranchIDs:  slices.Clone(r.Scope.BranchIDs),
	}
	c.Schedule.DaysOfWeek = slices.Clone(r.Schedule.DaysOfWeek)
	if r.Schedule.StartTime != nil {
		v := *r.Schedule.StartTime
		c.Schedule.StartTime = &v
	}
	if r.Schedule.EndTime != nil {
		v := *r.Schedule.EndTime
		c.Schedule.EndTime = &v
	}
	if r.Schedule.ExpiryDate != nil {
		v := *r.Schedule.ExpiryDate
		c.Schedule.ExpiryDate = &v
	}
	return c
}

// Input converts the rule back into its editable form.
func (r DiscountRule) Input() RuleInput {
	c := r.Clone()
	return RuleInput{
		Code:              c.Code,
		Name:              c.Name,
		Description:       c.Description,
		EMCCode:           c.EMCCode,
		Type:              c.Type,
		Amount:            c.Amount,
		Percentage:        c.Percentage,
		Scope:             c.Scope,
		Schedule:          c.Schedule,
		IsActive:          c.IsActive,
		UsagePolicyFields: FieldsOf(c.Policy),
	}
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := d.Copy()
	return &v
}

// RuleInput is the create, update and import payload for a discount rule.
type RuleInput struct {
	Code        string           `json:"code" validate:"required"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	EMCCode     string           `json:"emc_code" validate:"required"`
	Type        RuleType         `json:"discount_rule_type" validate:"oneof=INTERNAL CUSTOMER"`
	Amount      *decimal.Decimal `json:"amount"`
	Percentage  *decimal.Decimal `json:"percentage"`
	Scope       Scope            `json:"scope"`
	Schedule    Schedule         `json:"schedule"`
	IsActive    bool             `json:"is_active"`
	UsagePolicyFields
}

// BulkFailure is one failed item of a bulk operation.
type BulkFailure struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// BulkReport records the independent outcome of each item in a bulk operation.
type BulkReport struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}
