package discount

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"discount-rules/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RuleValidator enforces the structural invariants of a rule definition.
// It is pure and safe for concurrent use.
type RuleValidator struct {
	validate *validator.Validate
}

// NewRuleValidator creates a RuleValidator.
func NewRuleValidator() *RuleValidator {
	v := validator.New()
	// Report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RuleValidator{validate: v}
}

// Validate checks in and returns the normalised rule it describes.
// All failures are collected into a single *model.ValidationError. The returned
// rule has no identity or timestamps; those are assigned by the caller.
func (rv *RuleValidator) Validate(in model.RuleInput) (model.DiscountRule, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.EMCCode = strings.TrimSpace(in.EMCCode)

	verr := &model.ValidationError{}

	rv.checkRequired(in, verr)

	amount, percentage := checkDiscount(in, verr)

	policy, err := ResolvePolicy(in.UsagePolicyFields)
	if err != nil {
		var policyErr *model.ValidationError
		if !errors.As(err, &policyErr) {
			return model.DiscountRule{}, err
		}
		verr.Errors = append(verr.Errors, policyErr.Errors...)
	}

	schedule := checkSchedule(in.Schedule, verr)

	if err := verr.OrNil(); err != nil {
		return model.DiscountRule{}, err
	}

	return model.DiscountRule{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		EMCCode:     in.EMCCode,
		Type:        in.Type,
		Amount:      amount,
		Percentage:  percentage,
		Scope:       normalizeScope(in.Scope),
		Schedule:    schedule,
		IsActive:    in.IsActive,
		Policy:      policy,
	}, nil
}

func (rv *RuleValidator) checkRequired(in model.RuleInput, verr *model.ValidationError) {
	err := rv.validate.Struct(in)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(model.KindMissingRequiredField, "", err.Error())
		return
	}

	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			verr.Add(model.KindMissingRequiredField, fe.Field(), fe.Field()+" is required")
		case "oneof":
			verr.Add(model.KindInvalidRuleType, fe.Field(),
				fmt.Sprintf("%s must be one of INTERNAL, CUSTOMER; got %q", fe.Field(), fe.Value()))
		default:
			verr.Add(model.KindMissingRequiredField, fe.Field(), fe.Error())
		}
	}
}

// checkDiscount enforces exactly one of amount or percentage and clamps percentages above 100.
func checkDiscount(in model.RuleInput, verr *model.ValidationError) (amount, percentage *decimal.Decimal) {
	switch {
	case in.Amount != nil && in.Percentage != nil:
		verr.Add(model.KindDiscountRepresentation, "amount", "only one of amount or percentage may be set")
		return nil, nil
	case in.Amount == nil && in.Percentage == nil:
		verr.Add(model.KindDiscountRepresentation, "amount", "one of amount or percentage must be set")
		return nil, nil
	case in.Amount != nil:
		if !in.Amount.IsPositive() {
			verr.Add(model.KindInvalidAmount, "amount", "amount must be greater than zero")
			return nil, nil
		}
		v := in.Amount.Copy()
		return &v, nil
	default:
		if !in.Percentage.IsPositive() {
			verr.Add(model.KindInvalidPercentage, "percentage", "percentage must be greater than zero")
			return nil, nil
		}
		v := decimal.Min(in.Percentage.Copy(), hundred)
		return nil, &v
	}
}

func checkSchedule(s model.Schedule, verr *model.ValidationError) model.Schedule {
	out := model.Schedule{
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		ExpiryDate: s.ExpiryDate,
		TimeZone:   s.TimeZone,
	}

	days := make([]model.Weekday, 0, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		d = model.Weekday(strings.ToUpper(strings.TrimSpace(string(d))))
		if !d.Valid() {
			verr.Add(model.KindInvalidSchedule, "days_of_week", fmt.Sprintf("unknown weekday %q", d))
			continue
		}
		days = append(days, d)
	}
	if len(days) > 0 {
		out.DaysOfWeek = lo.Uniq(days)
	}

	if _, err := s.Location(); err != nil {
		verr.Add(model.KindInvalidSchedule, "time_zone", fmt.Sprintf("unknown time zone %q", s.TimeZone))
	}

	return out
}

func normalizeScope(s model.Scope) model.Scope {
	clean := func(ids []string) []string {
		ids = lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })
		return lo.Uniq(lo.Compact(ids))
	}
	return model.Scope{
		CountryIDs: clean(s.CountryIDs),
		BrandIDs:   clean(s.BrandIDs),
		BranchIDs:  clean(s.BranchIDs),
	}
}
