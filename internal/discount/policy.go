package discount

import (
	"discount-rules/internal/model"
	"discount-rules/internal/period"
)

// Normalize applies the one-time override: a one-time rule carries no
// limitation, max uses or cooldown, whatever the input said.
func Normalize(f model.UsagePolicyFields) model.UsagePolicyFields {
	if f.OneTime {
		return model.UsagePolicyFields{OneTime: true}
	}
	return f
}

// ResolvePolicy turns flat policy fields into a UsagePolicy variant.
// It is the only way from the boundary representation to the union.
func ResolvePolicy(f model.UsagePolicyFields) (model.UsagePolicy, error) {
	f = Normalize(f)

	switch {
	case f.OneTime:
		return model.OneTime{}, nil
	case !f.Limitation:
		return model.Unlimited{}, nil
	}

	verr := &model.ValidationError{}
	if f.MaxUses == nil || f.CooldownPeriod == nil {
		verr.Add(model.KindMissingUsagePolicyFields, "usage_policy",
			"limited rules require both max_uses and cooldown_period")
		return nil, verr
	}

	if *f.MaxUses <= 0 {
		verr.Add(model.KindInvalidMaxUses, "max_uses", "max_uses must be a positive integer")
	}

	cooldown, ok := period.Decode(*f.CooldownPeriod)
	if !ok {
		verr.Add(model.KindMalformedCooldown, "cooldown_period",
			"cooldown_period must be a duration such as PT30M, PT2H, P7D, P1M or P1Y")
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	return model.RateLimited{MaxUses: *f.MaxUses, Cooldown: cooldown}, nil
}
