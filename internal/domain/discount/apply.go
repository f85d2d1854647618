package discount

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the monetary amount the rule authorizes against the cart.
// It checks every cart-shape constraint (minimum total, SKU eligibility,
// customer eligibility) but not temporal or usage constraints, which need
// repository state and live in the Evaluator.
//
// The returned amount is always >= 0 and <= cart.Total.
func Apply(rule *Rule, c Cart) (Applied, error) {
	if c.Total.IsNegative() {
		return Applied{}, errors.New("cart total must not be negative")
	}
	if rule.MinTotal.IsPositive() && c.Total.LessThan(rule.MinTotal) {
		return Applied{}, ErrMinTotalNotMet
	}
	if len(rule.EligibleSKUs) > 0 && !containsAny(rule.EligibleSKUs, c.SKUs) {
		return Applied{}, ErrNotEligible
	}
	if rule.EligibleEmail != "" && !strings.EqualFold(rule.EligibleEmail, c.Email) {
		return Applied{}, ErrNotEligible
	}

	var amount decimal.Decimal
	switch rule.Type {
	case TypePercentage:
		amount = c.Total.Mul(rule.Value).Div(hundred)
	case TypeFixed:
		amount = rule.Value
	default:
		return Applied{}, errors.Errorf("unsupported discount type: %q", rule.Type)
	}

	// Clamp to [0, subtotal]: a discount never pushes the total negative.
	amount = decimal.Min(amount, c.Total)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Applied{
		Code:         rule.Code,
		Type:         rule.Type,
		ValueApplied: amount.Round(2),
		Description:  rule.Description,
	}, nil
}

func containsAny(eligible, present []string) bool {
	set := make(map[string]struct{}, len(eligible))
	for _, s := range eligible {
		set[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range present {
		if _, ok := set[strings.ToLower(s)]; ok {
			return true
		}
	}
	return false
}
