package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage subtracts a percentage of the cart subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed subtracts a fixed monetary amount, capped at the subtotal.
	TypeFixed Type = "fixed"
)

var (
	// ErrInvalidCode is returned when a code is unknown or the cart does not
	// satisfy the rule's constraints.
	ErrInvalidCode = errors.New("invalid discount code")
	// ErrExpired is returned when a code is outside its validity window.
	ErrExpired = errors.New("discount code expired")
	// ErrUsageLimitReached is returned when a code has no usage slots left.
	ErrUsageLimitReached = errors.New("discount code usage limit reached")
	// ErrMinTotalNotMet is returned when the cart subtotal is below the
	// rule's minimum.
	ErrMinTotalNotMet = errors.New("cart total below discount minimum")
	// ErrNotEligible is returned when the rule is restricted to SKUs or a
	// customer the cart does not match.
	ErrNotEligible = errors.New("discount code not eligible for this cart")
)

// Rule defines a discount's behaviour and eligibility constraints as stored
// in the rules table. Codes are matched case-insensitively.
type Rule struct {
	Code     string
	Type     Type
	Value    decimal.Decimal
	MinTotal decimal.Decimal
	// EligibleSKUs restricts the rule to carts containing at least one of
	// these SKUs. Empty means any cart.
	EligibleSKUs []string
	// EligibleEmail restricts the rule to a single customer. Empty means any.
	EligibleEmail string
	Description   string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	// MaxUses of zero means unlimited.
	MaxUses int
	Uses    int
}

// Applied is the result of a successful validation: the monetary amount the
// code authorizes against the presented cart state. It is computed fresh on
// every call and is never a cached quote.
type Applied struct {
	Code         string
	Type         Type
	ValueApplied decimal.Decimal
	Description  string
}

// Cart is the evaluator's view of the checkout state: the server-priced
// subtotal plus optional eligibility refinements.
type Cart struct {
	Total decimal.Decimal
	SKUs  []string
	Email string
}

// Repository provides lookup and usage accounting for discount rules.
// IncrementUses is called only at order finalization, never during
// validation, so an abandoned payment cannot consume a usage slot.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}
