package reservation

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nini3008/shakara-sub001/internal/domain/cart"
	"github.com/nini3008/shakara-sub001/internal/domain/catalog"
	"github.com/nini3008/shakara-sub001/internal/domain/discount"
)

// txRefAttempts bounds regeneration when a freshly generated tx_ref collides.
const txRefAttempts = 3

// ValidationError indicates malformed customer or cart input. It maps to a
// 400-class response, not a server error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DiscountRejectedError indicates the quoted discount no longer applies to
// the finalized line set.
type DiscountRejectedError struct {
	Code string
	Err  error
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("discount %s rejected: %v", e.Code, e.Err)
}

func (e *DiscountRejectedError) Unwrap() error { return e.Err }

// ErrTxRefConflict is returned when tx_ref generation kept colliding.
var ErrTxRefConflict = errors.New("could not allocate a unique tx_ref")

// Customer holds the contact fields captured at checkout.
type Customer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// PrepareRequest is the explicit checkout session object: customer contact,
// the browser's cart lines, and an optional discount code to re-validate.
type PrepareRequest struct {
	Customer     Customer
	Lines        []cart.Line
	DiscountCode string
}

// PrepareResult is handed back to the browser before the gateway redirect.
type PrepareResult struct {
	TxRef    string
	Amount   decimal.Decimal
	Currency string
}

// Service turns a client cart into a durable pending reservation. Prices
// always come from the catalog and the discount is re-evaluated server-side,
// so nothing the browser claims about money survives into the reservation.
type Service struct {
	catalog      catalog.Repository
	discounts    discount.Validator
	reservations Repository
	newTxRef     func() string
}

// NewService creates a reservation Service with the required dependencies.
func NewService(cat catalog.Repository, discounts discount.Validator, repo Repository) *Service {
	return &Service{
		catalog:      cat,
		discounts:    discounts,
		reservations: repo,
		newTxRef: func() string {
			return "SHKR-" + uuid.New().String()
		},
	}
}

// Prepare validates the request, re-prices every line from the catalog,
// re-runs discount evaluation, and persists a pending reservation under a
// fresh tx_ref. The reservation row exists before this returns, so any
// webhook for the returned tx_ref will find its anchor.
func (s *Service) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}

	c, err := buildCart(req.Lines)
	if err != nil {
		return nil, err
	}

	entries, currency, err := s.priceCart(ctx, c)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(entries))
	for sku, e := range entries {
		prices[sku] = e.Price
	}
	subtotal, err := c.Subtotal(prices)
	if err != nil {
		return nil, errors.Wrap(err, "compute subtotal")
	}

	discountAmount := decimal.Zero
	if req.DiscountCode != "" {
		applied, err := s.discounts.Validate(ctx, req.DiscountCode, discount.Cart{
			Total: subtotal,
			SKUs:  c.SKUs(),
			Email: req.Customer.Email,
		})
		if err != nil {
			if isDiscountRejection(err) {
				return nil, &DiscountRejectedError{Code: req.DiscountCode, Err: err}
			}
			// Anything else is a lookup failure, not a verdict on the code.
			return nil, errors.Wrap(err, "validate discount")
		}
		discountAmount = applied.ValueApplied
	}

	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	lines := make([]Line, 0, c.Len())
	for _, l := range c.Lines() {
		e := entries[l.SKU]
		lines = append(lines, Line{
			SKU:       l.SKU,
			Name:      e.Name,
			Quantity:  l.Quantity,
			UnitPrice: e.Price,
			Dates:     l.Dates,
		})
	}

	r := &Reservation{
		FirstName:      strings.TrimSpace(req.Customer.FirstName),
		LastName:       strings.TrimSpace(req.Customer.LastName),
		Email:          req.Customer.Email,
		Phone:          sanitizePhone(req.Customer.Phone),
		Lines:          lines,
		Subtotal:       subtotal.Round(2),
		DiscountCode:   strings.ToUpper(req.DiscountCode),
		DiscountAmount: discountAmount.Round(2),
		Amount:         total,
		Currency:       currency,
		Status:         StatusPending,
	}

	// A collision on a freshly generated tx_ref means the generator produced
	// a duplicate; regenerate rather than touching the existing row.
	for attempt := 0; attempt < txRefAttempts; attempt++ {
		r.TxRef = s.newTxRef()
		err := s.reservations.Create(ctx, r)
		if err == nil {
			return &PrepareResult{TxRef: r.TxRef, Amount: r.Amount, Currency: r.Currency}, nil
		}
		if !errors.Is(err, ErrTxRefExists) {
			return nil, errors.Wrap(err, "create reservation")
		}
	}
	return nil, ErrTxRefConflict
}

// isDiscountRejection reports whether err is one of the evaluator's verdicts
// about the code itself, as opposed to a failure to evaluate at all.
func isDiscountRejection(err error) bool {
	return errors.Is(err, discount.ErrInvalidCode) ||
		errors.Is(err, discount.ErrExpired) ||
		errors.Is(err, discount.ErrUsageLimitReached) ||
		errors.Is(err, discount.ErrMinTotalNotMet) ||
		errors.Is(err, discount.ErrNotEligible)
}

func buildCart(lines []cart.Line) (*cart.Cart, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "lines", Reason: "at least one line item is required"}
	}
	c := cart.New()
	for i, l := range lines {
		if strings.TrimSpace(l.SKU) == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("lines[%d].sku", i), Reason: "sku is required"}
		}
		if l.Quantity < 1 {
			return nil, &ValidationError{Field: fmt.Sprintf("lines[%d].quantity", i), Reason: "quantity must be at least 1"}
		}
		c.Add(l)
	}
	return c, nil
}

// priceCart fetches the catalog entries for every cart SKU and rejects
// unknown or unavailable SKUs. It returns the entry map and the currency all
// entries share.
func (s *Service) priceCart(ctx context.Context, c *cart.Cart) (map[string]catalog.Entry, string, error) {
	skus := c.SKUs()
	fetched, err := s.catalog.GetBySKUs(ctx, skus)
	if err != nil {
		return nil, "", errors.Wrap(err, "fetch catalog entries")
	}

	entries := make(map[string]catalog.Entry, len(fetched))
	for _, e := range fetched {
		entries[e.SKU] = e
	}

	currency := ""
	for _, sku := range skus {
		e, ok := entries[sku]
		if !ok {
			return nil, "", &ValidationError{Field: "lines", Reason: fmt.Sprintf("unknown sku %s", sku)}
		}
		if !e.Available {
			return nil, "", &ValidationError{Field: "lines", Reason: fmt.Sprintf("sku %s is not available", sku)}
		}
		if currency == "" {
			currency = e.Currency
		} else if currency != e.Currency {
			return nil, "", &ValidationError{Field: "lines", Reason: "mixed currencies in one cart"}
		}
	}
	return entries, currency, nil
}

func validateCustomer(c Customer) error {
	if strings.TrimSpace(c.FirstName) == "" {
		return &ValidationError{Field: "firstName", Reason: "first name is required"}
	}
	if strings.TrimSpace(c.LastName) == "" {
		return &ValidationError{Field: "lastName", Reason: "last name is required"}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "a valid email address is required"}
	}
	if c.Phone != "" {
		digits := sanitizePhone(c.Phone)
		if len(digits) < 7 || len(digits) > 15 {
			return &ValidationError{Field: "phone", Reason: "phone must contain 7 to 15 digits"}
		}
	}
	return nil
}

// sanitizePhone strips everything but digits, keeping a leading plus.
func sanitizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.TrimPrefix(s, "+")
}
