package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/domain/discount"
)

type validateDiscountRequest struct {
	Code  string          `json:"code"`
	Total decimal.Decimal `json:"total"`
	SKUs  []string        `json:"skus"`
	Email string          `json:"email"`
}

type appliedDiscountResponse struct {
	Code        string          `json:"code"`
	Type        discount.Type   `json:"type"`
	AmountOff   decimal.Decimal `json:"amountOff"`
	Description string          `json:"description,omitempty"`
}

type validateDiscountResponse struct {
	OK       bool                     `json:"ok"`
	Discount *appliedDiscountResponse `json:"discount,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// ValidateDiscount quotes a discount against the client's current cart. The
// quote is advisory; Prepare re-evaluates against server prices before any
// money is reserved, and nothing here consumes usage.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, validateDiscountResponse{OK: false, Error: "invalid request body"})
		return
	}
	if req.Code == "" {
		respondJSON(w, http.StatusBadRequest, validateDiscountResponse{OK: false, Error: "code is required"})
		return
	}

	applied, err := h.discounts.Validate(ctx, req.Code, discount.Cart{
		Total: req.Total,
		SKUs:  req.SKUs,
		Email: req.Email,
	})
	if err != nil {
		if reason, ok := rejectionReason(err); ok {
			respondJSON(w, http.StatusBadRequest, validateDiscountResponse{OK: false, Error: reason})
			return
		}
		zctx.From(ctx).Error("Validate discount", zap.String("code", req.Code), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not validate discount")
		return
	}

	respondJSON(w, http.StatusOK, validateDiscountResponse{
		OK: true,
		Discount: &appliedDiscountResponse{
			Code:        applied.Code,
			Type:        applied.Type,
			AmountOff:   applied.ValueApplied,
			Description: applied.Description,
		},
	})
}

// rejectionReason maps the evaluator's sentinel errors onto client-facing
// messages. Anything unmapped is treated as a server failure.
func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, discount.ErrInvalidCode):
		return "invalid discount code", true
	case errors.Is(err, discount.ErrExpired):
		return "this discount code has expired", true
	case errors.Is(err, discount.ErrUsageLimitReached):
		return "this discount code has been fully redeemed", true
	case errors.Is(err, discount.ErrMinTotalNotMet):
		return "your order total does not qualify for this discount", true
	case errors.Is(err, discount.ErrNotEligible):
		return "this discount does not apply to your order", true
	}
	return "", false
}
