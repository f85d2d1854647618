package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/domain/cart"
	"github.com/nini3008/shakara-sub001/internal/domain/order"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
)

type prepareLineRequest struct {
	SKU      string   `json:"sku"`
	Category string   `json:"category"`
	Quantity int      `json:"quantity"`
	Dates    []string `json:"dates,omitempty"`
}

type prepareCheckoutRequest struct {
	FirstName    string               `json:"firstName"`
	LastName     string               `json:"lastName"`
	Email        string               `json:"email"`
	Phone        string               `json:"phone,omitempty"`
	Lines        []prepareLineRequest `json:"lines"`
	DiscountCode string               `json:"discountCode,omitempty"`
}

type prepareCheckoutResponse struct {
	TxRef    string          `json:"txRef"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type fieldErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// PrepareCheckout creates a pending reservation for the submitted cart and
// returns the tx_ref and server-priced amount the browser hands to the
// payment gateway.
func (h *Handler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req prepareCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]cart.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, cart.Line{
			SKU:      l.SKU,
			Category: l.Category,
			Quantity: l.Quantity,
			Dates:    l.Dates,
		})
	}

	result, err := h.reservations.Prepare(ctx, reservation.PrepareRequest{
		Customer: reservation.Customer{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
		},
		Lines:        lines,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		var ve *reservation.ValidationError
		if errors.As(err, &ve) {
			respondJSON(w, http.StatusBadRequest, fieldErrorResponse{Error: ve.Reason, Field: ve.Field})
			return
		}
		var de *reservation.DiscountRejectedError
		if errors.As(err, &de) {
			reason, ok := rejectionReason(de.Err)
			if !ok {
				reason = "discount could not be applied"
			}
			respondJSON(w, http.StatusBadRequest, fieldErrorResponse{Error: reason, Field: "discountCode"})
			return
		}
		if errors.Is(err, reservation.ErrTxRefConflict) {
			respondError(w, http.StatusConflict, "could not allocate a checkout reference, please retry")
			return
		}
		zctx.From(ctx).Error("Prepare checkout", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not prepare checkout")
		return
	}

	respondJSON(w, http.StatusOK, prepareCheckoutResponse{
		TxRef:    result.TxRef,
		Amount:   result.Amount,
		Currency: result.Currency,
	})
}

type orderResponse struct {
	TxRef    string             `json:"txRef"`
	Amount   decimal.Decimal    `json:"amount"`
	Currency string             `json:"currency"`
	Status   string             `json:"status"`
	Lines    []reservation.Line `json:"lines"`
}

// GetOrder returns the finalized order for a tx_ref. 404 means the webhook
// has not landed yet; the storefront polls until it does or times out.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txRef := r.PathValue("txRef")

	o, err := h.orders.GetByTxRef(ctx, txRef)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, http.StatusNotFound, "order not found")
			return
		}
		zctx.From(ctx).Error("Get order", zap.String("tx_ref", txRef), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load order")
		return
	}

	respondJSON(w, http.StatusOK, orderResponse{
		TxRef:    o.TxRef,
		Amount:   o.Amount,
		Currency: o.Currency,
		Status:   o.Status,
		Lines:    o.Lines,
	})
}
