// Package handler exposes the checkout core over HTTP. The storefront pages
// themselves are rendered elsewhere; this surface only carries the data the
// checkout pipeline needs.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nini3008/shakara-sub001/internal/domain/catalog"
	"github.com/nini3008/shakara-sub001/internal/domain/discount"
	"github.com/nini3008/shakara-sub001/internal/domain/order"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
	"github.com/nini3008/shakara-sub001/internal/webhook"
)

// Handler holds the domain dependencies behind the HTTP surface.
type Handler struct {
	catalog      catalog.Repository
	discounts    discount.Validator
	reservations *reservation.Service
	orders       order.Reader
	reconciler   *webhook.Reconciler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cat catalog.Repository,
	discounts discount.Validator,
	reservations *reservation.Service,
	orders order.Reader,
	reconciler *webhook.Reconciler,
) *Handler {
	return &Handler{
		catalog:      cat,
		discounts:    discounts,
		reservations: reservations,
		orders:       orders,
		reconciler:   reconciler,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/addons", h.Addons)
	mux.HandleFunc("GET /api/tickets", h.Tickets)
	mux.HandleFunc("POST /api/discounts/validate", h.ValidateDiscount)
	mux.HandleFunc("POST /api/checkout/prepare", h.PrepareCheckout)
	mux.HandleFunc("POST /api/checkout/webhook", h.Webhook)
	mux.HandleFunc("GET /api/orders/{txRef}", h.GetOrder)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
