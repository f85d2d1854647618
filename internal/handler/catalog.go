package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/domain/catalog"
)

type catalogEntryResponse struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Badge       string          `json:"badge,omitempty"`
	Available   bool            `json:"available"`
}

// Addons lists the add-on catalog. The storefront renders whatever comes back;
// on a store failure it gets an empty list rather than an error page.
func (h *Handler) Addons(w http.ResponseWriter, r *http.Request) {
	h.listCatalog(w, r, catalog.CategoryAddon)
}

// Tickets lists the ticket catalog, ordered the way the content store ranks
// the tiers.
func (h *Handler) Tickets(w http.ResponseWriter, r *http.Request) {
	h.listCatalog(w, r, catalog.CategoryTicket)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request, category catalog.Category) {
	ctx := r.Context()
	entries, err := h.catalog.ListByCategory(ctx, category)
	if err != nil {
		zctx.From(ctx).Error("List catalog",
			zap.String("category", string(category)),
			zap.Error(err),
		)
		respondJSON(w, http.StatusOK, []catalogEntryResponse{})
		return
	}

	out := make([]catalogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogEntryResponse{
			SKU:         e.SKU,
			Name:        e.Name,
			Description: e.Description,
			Price:       e.Price,
			Currency:    e.Currency,
			Badge:       e.Badge,
			Available:   e.Available,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
