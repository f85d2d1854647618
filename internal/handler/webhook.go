package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/webhook"
)

// SignatureHeader carries the gateway's hex HMAC over the raw request body.
const SignatureHeader = "verif-hash"

// maxWebhookBody bounds how much of a delivery we are willing to read.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Status string `json:"status"`
}

// Webhook receives payment notifications from the gateway.
//
// Response contract: 401 for a bad signature, 5xx for transient failures the
// gateway should redeliver, 200 for everything else including no-ops. The
// reconciler decides which is which.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	result, err := h.reconciler.Process(ctx, body, r.Header.Get(SignatureHeader))
	if err != nil {
		if errors.Is(err, webhook.ErrBadSignature) {
			zctx.From(ctx).Warn("Rejected webhook with bad signature",
				zap.String("remote_addr", r.RemoteAddr))
			respondError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		// Transient. A non-200 here is a redelivery request, not an error page.
		zctx.From(ctx).Error("Webhook processing failed",
			zap.String("tx_ref", result.TxRef), zap.Error(err))
		respondError(w, http.StatusBadGateway, "temporarily unable to process notification")
		return
	}

	respondJSON(w, http.StatusOK, webhookResponse{Status: string(result.Outcome)})
}
