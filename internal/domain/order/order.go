package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
)

// ErrNotFound is returned when no order exists for a tx_ref. Callers polling
// after the gateway redirect must treat this as "webhook not yet processed",
// not as a failure.
var ErrNotFound = errors.New("order not found")

// StatusPaid is the only status an order is ever created with. Orders are
// immutable after creation.
const StatusPaid = "paid"

// Order is the finalized record of a settled payment. Its existence for a
// tx_ref is the sole source of truth for "payment succeeded"; at most one
// order may ever exist per tx_ref.
type Order struct {
	TxRef string
	// GatewayTxID and GatewayAmount are the verification evidence captured
	// from the gateway's transaction-lookup endpoint, not from the webhook
	// payload.
	GatewayTxID   int64
	GatewayAmount decimal.Decimal
	Amount        decimal.Decimal
	Currency      string
	Lines         []reservation.Line
	Status        string
	CreatedAt     time.Time
}

// Reader exposes finalized orders to the storefront's post-redirect polling.
type Reader interface {
	GetByTxRef(ctx context.Context, txRef string) (*Order, error)
}
