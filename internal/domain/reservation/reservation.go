package reservation

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the reservation lifecycle state. pending reservations are the
// idempotency anchor for webhook reconciliation; confirmed and expired are
// terminal. failed exists for manual ops tooling and is never set by the
// reconciler, which leaves transiently-failed promotions pending for retry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
)

var (
	// ErrNotFound is returned when no reservation exists for a tx_ref.
	ErrNotFound = errors.New("reservation not found")
	// ErrTxRefExists is returned when a reservation insert collides on
	// tx_ref. The caller must regenerate, never overwrite.
	ErrTxRefExists = errors.New("tx_ref already reserved")
)

// Line is a server-priced snapshot of one cart line at reservation time.
// The unit price comes from the catalog, never from the client.
type Line struct {
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Dates     []string        `json:"dates,omitempty"`
}

// Reservation binds a tx_ref to a priced, discount-adjusted cart snapshot.
// It is created exactly once per checkout attempt, before the browser is
// redirected to the payment gateway, and never deleted.
type Reservation struct {
	TxRef          string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Lines          []Line
	Subtotal       decimal.Decimal
	DiscountCode   string
	DiscountAmount decimal.Decimal
	Amount         decimal.Decimal
	Currency       string
	Status         Status
	CreatedAt      time.Time
}

// Repository defines persistence for reservations. Mutation is limited to
// Create and the status sweep; the pending-to-confirmed transition lives in
// the promotion store used by the webhook reconciler.
type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByTxRef(ctx context.Context, txRef string) (*Reservation, error)
	// ExpireBefore moves pending reservations created before cutoff to
	// expired, returning how many rows changed.
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
