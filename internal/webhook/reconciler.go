// Package webhook reconciles asynchronous payment notifications against
// reservations. It is the only place a reservation becomes an order.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/domain/order"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
	"github.com/nini3008/shakara-sub001/internal/gateway"
)

var (
	// ErrBadSignature is returned when the HMAC over the raw body does not
	// match the signature header, or the secret/signature is missing. The
	// caller responds 401 and must not touch any state first.
	ErrBadSignature = errors.New("webhook signature mismatch")

	// ErrNotPending is returned by Store.Promote when the conditional update
	// finds the reservation no longer pending: a concurrent delivery already
	// promoted it. The loser becomes a no-op.
	ErrNotPending = errors.New("reservation is not pending")
)

// Store is the durable side of reconciliation. Promote must be atomic: the
// status flip, the order insert, and the discount usage consumption either
// all happen or none do, guarded by status = pending.
type Store interface {
	GetReservation(ctx context.Context, txRef string) (*reservation.Reservation, error)
	Promote(ctx context.Context, o *order.Order, discountCode string) error
}

// Outcome classifies how a delivery was handled. Everything except a
// transient failure is acknowledged with 200 so the gateway stops
// redelivering.
type Outcome string

const (
	// OutcomeConfirmed: the reservation was promoted and an order created.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeIgnoredEvent: not a charge.completed notification.
	OutcomeIgnoredEvent Outcome = "ignored_event"
	// OutcomeMalformed: body unparseable or identifiers missing. Third-party
	// notifications we cannot attribute are acknowledged, never retried.
	OutcomeMalformed Outcome = "malformed"
	// OutcomeNotVerified: the gateway's own verify endpoint says the charge
	// did not succeed. Terminal; the reservation stays pending.
	OutcomeNotVerified Outcome = "not_verified"
	// OutcomeNoReservation: no reservation exists for the tx_ref.
	OutcomeNoReservation Outcome = "no_reservation"
	// OutcomeAlreadyProcessed: duplicate delivery for a reservation that is
	// no longer pending.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeAmountMismatch: verified amount or currency differs from the
	// reservation. Left pending for manual reconciliation.
	OutcomeAmountMismatch Outcome = "amount_mismatch"
	// OutcomeTxRefMismatch: the gateway verified the charge against a
	// different tx_ref than the webhook named. Left pending for manual
	// reconciliation.
	OutcomeTxRefMismatch Outcome = "tx_ref_mismatch"
)

// Result describes a processed delivery.
type Result struct {
	Outcome Outcome
	TxRef   string
}

// Reconciler authenticates, re-verifies, and settles payment notifications.
type Reconciler struct {
	secret   []byte
	verifier gateway.Verifier
	store    Store
}

// NewReconciler creates a Reconciler. secret is the shared webhook signing
// secret configured at the gateway.
func NewReconciler(secret []byte, verifier gateway.Verifier, store Store) *Reconciler {
	return &Reconciler{secret: secret, verifier: verifier, store: store}
}

// Process runs the reconciliation protocol over one delivery.
//
// Error contract: ErrBadSignature means reject with 401. Any other non-nil
// error is transient (verify call or storage failed) and the caller should
// respond non-200 so the gateway redelivers. A nil error with a non-confirmed
// Outcome is an acknowledged no-op.
func (r *Reconciler) Process(ctx context.Context, body []byte, signature string) (Result, error) {
	// Authentication comes first: nothing in the payload is read, and no
	// state is touched, until the signature over the raw body checks out.
	if !r.authentic(body, signature) {
		return Result{}, ErrBadSignature
	}

	lg := zctx.From(ctx)

	n, err := parseNotification(body)
	if err != nil {
		lg.Warn("Unparseable webhook body", zap.Error(err))
		return Result{Outcome: OutcomeMalformed}, nil
	}

	if n.Event != EventChargeCompleted {
		return Result{Outcome: OutcomeIgnoredEvent, TxRef: n.TxRef}, nil
	}

	if n.TransactionID == 0 || n.TxRef == "" {
		lg.Warn("Webhook missing identifiers",
			zap.Int64("transaction_id", n.TransactionID),
			zap.String("tx_ref", n.TxRef),
		)
		return Result{Outcome: OutcomeMalformed, TxRef: n.TxRef}, nil
	}

	lg = lg.With(zap.String("tx_ref", n.TxRef), zap.Int64("transaction_id", n.TransactionID))

	// Re-verify with the gateway; the webhook's own amount and status fields
	// were never even parsed.
	verified, err := r.verifier.VerifyTransaction(ctx, n.TransactionID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotSuccessful) {
			lg.Info("Charge did not verify as successful", zap.Error(err))
			return Result{Outcome: OutcomeNotVerified, TxRef: n.TxRef}, nil
		}
		return Result{TxRef: n.TxRef}, errors.Wrap(err, "verify transaction")
	}

	res, err := r.store.GetReservation(ctx, n.TxRef)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			lg.Warn("No reservation for webhook tx_ref")
			return Result{Outcome: OutcomeNoReservation, TxRef: n.TxRef}, nil
		}
		return Result{TxRef: n.TxRef}, errors.Wrap(err, "load reservation")
	}

	if res.Status != reservation.StatusPending {
		lg.Info("Reservation already settled", zap.String("status", string(res.Status)))
		return Result{Outcome: OutcomeAlreadyProcessed, TxRef: n.TxRef}, nil
	}

	// The gateway's idea of which reservation this pays for must agree with
	// the webhook's, and the money must match to the kobo.
	if verified.TxRef != "" && verified.TxRef != res.TxRef {
		lg.Error("Verified tx_ref does not match reservation",
			zap.String("verified_tx_ref", verified.TxRef))
		return Result{Outcome: OutcomeTxRefMismatch, TxRef: n.TxRef}, nil
	}
	if !verified.Amount.Equal(res.Amount) || verified.Currency != res.Currency {
		lg.Error("Verified amount does not match reservation",
			zap.String("verified_amount", verified.Amount.String()),
			zap.String("verified_currency", verified.Currency),
			zap.String("reserved_amount", res.Amount.String()),
			zap.String("reserved_currency", res.Currency),
		)
		return Result{Outcome: OutcomeAmountMismatch, TxRef: n.TxRef}, nil
	}

	o := &order.Order{
		TxRef:         res.TxRef,
		GatewayTxID:   verified.ID,
		GatewayAmount: verified.Amount,
		Amount:        res.Amount,
		Currency:      res.Currency,
		Lines:         res.Lines,
		Status:        order.StatusPaid,
	}
	if err := r.store.Promote(ctx, o, res.DiscountCode); err != nil {
		if errors.Is(err, ErrNotPending) {
			// A concurrent delivery won the conditional update.
			lg.Info("Reservation promoted by a concurrent delivery")
			return Result{Outcome: OutcomeAlreadyProcessed, TxRef: n.TxRef}, nil
		}
		// Leave the reservation pending; the gateway will redeliver.
		return Result{TxRef: n.TxRef}, errors.Wrap(err, "promote reservation")
	}

	lg.Info("Reservation confirmed", zap.String("amount", res.Amount.String()))
	return Result{Outcome: OutcomeConfirmed, TxRef: n.TxRef}, nil
}

// authentic recomputes the HMAC-SHA256 of body under the shared secret and
// compares it in constant time against the hex signature from the header.
func (r *Reconciler) authentic(body []byte, signature string) bool {
	if len(r.secret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, r.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Sign computes the hex signature for body under secret. Shared with tests
// and tooling that need to produce valid deliveries.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
