package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nini3008/shakara-sub001/internal/domain/order"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
	"github.com/nini3008/shakara-sub001/internal/webhook"
)

const confirmReservationSQL = `UPDATE reservations
	SET status = 'confirmed', updated_at = now()
	WHERE tx_ref = $1 AND status = 'pending'`

const createOrderSQL = `INSERT INTO orders
	(tx_ref, gateway_tx_id, gateway_amount, amount, currency, lines, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

var _ webhook.Store = (*PromotionStore)(nil)

// PromotionStore implements webhook.Store: the single place a reservation
// becomes an order. The conditional status update is the serialization point
// for concurrent webhook deliveries of the same tx_ref: exactly one
// delivery sees a row change; every other sees webhook.ErrNotPending.
type PromotionStore struct {
	pool         *pgxpool.Pool
	reservations *ReservationRepository
}

// NewPromotionStore returns a PromotionStore that uses the given pool.
func NewPromotionStore(pool *pgxpool.Pool) *PromotionStore {
	return &PromotionStore{
		pool:         pool,
		reservations: NewReservationRepository(pool),
	}
}

// GetReservation loads the reservation for a tx_ref.
func (s *PromotionStore) GetReservation(ctx context.Context, txRef string) (*reservation.Reservation, error) {
	return s.reservations.GetByTxRef(ctx, txRef)
}

// Promote atomically confirms the reservation, creates the order with its
// verification evidence, and consumes one discount usage slot when a code
// was applied. On any failure the transaction rolls back and the reservation
// stays pending.
func (s *PromotionStore) Promote(ctx context.Context, o *order.Order, discountCode string) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return errors.Wrap(err, "marshal order lines")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin promotion tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx, confirmReservationSQL, o.TxRef)
	if err != nil {
		return errors.Wrapf(err, "confirm reservation %q", o.TxRef)
	}
	if tag.RowsAffected() == 0 {
		return webhook.ErrNotPending
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		o.TxRef, o.GatewayTxID, o.GatewayAmount, o.Amount, o.Currency,
		linesJSON, o.Status,
	)
	if err != nil {
		// The orders primary key backstops the conditional update: even if
		// the status flip raced, a second insert for the tx_ref cannot land.
		if isUniqueViolation(err) {
			return webhook.ErrNotPending
		}
		return errors.Wrapf(err, "create order %q", o.TxRef)
	}

	if discountCode != "" {
		if _, err := tx.Exec(ctx, incrementDiscountUsesSQL, discountCode); err != nil {
			return errors.Wrapf(err, "consume discount %q", discountCode)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit promotion tx")
	}
	return nil
}
