package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
)

const createReservationSQL = `INSERT INTO reservations
	(tx_ref, first_name, last_name, email, phone, lines, subtotal,
	 discount_code, discount_amount, amount, currency, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const getReservationSQL = `SELECT tx_ref, first_name, last_name, email, phone, lines, subtotal,
		discount_code, discount_amount, amount, currency, status, created_at
	FROM reservations
	WHERE tx_ref = $1`

const expireReservationsSQL = `UPDATE reservations
	SET status = 'expired', updated_at = now()
	WHERE status = 'pending' AND created_at < $1`

var _ reservation.Repository = (*ReservationRepository)(nil)

// ReservationRepository implements reservation.Repository backed by
// PostgreSQL.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository returns a ReservationRepository using the pool.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

// Create persists a new pending reservation. A tx_ref collision surfaces as
// reservation.ErrTxRefExists; the existing row is never touched.
func (r *ReservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	linesJSON, err := json.Marshal(res.Lines)
	if err != nil {
		return errors.Wrap(err, "marshal reservation lines")
	}

	_, err = r.pool.Exec(ctx, createReservationSQL,
		res.TxRef, res.FirstName, res.LastName, res.Email, res.Phone,
		linesJSON, res.Subtotal, res.DiscountCode, res.DiscountAmount,
		res.Amount, res.Currency, string(res.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return reservation.ErrTxRefExists
		}
		return errors.Wrapf(err, "create reservation %q", res.TxRef)
	}
	return nil
}

// GetByTxRef loads a reservation, returning reservation.ErrNotFound when no
// row exists.
func (r *ReservationRepository) GetByTxRef(ctx context.Context, txRef string) (*reservation.Reservation, error) {
	return scanReservation(r.pool.QueryRow(ctx, getReservationSQL, txRef), txRef)
}

// ExpireBefore sweeps pending reservations created before cutoff to expired.
func (r *ReservationRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, expireReservationsSQL, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "expire reservations")
	}
	return tag.RowsAffected(), nil
}

func scanReservation(row pgx.Row, txRef string) (*reservation.Reservation, error) {
	var res reservation.Reservation
	var status string
	var linesJSON []byte

	err := row.Scan(
		&res.TxRef, &res.FirstName, &res.LastName, &res.Email, &res.Phone,
		&linesJSON, &res.Subtotal, &res.DiscountCode, &res.DiscountAmount,
		&res.Amount, &res.Currency, &status, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, reservation.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get reservation %q", txRef)
	}

	if err := json.Unmarshal(linesJSON, &res.Lines); err != nil {
		return nil, errors.Wrapf(err, "unmarshal lines for %q", txRef)
	}
	res.Status = reservation.Status(status)
	return &res, nil
}
