package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nini3008/shakara-sub001/internal/domain/order"
)

const getOrderSQL = `SELECT tx_ref, gateway_tx_id, gateway_amount, amount, currency, lines, status, created_at
	FROM orders
	WHERE tx_ref = $1`

var _ order.Reader = (*OrderRepository)(nil)

// OrderRepository implements order.Reader backed by PostgreSQL. Orders are
// written exclusively through the promotion store.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByTxRef loads a finalized order, returning order.ErrNotFound when the
// webhook has not (yet) produced one.
func (r *OrderRepository) GetByTxRef(ctx context.Context, txRef string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, getOrderSQL, txRef)

	var o order.Order
	var linesJSON []byte
	err := row.Scan(
		&o.TxRef, &o.GatewayTxID, &o.GatewayAmount, &o.Amount,
		&o.Currency, &linesJSON, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", txRef)
	}

	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, errors.Wrapf(err, "unmarshal lines for %q", txRef)
	}
	return &o, nil
}
