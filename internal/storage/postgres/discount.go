package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nini3008/shakara-sub001/internal/domain/discount"
)

const findDiscountSQL = `SELECT code, discount_type, value, min_total, eligible_skus, eligible_email,
		description, valid_from, valid_until, max_uses, uses
	FROM discounts
	WHERE UPPER(code) = UPPER($1)`

const incrementDiscountUsesSQL = `UPDATE discounts SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount rule by its code, case-insensitively.
// Returns discount.ErrInvalidCode when no rule exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Rule, error) {
	row := r.pool.QueryRow(ctx, findDiscountSQL, code)

	var rule discount.Rule
	var dtype string
	err := row.Scan(
		&rule.Code, &dtype, &rule.Value, &rule.MinTotal,
		&rule.EligibleSKUs, &rule.EligibleEmail, &rule.Description,
		&rule.ValidFrom, &rule.ValidUntil, &rule.MaxUses, &rule.Uses,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrInvalidCode
		}
		return nil, errors.Wrapf(err, "find discount %q", code)
	}
	rule.Type = discount.Type(dtype)
	return &rule, nil
}

// IncrementUses consumes one usage slot for the code. Called only as part of
// order finalization.
func (r *DiscountRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, incrementDiscountUsesSQL, code); err != nil {
		return errors.Wrapf(err, "increment uses for %q", code)
	}
	return nil
}
