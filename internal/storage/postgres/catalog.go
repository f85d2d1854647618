package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nini3008/shakara-sub001/internal/domain/catalog"
)

const listCatalogSQL = `SELECT sku, name, description, category, price, currency, badge, available, sort_order
	FROM catalog_entries
	WHERE category = $1
	ORDER BY sort_order, sku`

// listCatalogLegacySQL targets content-store deployments predating the
// available column; entries from those are treated as available.
const listCatalogLegacySQL = `SELECT sku, name, description, category, price, currency, badge, TRUE AS available, sort_order
	FROM catalog_entries
	WHERE category = $1
	ORDER BY sort_order, sku`

const getCatalogBySKUsSQL = `SELECT sku, name, description, category, price, currency, badge, available, sort_order
	FROM catalog_entries
	WHERE sku = ANY($1)`

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListByCategory returns the entries of one category in display order. When
// the schema predates the available column it retries with the legacy query.
func (r *CatalogRepository) ListByCategory(ctx context.Context, category catalog.Category) ([]catalog.Entry, error) {
	rows, err := r.pool.Query(ctx, listCatalogSQL, string(category))
	if err != nil {
		if !isUndefinedColumn(err) {
			return nil, errors.Wrapf(err, "list catalog %s", category)
		}
		rows, err = r.pool.Query(ctx, listCatalogLegacySQL, string(category))
		if err != nil {
			return nil, errors.Wrapf(err, "list catalog %s (legacy)", category)
		}
	}
	return scanEntries(rows)
}

// GetBySKUs fetches entries for the given SKUs in one query. Unknown SKUs
// are simply absent from the result; callers decide whether that is an error.
func (r *CatalogRepository) GetBySKUs(ctx context.Context, skus []string) ([]catalog.Entry, error) {
	rows, err := r.pool.Query(ctx, getCatalogBySKUsSQL, skus)
	if err != nil {
		return nil, errors.Wrap(err, "get catalog entries")
	}
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]catalog.Entry, error) {
	defer rows.Close()

	var out []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		var category string
		if err := rows.Scan(
			&e.SKU, &e.Name, &e.Description, &category,
			&e.Price, &e.Currency, &e.Badge, &e.Available, &e.SortOrder,
		); err != nil {
			return nil, errors.Wrap(err, "scan catalog entry")
		}
		e.Category = catalog.Category(category)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate catalog entries")
	}
	return out, nil
}
