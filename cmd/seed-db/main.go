// Command seed-db loads the festival catalog and launch discounts into the
// database. It is idempotent: re-running upserts rather than duplicating.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nini3008/shakara-sub001/internal/storage/postgres"
)

type catalogJSON struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Badge       string          `json:"badge"`
	Available   bool            `json:"available"`
	SortOrder   int             `json:"sortOrder"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	return nil
}

const upsertCatalogSQL = `INSERT INTO catalog_entries
	(sku, name, description, category, price, currency, badge, available, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (sku) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	category = EXCLUDED.category,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	badge = EXCLUDED.badge,
	available = EXCLUDED.available,
	sort_order = EXCLUDED.sort_order`

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var entries []catalogJSON
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting catalog entries", slog.Int("count", len(entries)))

	for _, e := range entries {
		if e.Currency == "" {
			e.Currency = "NGN"
		}
		if _, err := pool.Exec(ctx, upsertCatalogSQL,
			e.SKU, e.Name, e.Description, e.Category,
			e.Price, e.Currency, e.Badge, e.Available, e.SortOrder,
		); err != nil {
			return errors.Wrapf(err, "upsert catalog entry %s", e.SKU)
		}

		slog.Info("upserted catalog entry", slog.String("sku", e.SKU), slog.String("name", e.Name))
	}

	return nil
}

const upsertDiscountSQL = `INSERT INTO discounts
	(code, discount_type, value, min_total, description, max_uses)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (code) DO UPDATE SET
	discount_type = EXCLUDED.discount_type,
	value = EXCLUDED.value,
	min_total = EXCLUDED.min_total,
	description = EXCLUDED.description,
	max_uses = EXCLUDED.max_uses`

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding launch discounts")

	discounts := []struct {
		code         string
		discountType string
		value        decimal.Decimal
		minTotal     decimal.Decimal
		description  string
		maxUses      int
	}{
		{
			code:         "EARLYBIRD",
			discountType: "fixed",
			value:        decimal.NewFromInt(20000),
			minTotal:     decimal.NewFromInt(50000),
			description:  "Early bird: NGN 20,000 off orders above NGN 50,000",
			maxUses:      500,
		},
		{
			code:         "GROUPLOVE",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			minTotal:     decimal.NewFromInt(150000),
			description:  "Group love: 10% off group orders",
			maxUses:      0,
		},
		{
			// Stored with the partner's original casing, the same way
			// promo-ingest writes codes. Lookups must still match.
			code:         "ShakaraFan",
			discountType: "fixed",
			value:        decimal.NewFromInt(5000),
			minTotal:     decimal.NewFromInt(30000),
			description:  "Partner promo: NGN 5,000 off orders above NGN 30,000",
			maxUses:      0,
		},
	}

	for _, d := range discounts {
		if _, err := pool.Exec(ctx, upsertDiscountSQL,
			d.code, d.discountType, d.value, d.minTotal, d.description, d.maxUses,
		); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.code)
		}

		slog.Info("upserted discount", slog.String("code", d.code), slog.String("description", d.description))
	}

	return nil
}
