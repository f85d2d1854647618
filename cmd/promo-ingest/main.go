// Command promo-ingest loads partner promo code lists and registers the
// codes that appear on at least two partner lists as fixed-amount discounts.
//
// The lists are large (hundreds of millions of lines), so membership is
// cross-checked with bloom filters: pass 1 builds one filter per list, pass 2
// re-streams each list and collects codes that another list's filter also
// claims, then a bitmask count settles which codes really appear twice.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/nini3008/shakara-sub001/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numLists      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// partnerDiscount is the rule registered for every accepted partner code:
// a flat NGN 5,000 off orders above NGN 30,000.
var partnerDiscount = struct {
	value       decimal.Decimal
	minTotal    decimal.Decimal
	description string
}{
	value:       decimal.NewFromInt(5000),
	minTotal:    decimal.NewFromInt(30000),
	description: "Partner promo: NGN 5,000 off orders above NGN 30,000",
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promobaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	lists := make([]string, numLists)
	for i := range numLists {
		lists[i] = filepath.Join(dataDir, fmt.Sprintf("promobase%d.gz", i+1))
	}
	for _, f := range lists {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check list %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("lists", numLists))

	filters, err := buildFilters(ctx, lists)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting codes on 2+ lists")

	accepted, err := acceptedCodes(ctx, lists, filters)
	if err != nil {
		return errors.Wrap(err, "collect accepted codes")
	}

	slog.Info("accepted codes", slog.Int("count", len(accepted)))

	if len(accepted) == 0 {
		slog.Info("no codes to register")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := registerDiscounts(ctx, pool, accepted); err != nil {
		return errors.Wrap(err, "register discounts")
	}

	return nil
}

func buildFilters(ctx context.Context, lists []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(lists))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range lists {
		g.Go(filterForList(ctx, i, path, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func filterForList(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamList(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("list", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for list %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("list", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// acceptedCodes re-streams every list and keeps codes that another list's
// filter also claims. Per-list bitmasks are merged so a code is accepted only
// when at least two distinct lists carry it.
func acceptedCodes(ctx context.Context, lists []string, filters []*bloom.BloomFilter) ([]string, error) {
	perList := make([]map[string]uint, len(lists))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range lists {
		g.Go(candidatesInList(ctx, i, path, filters, perList))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, candidates := range perList {
		for code, mask := range candidates {
			merged[code] |= mask
		}
	}

	var accepted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			accepted = append(accepted, code)
		}
	}
	return accepted, nil
}

func candidatesInList(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	perList []map[string]uint,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		listBit := uint(1) << uint(idx)
		var count uint64

		if err := streamList(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("list", idx+1),
					slog.Uint64("codes", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= listBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan list %d", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("list", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		perList[idx] = candidates
		return nil
	}
}

// streamList opens a gzip-compressed list and calls fn for each line.
func streamList(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

const registerDiscountSQL = `INSERT INTO discounts
	(code, discount_type, value, min_total, description)
VALUES ($1, 'fixed', $2, $3, $4)
ON CONFLICT (code) DO UPDATE SET
	value = EXCLUDED.value,
	min_total = EXCLUDED.min_total,
	description = EXCLUDED.description`

func registerDiscounts(ctx context.Context, pool *pgxpool.Pool, codes []string) error {
	slog.Info("registering discounts", slog.Int("count", len(codes)))

	for i, code := range codes {
		if _, err := pool.Exec(ctx, registerDiscountSQL,
			code, partnerDiscount.value, partnerDiscount.minTotal, partnerDiscount.description,
		); err != nil {
			return errors.Wrapf(err, "register discount %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("register progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
