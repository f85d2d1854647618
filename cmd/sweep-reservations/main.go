// Command sweep-reservations expires pending reservations older than a
// cutoff. It runs as a one-shot job (cron or a scheduler) so abandoned
// checkouts do not linger as pending forever. A late webhook for an expired
// reservation is simply acknowledged without promotion.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/nini3008/shakara-sub001/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		olderThan   time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&olderThan, "older-than", 30*time.Minute, "expire pending reservations older than this")
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

	if err := run(ctx, databaseURL, olderThan); err != nil {
		slog.Error("sweep failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, olderThan time.Duration) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	cutoff := time.Now().Add(-olderThan)
	slog.Info("sweeping pending reservations", slog.Time("cutoff", cutoff))

	expired, err := postgres.NewReservationRepository(pool).ExpireBefore(ctx, cutoff)
	if err != nil {
		return errors.Wrap(err, "expire reservations")
	}

	slog.Info("sweep complete", slog.Int64("expired", expired))
	return nil
}
