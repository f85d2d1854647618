// Package app wires configuration, storage, domain services, and the HTTP
// server into a running checkout API.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/nini3008/shakara-sub001/internal/domain/discount"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
	"github.com/nini3008/shakara-sub001/internal/gateway"
	"github.com/nini3008/shakara-sub001/internal/handler"
	"github.com/nini3008/shakara-sub001/internal/storage/postgres"
	"github.com/nini3008/shakara-sub001/internal/webhook"
	"github.com/nini3008/shakara-sub001/pkg/health"
	"github.com/nini3008/shakara-sub001/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	reservationRepo := postgres.NewReservationRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	promotionStore := postgres.NewPromotionStore(pool)

	// Domain services.
	evaluator := discount.NewEvaluator(discountRepo)
	reservationSvc := reservation.NewService(catalogRepo, evaluator, reservationRepo)
	verifier := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		SecretKey:      cfg.Gateway.SecretKey,
		Timeout:        cfg.Gateway.Timeout,
		TracerProvider: m.TracerProvider(),
	})
	reconciler := webhook.NewReconciler([]byte(cfg.Webhook.Secret), verifier, promotionStore)

	h := handler.NewHandler(catalogRepo, evaluator, reservationSvc, orderRepo, reconciler)

	mux := http.NewServeMux()
	mux.Handle("/livez", healthSvc.LiveHandler())
	mux.Handle("/readyz", healthSvc.ReadyHandler())
	h.Register(mux)

	metrics, err := httpmiddleware.RequestMetrics(m.MeterProvider().Meter("checkout-api"))
	if err != nil {
		return errors.Wrap(err, "create request metrics")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "checkout-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(cfg.CORS.Origins),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			metrics,
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, let the balancer drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
