// Package app wires configuration, storage, the payment gateway, and HTTP
// handlers into a running server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vzdolci/storefront/internal/checkout"
	"github.com/vzdolci/storefront/internal/domain/cart"
	"github.com/vzdolci/storefront/internal/domain/order"
	"github.com/vzdolci/storefront/internal/gateway/mercadopago"
	"github.com/vzdolci/storefront/internal/handler"
	"github.com/vzdolci/storefront/internal/storage/memory"
	"github.com/vzdolci/storefront/internal/storage/postgres"
	"github.com/vzdolci/storefront/internal/webhook"
	"github.com/vzdolci/storefront/internal/whatsapp"
	"github.com/vzdolci/storefront/pkg/health"
	"github.com/vzdolci/storefront/pkg/httpmiddleware"
)

const cartFlushDebounce = 2 * time.Second

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Storage: PostgreSQL when configured, in-memory otherwise. The
	// in-memory mode loses state on restart and exists for local
	// development.
	var (
		pool        *pgxpool.Pool
		cartRepo    cart.SnapshotRepository
		orderRepo   order.Repository
		eventRepo   webhook.EventRepository
		paymentRepo webhook.PaymentSink
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})

		cartRepo = postgres.NewCartRepository(pool)
		orderRepo = postgres.NewOrderRepository(pool)
		eventRepo = postgres.NewWebhookEventRepository(pool)
		paymentRepo = postgres.NewPaymentRepository(pool)
	} else {
		lg.Warn("No database configured, running on in-memory storage")
		cartRepo = memory.NewCartRepository()
		orderRepo = memory.NewOrderRepository()
		eventRepo = memory.NewWebhookEventRepository()
		paymentRepo = memory.NewPaymentRepository()
	}

	// Domain services.
	catalogRepo := memory.NewCatalogRepository()
	orderService := order.NewService(catalogRepo, orderRepo)
	cartStore := cart.NewStore(cartRepo, cartFlushDebounce, lg.Named("cart"))
	defer cartStore.Close(context.Background())

	// Outbound integrations. Both are optional: without credentials the
	// corresponding checkout paths report themselves unavailable.
	var gateway *mercadopago.Client
	if client, err := mercadopago.NewClient(mercadopago.Config{
		AccessToken:     cfg.MercadoPago.AccessToken,
		BaseURL:         cfg.MercadoPago.BaseURL,
		NotificationURL: cfg.MercadoPago.NotificationURL,
		SiteBaseURL:     cfg.SiteBaseURL,
	}); err != nil {
		lg.Warn("Mercado Pago gateway disabled", zap.Error(err))
	} else {
		gateway = client
	}

	var wa *whatsapp.Builder
	if builder, err := whatsapp.NewBuilder(cfg.WhatsApp.Number); err != nil {
		lg.Warn("WhatsApp checkout disabled", zap.Error(err))
	} else {
		wa = builder
	}

	// Checkout sessions. A nil gateway interface keeps the PIX guard in
	// the manager working; an interface holding a nil *Client would not.
	var checkoutGateway checkout.Gateway
	if gateway != nil {
		checkoutGateway = gateway
	}
	manager := checkout.NewManager(checkoutGateway, orderService, cartStore, wa, checkout.Options{
		PollInterval: cfg.Checkout.PollInterval,
		SessionTTL:   cfg.Checkout.SessionTTL,
	}, lg)
	defer manager.Close()

	// Webhook processing.
	var paymentSource webhook.PaymentSource
	if gateway != nil {
		paymentSource = gateway
	}
	processor := webhook.NewProcessor(
		webhook.NewVerifier(cfg.MercadoPago.WebhookSecret),
		eventRepo,
		paymentSource,
		paymentRepo,
		orderService,
		lg,
	)

	// HTTP handlers.
	var handlerGateway handler.Gateway
	if gateway != nil {
		handlerGateway = gateway
	}
	h := handler.NewHandler(
		catalogRepo,
		cartStore,
		manager,
		handlerGateway,
		paymentRepo,
		processor,
		handler.NewRefundAuth(cfg.Refund.APIKey, cfg.Refund.Pepper),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, cfg.RateLimit.Max, cfg.RateLimit.Window),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: on context cancellation flip readiness, let load
	// balancers drain, then stop the server.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
