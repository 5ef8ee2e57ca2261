package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/dal/paypal"
	"github.com/corray333/backend-labs/storefront/internal/dal/postgres"
	"github.com/corray333/backend-labs/storefront/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/storefront/internal/dal/redis"
	catalogrepo "github.com/corray333/backend-labs/storefront/internal/dal/repositories/catalog/postgres"
	"github.com/corray333/backend-labs/storefront/internal/dal/repositories/notification"
	outboxrepo "github.com/corray333/backend-labs/storefront/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/storefront/internal/dal/stripe"
	"github.com/corray333/backend-labs/storefront/internal/otel"
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/storefront/internal/service/services/paymentsvc"
	httptransport "github.com/corray333/backend-labs/storefront/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/storefront/internal/worker/outbox"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	paymentSvc     *paymentsvc.PaymentService
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	redisClient    *goredis.Client
	rabbitClient   *rabbitmq.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	postgresClient := postgres.MustNewClient()
	redisClient := redis.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	outboxRepo := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	notifier := notification.MustNewShippingNotifier(rabbitClient, outboxRepo)

	// Order creation after a charge goes through orderSvc, which is built below
	// because it refunds through paymentSvc.
	var orderSvc *ordersvc.OrderService
	createOrder := paymentsvc.OrderCreatorFunc(func(ctx context.Context, o order.Order) (*order.Order, error) {
		return orderSvc.Create(ctx, o)
	})

	paymentSvc := paymentsvc.MustNewPaymentService(
		paymentOptions(mustParseCurrency(), postgresClient, redisClient, createOrder)...,
	)

	orderSvc = ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithRefunder(paymentSvc),
		ordersvc.WithShippingNotifier(notifier),
	)

	transport := httptransport.NewHTTPTransport(orderSvc, paymentSvc)
	transport.RegisterRoutes()

	return &App{
		orderSvc:       orderSvc,
		paymentSvc:     paymentSvc,
		transport:      transport,
		outboxWorker:   outboxworker.NewWorker(outboxRepo, rabbitClient),
		postgresClient: postgresClient,
		redisClient:    redisClient,
		rabbitClient:   rabbitClient,
		otelController: otelController,
	}
}

// paymentOptions wires whichever providers are configured. Unconfigured gateways
// are left out so the service reports them as unavailable.
func paymentOptions(
	cur currency.Currency,
	pg *postgres.Client,
	rdb *goredis.Client,
	orders paymentsvc.OrderCreatorFunc,
) []paymentsvc.Option {
	claimTTL := viper.GetDuration("payment.claim_ttl")
	if claimTTL == 0 {
		claimTTL = 24 * time.Hour
	}
	pendingTTL := viper.GetDuration("payment.pending_ttl")
	if pendingTTL == 0 {
		pendingTTL = 3 * time.Hour
	}

	opts := []paymentsvc.Option{
		paymentsvc.WithCatalog(catalogrepo.NewCatalogRepository(pg.Pool())),
		paymentsvc.WithClaimGuard(redis.NewClaimGuard(rdb, claimTTL)),
		paymentsvc.WithPendingStore(redis.NewPendingCheckoutStore(rdb, pendingTTL)),
		paymentsvc.WithOrderCreator(orders),
		paymentsvc.WithCurrency(cur),
	}

	if gw := stripe.MustNewGateway(
		viper.GetString("payment.stripe.return_url"),
		viper.GetDuration("payment.stripe.action_timeout"),
	); gw != nil {
		opts = append(opts, paymentsvc.WithCardGateway(gw))
	} else {
		slog.Warn("Card provider is not configured")
	}

	if gw := paypal.MustNewGateway(context.Background()); gw != nil {
		opts = append(opts, paymentsvc.WithRedirectGateway(gw))
	} else {
		slog.Warn("Redirect provider is not configured")
	}

	return opts
}

func mustParseCurrency() currency.Currency {
	raw := viper.GetString("payment.currency")
	if raw == "" {
		return currency.CurrencyEUR
	}

	cur, err := currency.ParseCurrency(raw)
	if err != nil {
		panic(err)
	}

	return cur
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		slog.Info("Starting outbox worker")
		a.outboxWorker.Start(gctx)

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := a.transport.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped gracefully")
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Application error", "error", err)
	}

	a.close()
}

func (a *App) close() {
	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.otelController.Shutdown(ctx); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
