package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	cancelorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/cancel_order"
	capturepaymentorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/capture_payment_order"
	createintent "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/create_intent"
	createorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/create_order"
	createpaymentorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/create_payment_order"
	getorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/get_order"
	listorders "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/list_orders"
	notifyshipping "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/notify_shipping"
	refundorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/refund_order"
	updateorder "github.com/corray333/backend-labs/storefront/internal/transport/http/v1/update_order"
	"github.com/corray333/backend-labs/storefront/pkg/http/middleware/auth"
	"github.com/corray333/backend-labs/storefront/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type orderService interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
	Apply(ctx context.Context, id string, patch order.Patch) (*order.Order, error)
	Cancel(ctx context.Context, id, by, reason string) (*order.Order, error)
	Refund(ctx context.Context, id, paymentIntentID string) (*order.Order, error)
	NotifyShipping(ctx context.Context, id string) (string, error)
}

type paymentService interface {
	CreateIntent(ctx context.Context, req payment.CheckoutRequest) (payment.Intent, error)
	CreateOrder(ctx context.Context, req payment.CheckoutRequest) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error)
	RecordIntentPayment(ctx context.Context, req payment.RecordRequest) (*order.Order, error)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	orders   orderService
	payments paymentService

	authSecret []byte
	authIssuer string
}

type option func(*HTTPTransport)

// WithOperatorAuth overrides the JWT secret and issuer used for operator routes.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOperatorAuth(secret []byte, issuer string) option {
	return func(h *HTTPTransport) {
		h.authSecret = secret
		h.authIssuer = issuer
	}
}

// NewHTTPTransport creates a transport. Operator auth defaults to JWT_SECRET and auth.issuer.
func NewHTTPTransport(orders orderService, payments paymentService, opts ...option) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	h := &HTTPTransport{
		server:     server,
		router:     router,
		orders:     orders,
		payments:   payments,
		authSecret: []byte(os.Getenv("JWT_SECRET")),
		authIssuer: viper.GetString("auth.issuer"),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/orders", h.createOrder)

		r.Route("/payment", func(r chi.Router) {
			r.Post("/intent", h.createIntent)
			r.Post("/create-order", h.createPaymentOrder)
			r.Post("/capture-order", h.capturePaymentOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.NewOperatorMiddleware(h.authSecret, h.authIssuer))

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Patch("/orders/{id}", h.updateOrder)
			r.Post("/orders/{id}/cancel", h.cancelOrder)
			r.Post("/orders/{id}/refund", h.refundOrder)
			r.Post("/orders/{id}/notify-shipping", h.notifyShipping)
		})
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.payments)
}

func (h *HTTPTransport) createIntent(w http.ResponseWriter, r *http.Request) {
	createintent.CreateIntent(w, r, h.payments)
}

func (h *HTTPTransport) createPaymentOrder(w http.ResponseWriter, r *http.Request) {
	createpaymentorder.CreatePaymentOrder(w, r, h.payments)
}

func (h *HTTPTransport) capturePaymentOrder(w http.ResponseWriter, r *http.Request) {
	capturepaymentorder.CapturePaymentOrder(w, r, h.payments)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) updateOrder(w http.ResponseWriter, r *http.Request) {
	updateorder.UpdateOrder(w, r, h.orders)
}

func (h *HTTPTransport) cancelOrder(w http.ResponseWriter, r *http.Request) {
	cancelorder.CancelOrder(w, r, h.orders)
}

func (h *HTTPTransport) refundOrder(w http.ResponseWriter, r *http.Request) {
	refundorder.RefundOrder(w, r, h.orders)
}

func (h *HTTPTransport) notifyShipping(w http.ResponseWriter, r *http.Request) {
	notifyshipping.NotifyShipping(w, r, h.orders)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
