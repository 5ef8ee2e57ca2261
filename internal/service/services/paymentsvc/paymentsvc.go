package paymentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	catalogrepo "github.com/corray333/backend-labs/storefront/internal/dal/repositories/catalog/postgres"
	"github.com/corray333/backend-labs/storefront/internal/service/models/catalog"
	"github.com/corray333/backend-labs/storefront/internal/service/models/currency"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

var (
	ErrProviderUnavailable = errors.New("payment provider is not configured")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrCurrencyMismatch    = errors.New("product currency does not match checkout currency")
	ErrInvalidCoupon       = errors.New("invalid coupon")
	ErrUnknownAddress      = errors.New("unknown address")
	ErrAlreadyCaptured     = errors.New("order already captured")
	ErrAlreadyRecorded     = errors.New("payment already recorded")
	ErrPaymentNotConfirmed = errors.New("payment is not confirmed by the provider")
	ErrAmountMismatch      = errors.New("paid amount does not match the order total")
	ErrCheckoutExpired     = errors.New("checkout expired before capture")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
)

type catalogReader interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	CouponByCode(ctx context.Context, code string) (*catalog.Coupon, error)
	AddressByID(ctx context.Context, id string) (*catalog.SavedAddress, error)
}

type intentGateway interface {
	CreateIntent(ctx context.Context, quote payment.Quote, idempotencyKey string) (payment.Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (payment.IntentStatus, decimal.Decimal, error)
	Refund(ctx context.Context, intentID string) (string, error)
}

type redirectGateway interface {
	CreateOrder(ctx context.Context, quote payment.Quote, reference string) (payment.ProviderOrder, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error)
	RefundCapture(ctx context.Context, captureID string) (string, error)
}

type claimGuard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type pendingStore interface {
	Put(ctx context.Context, providerOrderID string, quote payment.Quote) error
	Take(ctx context.Context, providerOrderID string) (*payment.Quote, error)
}

type orderCreator interface {
	Create(ctx context.Context, o order.Order) (*order.Order, error)
}

// OrderCreatorFunc adapts a function to the order creator used after a successful charge.
type OrderCreatorFunc func(ctx context.Context, o order.Order) (*order.Order, error)

func (f OrderCreatorFunc) Create(ctx context.Context, o order.Order) (*order.Order, error) {
	return f(ctx, o)
}

// PaymentService computes authoritative charges and talks to both providers.
type PaymentService struct {
	catalog  catalogReader
	card     intentGateway
	redirect redirectGateway
	guard    claimGuard
	pending  pendingStore
	orders   orderCreator
	currency currency.Currency
	now      func() time.Time
}

// Option is a function that configures the PaymentService.
type Option func(*PaymentService)

// MustNewPaymentService creates a new PaymentService.
func MustNewPaymentService(opts ...Option) *PaymentService {
	s := &PaymentService{
		currency: currency.CurrencyEUR,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.catalog == nil || s.orders == nil || s.guard == nil {
		panic("paymentsvc: catalog, orders and claim guard are required")
	}
	if s.redirect != nil && s.pending == nil {
		panic("paymentsvc: redirect provider requires a pending checkout store")
	}

	return s
}

// WithCatalog sets the product, coupon and address reader.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCatalog(c catalogReader) Option {
	return func(s *PaymentService) {
		s.catalog = c
	}
}

// WithCardGateway sets the card/intent provider. A nil gateway leaves the method off.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCardGateway(g intentGateway) Option {
	return func(s *PaymentService) {
		s.card = g
	}
}

// WithRedirectGateway sets the redirect/capture provider. A nil gateway leaves the method off.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRedirectGateway(g redirectGateway) Option {
	return func(s *PaymentService) {
		s.redirect = g
	}
}

// WithClaimGuard sets the single-capture guard.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClaimGuard(g claimGuard) Option {
	return func(s *PaymentService) {
		s.guard = g
	}
}

// WithPendingStore sets where provider order quotes wait for capture.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPendingStore(p pendingStore) Option {
	return func(s *PaymentService) {
		s.pending = p
	}
}

// WithOrderCreator sets the order store used once a payment is confirmed.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderCreator(o orderCreator) Option {
	return func(s *PaymentService) {
		s.orders = o
	}
}

// WithCurrency sets the checkout currency.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCurrency(c currency.Currency) Option {
	return func(s *PaymentService) {
		s.currency = c
	}
}

// CardAvailable reports whether the card provider is configured.
func (s *PaymentService) CardAvailable() bool {
	return s.card != nil
}

// RedirectAvailable reports whether the redirect provider is configured.
func (s *PaymentService) RedirectAvailable() bool {
	return s.redirect != nil
}

// Quote computes the charge from catalog prices and the coupon. Client totals are never used.
func (s *PaymentService) Quote(ctx context.Context, req payment.CheckoutRequest) (payment.Quote, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.Quote")
	defer span.End()

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ProductID)
	}

	var (
		products map[string]catalog.Product
		coupon   *catalog.Coupon
		address  *catalog.SavedAddress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.ProductsByIDs(gctx, ids)

		return err
	})
	if req.Coupon != "" {
		g.Go(func() error {
			var err error
			coupon, err = s.catalog.CouponByCode(gctx, req.Coupon)
			if errors.Is(err, catalogrepo.ErrCouponNotFound) {
				return ErrInvalidCoupon
			}

			return err
		})
	}
	if req.AddressID != "" {
		g.Go(func() error {
			var err error
			address, err = s.catalog.AddressByID(gctx, req.AddressID)
			if errors.Is(err, catalogrepo.ErrAddressNotFound) {
				return ErrUnknownAddress
			}

			return err
		})
	}
	if err := g.Wait(); err != nil {
		return payment.Quote{}, err
	}

	quote := payment.Quote{
		Items:         make([]orderitem.OrderItem, 0, len(req.Items)),
		Currency:      s.currency,
		CustomerEmail: req.CustomerEmail,
	}
	for _, item := range req.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return payment.Quote{}, fmt.Errorf("%w: %s", ErrUnknownProduct, item.ProductID)
		}
		if !p.Active {
			return payment.Quote{}, fmt.Errorf("%w: %s", ErrProductUnavailable, item.ProductID)
		}
		if p.Currency != s.currency {
			return payment.Quote{}, fmt.Errorf("%w: %s", ErrCurrencyMismatch, item.ProductID)
		}

		quote.Items = append(quote.Items, orderitem.OrderItem{
			ProductID:     p.ID,
			Name:          p.Name,
			UnitPrice:     p.Price,
			Quantity:      item.Quantity,
			Customization: item.Customization,
		})
	}

	subtotal := order.Total(quote.Items)
	quote.Amount = subtotal
	quote.Discount = decimal.Zero

	if coupon != nil {
		if !coupon.Usable(s.now()) {
			return payment.Quote{}, ErrInvalidCoupon
		}
		quote.Coupon = coupon.Code
		quote.Discount = subtotal.Mul(coupon.PercentOff).Div(decimal.NewFromInt(100)).Round(2)
		quote.Amount = subtotal.Sub(quote.Discount)
	}

	if address != nil {
		addr := address.Address
		quote.ShippingAddress = &addr
		if quote.CustomerEmail == "" {
			quote.CustomerEmail = address.Email
		}
	}

	return quote, nil
}

// CreateIntent creates a card intent for the authoritative amount.
func (s *PaymentService) CreateIntent(ctx context.Context, req payment.CheckoutRequest) (payment.Intent, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	if s.card == nil {
		return payment.Intent{}, ErrProviderUnavailable
	}

	quote, err := s.Quote(ctx, req)
	if err != nil {
		return payment.Intent{}, err
	}

	intent, err := s.card.CreateIntent(ctx, quote, uuid.NewString())
	if err != nil {
		return payment.Intent{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	slog.Info("Payment intent created",
		"intent_id", intent.IntentID,
		"amount", intent.Amount.StringFixed(2),
	)

	return intent, nil
}

// CreateOrder creates a redirect provider order and parks its quote until capture.
func (s *PaymentService) CreateOrder(ctx context.Context, req payment.CheckoutRequest) (string, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.CreateOrder")
	defer span.End()

	if s.redirect == nil {
		return "", ErrProviderUnavailable
	}

	quote, err := s.Quote(ctx, req)
	if err != nil {
		return "", err
	}

	po, err := s.redirect.CreateOrder(ctx, quote, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("failed to create provider order: %w", err)
	}

	if err := s.pending.Put(ctx, po.ID, quote); err != nil {
		return "", err
	}

	return po.ID, nil
}

// CaptureOrder captures an approved provider order exactly once and records the
// storefront order on completion.
func (s *PaymentService) CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.CaptureOrder")
	defer span.End()

	if s.redirect == nil {
		return payment.CaptureResult{}, ErrProviderUnavailable
	}

	key := "capture:" + providerOrderID
	claimed, err := s.guard.Claim(ctx, key)
	if err != nil {
		return payment.CaptureResult{}, err
	}
	if !claimed {
		return payment.CaptureResult{}, ErrAlreadyCaptured
	}

	result, err := s.redirect.CaptureOrder(ctx, providerOrderID)
	if payment.KindOf(err) == payment.KindConflict {
		return payment.CaptureResult{}, ErrAlreadyCaptured
	}
	if err != nil {
		s.release(ctx, key)

		return payment.CaptureResult{}, fmt.Errorf("failed to capture order: %w", err)
	}
	if !result.Success {
		s.release(ctx, key)

		return result, nil
	}

	quote, err := s.pending.Take(ctx, providerOrderID)
	if err != nil {
		slog.Error("Captured payment has no pending checkout",
			"provider_order_id", providerOrderID,
			"capture_id", result.CaptureID,
			"error", err,
		)

		return payment.CaptureResult{}, fmt.Errorf("%w: capture %s", ErrCheckoutExpired, result.CaptureID)
	}

	reference := result.CaptureID
	if reference == "" {
		reference = providerOrderID
	}

	o, err := s.orders.Create(ctx, orderFromQuote(*quote, order.ProviderRedirect, reference))
	if err != nil {
		slog.Error("Captured payment could not be recorded",
			"provider_order_id", providerOrderID,
			"capture_id", result.CaptureID,
			"error", err,
		)

		return payment.CaptureResult{}, fmt.Errorf("failed to record captured order: %w", err)
	}

	result.OrderID = o.ID

	return result, nil
}

// RecordIntentPayment verifies a card payment with the provider and records the order.
func (s *PaymentService) RecordIntentPayment(ctx context.Context, req payment.RecordRequest) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.RecordIntentPayment")
	defer span.End()

	if req.Provider != order.ProviderCard {
		return nil, ErrUnsupportedProvider
	}
	if s.card == nil {
		return nil, ErrProviderUnavailable
	}

	status, paid, err := s.card.RetrieveIntent(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	if !status.IsPaid() {
		return nil, ErrPaymentNotConfirmed
	}

	quote, err := s.Quote(ctx, payment.CheckoutRequest{
		Items:         req.Items,
		AddressID:     req.AddressID,
		Coupon:        req.Coupon,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	if !paid.Equal(quote.Amount) {
		return nil, ErrAmountMismatch
	}

	key := "intent:" + req.PaymentIntentID
	claimed, err := s.guard.Claim(ctx, key)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyRecorded
	}

	o, err := s.orders.Create(ctx, orderFromQuote(quote, order.ProviderCard, req.PaymentIntentID))
	if err != nil {
		s.release(ctx, key)

		return nil, err
	}

	return o, nil
}

// Refund routes a refund to the provider that charged the order.
func (s *PaymentService) Refund(ctx context.Context, provider order.Provider, reference string) error {
	ctx, span := otel.Tracer("service").Start(ctx, "PaymentService.Refund")
	defer span.End()

	var (
		refundID string
		err      error
	)

	switch provider {
	case order.ProviderCard:
		if s.card == nil {
			return ErrProviderUnavailable
		}
		refundID, err = s.card.Refund(ctx, reference)
	case order.ProviderRedirect:
		if s.redirect == nil {
			return ErrProviderUnavailable
		}
		refundID, err = s.redirect.RefundCapture(ctx, reference)
	default:
		return ErrUnsupportedProvider
	}
	if err != nil {
		return err
	}

	slog.Info("Refund issued",
		"provider", provider,
		"reference", reference,
		"refund_id", refundID,
	)

	return nil
}

func (s *PaymentService) release(ctx context.Context, key string) {
	if err := s.guard.Release(ctx, key); err != nil {
		slog.Warn("Failed to release claim", "key", key, "error", err)
	}
}

func orderFromQuote(q payment.Quote, provider order.Provider, reference string) order.Order {
	return order.Order{
		Items:           q.Items,
		Amount:          q.Amount,
		Currency:        q.Currency,
		Status:          order.StatusProcessing,
		PaymentProvider: provider,
		PaymentIntentID: reference,
		CustomerEmail:   q.CustomerEmail,
		ShippingAddress: q.ShippingAddress,
	}
}
