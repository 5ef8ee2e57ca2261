package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/apiclient"
	"github.com/corray333/backend-labs/storefront/internal/checkout"
	"github.com/corray333/backend-labs/storefront/internal/dal/redis"
	"github.com/corray333/backend-labs/storefront/internal/dal/stripe"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/internal/service/models/payment"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type payFlags struct {
	apiURL        string
	items         []string
	addressID     string
	coupon        string
	email         string
	method        string
	paymentMethod string
	clientID      string
	redisAddr     string
	sessionTTL    time.Duration
}

func rootCmd() *cobra.Command {
	f := &payFlags{}

	cmd := &cobra.Command{
		Use:           "storefront-checkout",
		Short:         "Run one checkout against a storefront API from the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckout(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&f.apiURL, "api", envOr("STOREFRONT_API_URL", "http://localhost:8080/api"), "Storefront API base URL")
	cmd.Flags().StringSliceVarP(&f.items, "item", "i", nil, "Cart item as productId[:quantity], repeatable")
	cmd.Flags().StringVar(&f.addressID, "address", "", "Saved shipping address id")
	cmd.Flags().StringVar(&f.coupon, "coupon", "", "Coupon code")
	cmd.Flags().StringVar(&f.email, "email", "", "Customer email")
	cmd.Flags().StringVarP(&f.method, "method", "m", string(order.ProviderCard), "Payment method: card or redirect")
	cmd.Flags().StringVar(&f.paymentMethod, "payment-method", "pm_card_visa", "Card provider payment method id")
	cmd.Flags().StringVar(&f.clientID, "client-id", os.Getenv("PAYPAL_CLIENT_ID"), "Redirect provider client id")
	cmd.Flags().StringVar(&f.redisAddr, "redis", "", "Keep the payment session in Redis at this address")
	cmd.Flags().DurationVar(&f.sessionTTL, "session-ttl", 30*time.Minute, "Payment session lifetime in Redis")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func parseItems(raw []string) ([]payment.CartItem, error) {
	items := make([]payment.CartItem, 0, len(raw))
	for _, r := range raw {
		id, qty, found := strings.Cut(r, ":")
		item := payment.CartItem{ProductID: id, Quantity: 1}
		if found {
			n, err := strconv.Atoi(qty)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid quantity in %q", r)
			}
			item.Quantity = n
		}
		items = append(items, item)
	}

	return items, nil
}

func sessionStore(ctx context.Context, f *payFlags) (checkout.SessionStore, func(), error) {
	if f.redisAddr == "" {
		return checkout.NewMemorySessionStore(), func() {}, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     f.redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return redis.NewSessionStore(rdb, f.sessionTTL), func() { _ = rdb.Close() }, nil
}

func runCheckout(ctx context.Context, f *payFlags, in io.Reader, out io.Writer) error {
	items, err := parseItems(f.items)
	if err != nil {
		return err
	}

	store, closeStore, err := sessionStore(ctx, f)
	if err != nil {
		return err
	}
	defer closeStore()

	stdin := bufio.NewReader(in)
	deps := checkout.FlowDeps{
		Store:     store,
		Backend:   apiclient.New(f.apiURL),
		Navigator: printNavigator{out: out},
		Widget:    &terminalWidget{in: stdin, out: out},
		Redirect:  checkout.RedirectConfig{ClientID: f.clientID},
	}
	if gw := stripe.MustNewGateway("", 0); gw != nil {
		deps.CardGateway = gw
	}

	flow, err := checkout.StartFlow(ctx, deps, payment.CheckoutRequest{
		Items:         items,
		AddressID:     f.addressID,
		Coupon:        f.coupon,
		CustomerEmail: f.email,
	})
	if err != nil {
		return checkout.Classify(err)
	}

	fmt.Fprintf(out, "Session %s, methods: %v\n", flow.SessionID(), flow.Options())

	method := order.Provider(f.method)
	if err := flow.Select(ctx, method); err != nil {
		_ = flow.Abandon(ctx)

		return checkout.Classify(err)
	}

	outcome, err := flow.Pay(ctx, checkout.Input{Card: &checkout.CardForm{PaymentMethod: f.paymentMethod}})
	if err != nil {
		cerr := checkout.Classify(err)
		if cerr.Retryable() {
			fmt.Fprintln(out, "Payment failed, you can try again:", cerr.Message)
		}
		_ = flow.Abandon(ctx)

		return cerr
	}

	if outcome.Status == checkout.OutcomeCancelled {
		fmt.Fprintln(out, "Payment cancelled")

		return flow.Abandon(ctx)
	}

	return nil
}

type printNavigator struct {
	out io.Writer
}

func (n printNavigator) ShowOrderConfirmation(_ context.Context, orderID string) error {
	_, err := fmt.Fprintf(n.out, "Order confirmed: %s\n", orderID)

	return err
}

// terminalWidget shows the approval link and treats Enter as approval and "c" as cancel.
type terminalWidget struct {
	in  *bufio.Reader
	out io.Writer
}

func (w *terminalWidget) Loaded() bool {
	return true
}

func (w *terminalWidget) AwaitApproval(ctx context.Context, providerOrderID string) (checkout.Approval, error) {
	fmt.Fprintf(w.out, "Approve the payment at https://www.sandbox.paypal.com/checkoutnow?token=%s\n", providerOrderID)
	fmt.Fprint(w.out, "Press Enter once approved, or type c to cancel: ")

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := w.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return checkout.Approval{}, ctx.Err()
	case a := <-ch:
		if a.err != nil && !errors.Is(a.err, io.EOF) {
			return checkout.Approval{}, a.err
		}
		if strings.EqualFold(strings.TrimSpace(a.line), "c") {
			return checkout.Approval{}, checkout.ErrBuyerCancelled
		}

		return checkout.Approval{OrderID: providerOrderID}, nil
	}
}
