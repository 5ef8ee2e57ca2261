package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/corray333/backend-labs/storefront/internal/apiclient"
	"github.com/corray333/backend-labs/storefront/internal/console"
	"github.com/corray333/backend-labs/storefront/internal/service/models/order"
	"github.com/corray333/backend-labs/storefront/pkg/http/middleware/auth"
	"github.com/spf13/cobra"
)

func newConsole(flags *globalFlags) (*console.Console, error) {
	if flags.token == "" {
		return nil, errors.New("operator token is required, pass --token or set STOREFRONT_TOKEN")
	}

	return console.New(apiclient.New(flags.apiURL, apiclient.WithToken(flags.token))), nil
}

// loadOne puts a single order into a fresh console so mutations can be applied to it.
func loadOne(ctx context.Context, flags *globalFlags, id string) (*console.Console, error) {
	c, err := newConsole(flags)
	if err != nil {
		return nil, err
	}
	if err := c.Reload(ctx, id); err != nil {
		return nil, err
	}

	return c, nil
}

func listCmd(flags *globalFlags) *cobra.Command {
	var (
		statuses []string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newConsole(flags)
			if err != nil {
				return err
			}

			filter := order.QueryOrdersModel{Limit: limit, Offset: offset}
			for _, s := range statuses {
				status, err := order.ParseStatus(s)
				if err != nil {
					return err
				}
				filter.Statuses = append(filter.Statuses, status)
			}

			if err := c.Refresh(cmd.Context(), filter); err != nil {
				return err
			}

			return printOrders(cmd.OutOrStdout(), c.Orders())
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many orders")

	return cmd
}

func showCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}
			o, _ := c.Order(args[0])

			return printOrder(cmd.OutOrStdout(), o)
		},
	}
}

func transitionCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "transition [id] [status]",
		Short: "Move an order to pending, processing, shipped or delivered",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := order.ParseStatus(args[1])
			if err != nil {
				return err
			}

			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}

			o, err := c.Transition(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}

			return printOrder(cmd.OutOrStdout(), *o)
		},
	}
}

func trackCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "track [id] [code]",
		Short: "Set the tracking code of an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}

			o, err := c.SetTrackingCode(cmd.Context(), args[0], strings.TrimSpace(args[1]))
			if err != nil {
				return err
			}

			return printOrder(cmd.OutOrStdout(), *o)
		},
	}
}

func cancelCmd(flags *globalFlags) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}

			o, err := c.Cancel(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}

			return printOrder(cmd.OutOrStdout(), *o)
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Cancellation reason")

	return cmd
}

func refundCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refund [id]",
		Short: "Refund the charge of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}

			o, err := c.Refund(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printOrder(cmd.OutOrStdout(), *o)
		},
	}
}

func notifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "notify [id]",
		Short: "Send the shipping notification of a shipped order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadOne(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}

			sentTo, err := c.NotifyShipping(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Shipping notification sent to %s\n", sentTo)

			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		issuer  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			token, err := auth.IssueToken([]byte(secret), issuer, subject, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Operator identity recorded on cancellations")
	cmd.Flags().StringVar(&issuer, "issuer", envOr("JWT_ISSUER", "storefront"), "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func printOrders(w io.Writer, orders []order.Order) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAMOUNT\tPROVIDER\tTRACKING\tREFUNDED\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%t\t%s\n",
			o.ID,
			o.Status,
			o.Amount.StringFixed(2),
			o.Currency,
			o.PaymentProvider,
			o.TrackingCode,
			o.Refunded,
			o.CreatedAt.Format(time.DateTime),
		)
	}

	return tw.Flush()
}

func printOrder(w io.Writer, o order.Order) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", o.ID)
	fmt.Fprintf(tw, "Status:\t%s\n", o.Status)
	fmt.Fprintf(tw, "Amount:\t%s %s\n", o.Amount.StringFixed(2), o.Currency)
	fmt.Fprintf(tw, "Customer:\t%s\n", o.CustomerEmail)
	fmt.Fprintf(tw, "Provider:\t%s\n", o.PaymentProvider)
	fmt.Fprintf(tw, "Payment:\t%s\n", o.PaymentIntentID)
	fmt.Fprintf(tw, "Tracking:\t%s\n", o.TrackingCode)
	fmt.Fprintf(tw, "Refunded:\t%t\n", o.Refunded)
	if o.CancelledAt != nil {
		fmt.Fprintf(tw, "Cancelled:\t%s by %s (%s)\n", o.CancelledAt.Format(time.DateTime), o.CancelledBy, o.CancellationReason)
	}
	for _, item := range o.Items {
		fmt.Fprintf(tw, "  %dx\t%s\t%s\n", item.Quantity, item.Name, item.UnitPrice.StringFixed(2))
	}

	return tw.Flush()
}
