package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	apiURL string
	token  string
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "storefront-console",
		Short:         "Operator console for storefront orders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api", envOr("STOREFRONT_API_URL", "http://localhost:8080/api"), "Storefront API base URL")
	rootCmd.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("STOREFRONT_TOKEN"), "Operator bearer token")

	rootCmd.AddCommand(listCmd(flags))
	rootCmd.AddCommand(showCmd(flags))
	rootCmd.AddCommand(transitionCmd(flags))
	rootCmd.AddCommand(trackCmd(flags))
	rootCmd.AddCommand(cancelCmd(flags))
	rootCmd.AddCommand(refundCmd(flags))
	rootCmd.AddCommand(notifyCmd(flags))
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
