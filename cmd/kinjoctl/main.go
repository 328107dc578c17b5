package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag string
	keyFlag string
	rootCmd = &cobra.Command{
		Use:           "kinjoctl",
		Short:         "CLI client for the kinjo trends and reflection API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "url", "u", envOr("KINJO_URL", "http://localhost:8080"), "kinjo service base URL")
	rootCmd.PersistentFlags().StringVarP(&keyFlag, "key", "k", os.Getenv("KINJO_API_KEY"), "API key (Bearer)")

	rootCmd.AddCommand(trendsCmd(), streakCmd(), reflectionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func trendsCmd() *cobra.Command {
	var q trendFlags
	cmd := &cobra.Command{
		Use:   "trends",
		Short: "Query trend aggregates",
	}
	for _, sub := range []struct{ use, short, path string }{
		{"daily", "Per-day given/received counts", "/api/trends/daily"},
		{"categories", "Category shares with deltas against the previous window", "/api/trends/categories"},
		{"gaps", "Median days between moments per category", "/api/trends/gaps"},
	} {
		path := sub.path
		c := &cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return newClient(apiFlag, keyFlag).get(cmd.Context(), path, q.values(), cmd.OutOrStdout())
			},
		}
		q.bind(c)
		cmd.AddCommand(c)
	}
	return cmd
}

func streakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Current and best streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiFlag, keyFlag).get(cmd.Context(), "/api/streak", nil, cmd.OutOrStdout())
		},
	}
}

func reflectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflection",
		Short: "Fetch or regenerate a period reflection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <7d|30d|90d|365d>",
		Short: "Fetch the reflection, generating a rule-based one if absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiFlag, keyFlag).get(cmd.Context(), "/api/reflections/"+args[0], nil, cmd.OutOrStdout())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate <7d|30d|90d|365d>",
		Short: "Replace the reflection narrative with an AI narrative",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(apiFlag, keyFlag).regenerate(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	})
	return cmd
}
