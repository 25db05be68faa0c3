package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vorma",
		Short: "Tooling for the Vorma client navigation runtime",
		Long: `Vorma is a server-driven web framework whose client runtime handles
SPA navigation: prefetch upgrades, soft redirects, submissions with
auto-revalidation, and scroll restoration.

This CLI runs the development server that plays the route handler for
the runtime, and ships built assets to production storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		devCmd(),
		deployCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vorma %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
