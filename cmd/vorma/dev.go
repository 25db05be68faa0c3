package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vorma-dev/vorma/internal/config"
	"github.com/vorma-dev/vorma/internal/dev"
)

func devCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server.

The dev server serves route payload fixtures to the navigation runtime,
watches the project for changes, broadcasts reloads over WebSocket, and
exposes Prometheus metrics at /__vorma/metrics.

Examples:
  vorma dev
  vorma dev --port=8080
  vorma dev --host=0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(port, host)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from vorma.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from vorma.json)")

	return cmd
}

func runDev(port int, host string) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Dev.Port = port
	}
	if host != "" {
		cfg.Dev.Host = host
	}

	server := dev.NewServer(cfg)
	defer server.Close()

	if err := server.StartWatcher(); err != nil {
		fmt.Printf("  watcher disabled: %v\n", err)
	}

	fmt.Printf("  vorma dev\n")
	fmt.Printf("  build  %s\n", server.BuildID())
	fmt.Printf("  listen http://%s\n\n", server.Addr())

	return http.ListenAndServe(server.Addr(), server.Handler())
}
