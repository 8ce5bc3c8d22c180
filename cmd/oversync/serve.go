package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/overspend1/oversync/pkg/controlapi"
	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Sync Engine and its control API",
	Long: `serve starts the control API (initialize_sync, get_sync_status,
generate_ticket, connect_peer, get_recent_activity) and, once a vault
has been initialized through it, the Sync Engine that watches, indexes,
and replicates that vault. It also exposes Prometheus metrics.

serve runs until interrupted.`,
	RunE: runServe,
}

func init() {
	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".oversync")

	serveCmd.Flags().String("data-dir", defaultDataDir, "Directory for the peer identity and blob store")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Prometheus /metrics listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Flags().GetString("api-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	server := controlapi.NewServer(dataDir, apiAddr)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		log.WithComponent("serve").Info().Str("addr", metricsAddr).Msg("metrics listening")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.WithComponent("serve").Error().Err(err).Msg("metrics server exited")
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.WithComponent("serve").Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(ctx)
	}
}
