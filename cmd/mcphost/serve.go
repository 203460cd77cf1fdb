// Copyright 2025 Edwin Ortega
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/EdwinOrtegaK/Pokechatbot-MCP-Host/internal/host"
)

// newServeCommand creates the 'serve' command.
func newServeCommand() *cobra.Command {
	var (
		watch       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect everything and stay up",
		Long: `Connect every enabled server and keep the sessions alive until
interrupted. With --watch, changes to the configuration file are picked
up and reconciled live. With --metrics-addr, Prometheus metrics are
served on /metrics.

Examples:
  mcphost serve
  mcphost serve --watch --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(watch, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reconcile on config file changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runServe(watch bool, metricsAddr string) error {
	logger := newLogger()
	mgr, err := newManager(logger)
	if err != nil {
		return err
	}
	defer mgr.DisconnectAll()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectAll(ctx, mgr)

	if watch {
		watcher, err := host.NewWatcher(host.WatcherConfig{
			Manager: mgr,
			Path:    flagConfig,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Close()
		logger.Info("watching config file", "path", flagConfig)
	}

	var metricsServer *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			logger.Info("serving metrics", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}
