package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	fileAdapter "github.com/katlego-io/ussdflow/internal/adapters/file"
	httpAdapter "github.com/katlego-io/ussdflow/internal/adapters/http"
	"github.com/katlego-io/ussdflow/internal/config"
	"github.com/katlego-io/ussdflow/internal/logging"
	"github.com/katlego-io/ussdflow/pkg/adapters/memory"
	redisAdapter "github.com/katlego-io/ussdflow/pkg/adapters/redis"
	"github.com/katlego-io/ussdflow/pkg/engine"
	"github.com/katlego-io/ussdflow/pkg/observability"
	"github.com/katlego-io/ussdflow/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway-facing HTTP server",
	Long: `Starts the session engine behind its JSON API, with the periodic
expiry sweeper running alongside. Configuration comes from the environment
(PORT, REDIS_ADDR, USSDFLOW_FLOW_DIR, USSDFLOW_SESSION_TIMEOUT,
USSDFLOW_SWEEP_INTERVAL).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.New(slog.LevelInfo)

		var sessions ports.SessionStore
		var flows ports.FlowStore

		if cfg.Redis.Addr != "" {
			client := redisAdapter.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			defer client.Close()
			sessions = redisAdapter.NewSessionStoreFromClient(client)
			flows = redisAdapter.NewFlowStoreFromClient(client)
		} else {
			logger.Warn("REDIS_ADDR not set, using in-memory session store (state dies with the process)")
			sessions = memory.NewSessionStore()
		}

		if cfg.FlowDir != "" {
			flows, err = fileAdapter.New(cfg.FlowDir)
			if err != nil {
				return fmt.Errorf("load flows: %w", err)
			}
		}
		if flows == nil {
			return fmt.Errorf("no flow source: set USSDFLOW_FLOW_DIR or REDIS_ADDR")
		}

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
		eng := engine.New(flows, sessions,
			engine.WithSessionTimeout(cfg.Session.Timeout),
			engine.WithLogger(logger),
			engine.WithLifecycleHooks(metrics.Hooks()),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go engine.NewSweeper(eng, cfg.Session.SweepInterval, logger).Run(ctx)

		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: httpAdapter.NewHandler(eng, logger),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting gateway server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())
			cancel()

			drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer drainCancel()
			if err := srv.Shutdown(drainCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("close server: %w", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
