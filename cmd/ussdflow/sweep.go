package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/katlego-io/ussdflow/internal/config"
	redisAdapter "github.com/katlego-io/ussdflow/pkg/adapters/redis"
	"github.com/katlego-io/ussdflow/pkg/engine"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale sessions once and exit",
	Long: `Runs a single expiry sweep against the configured redis backend.
The serve command runs the same sweep on a timer; this is the on-demand
administrative path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("sweep requires REDIS_ADDR")
		}

		client := redisAdapter.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		eng := engine.New(
			redisAdapter.NewFlowStoreFromClient(client),
			redisAdapter.NewSessionStoreFromClient(client),
			engine.WithSessionTimeout(cfg.Session.Timeout),
		)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		count, err := eng.Sweep(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("expired %d sessions\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
