package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/reconf/pkg/api"
	"github.com/cuemby/reconf/pkg/events"
	"github.com/cuemby/reconf/pkg/log"
	"github.com/cuemby/reconf/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plans over HTTP",
	Long: `Start an HTTP server computing the plan of the scenarios posted
to /v1/plan. Metrics are exposed on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		maxTimeout, _ := cmd.Flags().GetDuration("max-timeout")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		rateLimit, _ := cmd.Flags().GetFloat64("rate-limit")
		burst, _ := cmd.Flags().GetInt("burst")

		cfg := api.Config{
			Addr:       addr,
			MaxTimeout: maxTimeout,
			Version:    Version,
			RateLimit:  rateLimit,
			Burst:      burst,
		}
		if dataDir != "" {
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			store, err := storage.NewBoltStore(dataDir)
			if err != nil {
				return err
			}
			defer store.Close()
			cfg.Store = store
		}

		s := api.NewServer(cfg)
		go logEvents(s.Events().Subscribe())

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start()
		}()

		fmt.Printf("Plan server listening on %s. Press Ctrl+C to stop.\n", addr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("Shutting down plan server")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("plan server error: %w", err)
			}
			return nil
		}
		return s.Stop()
	},
}

// logEvents logs the plan events until the subscription is closed
func logEvents(sub *events.Subscription) {
	logger := log.WithComponent("events")
	for ev := range sub.C() {
		e := logger.Info().Str("kind", string(ev.Kind))
		for k, v := range ev.Fields() {
			e = e.Str(k, v)
		}
		e.Msg(ev.Message)
	}
	if n := sub.Dropped(); n > 0 {
		logger.Warn().Int64("dropped", n).Msg("Events missed by the log subscription")
	}
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Listen address")
	serveCmd.Flags().Duration("max-timeout", 30*time.Second, "Maximum search timeout per request")
	serveCmd.Flags().Float64("rate-limit", 0, "Plan requests per second allowed to a client (0 disables)")
	serveCmd.Flags().Int("burst", 5, "Plan requests a client may burst above the rate limit")
	serveCmd.Flags().String("data-dir", "", "Directory storing the computed plans (disabled when empty)")

	rootCmd.AddCommand(serveCmd)
}
