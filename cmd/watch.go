package main

import (
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the watchlist on a cron schedule",
	Long:  "Enqueues an ingest run for every configured watchlist symbol on the configured cron schedule. Worker pools run in-process, so watch is self-contained.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if len(cfg.Watch.Symbols) == 0 {
			return eris.New("watch: no symbols configured")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refresh := func() {
			for _, symbol := range cfg.Watch.Symbols {
				payload, accepted, err := enqueueSymbol(ctx, env, symbol, false)
				switch {
				case err != nil:
					zap.L().Error("watch: enqueue failed",
						zap.String("symbol", symbol),
						zap.Error(err))
				case !accepted:
					zap.L().Debug("watch: duplicate run suppressed",
						zap.String("symbol", payload.Symbol))
				default:
					zap.L().Info("watch: run enqueued",
						zap.String("symbol", payload.Symbol),
						zap.String("run_id", payload.RunID))
				}
			}
		}

		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Watch.Schedule, refresh); err != nil {
			return eris.Wrapf(err, "watch: parse schedule %q", cfg.Watch.Schedule)
		}

		zap.L().Info("watch started",
			zap.String("schedule", cfg.Watch.Schedule),
			zap.Strings("symbols", cfg.Watch.Symbols))

		// First refresh immediately, then on schedule.
		refresh()
		scheduler.Start()
		defer scheduler.Stop()

		return runPools(ctx, env)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
