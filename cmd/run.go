package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/internal/model"
)

var (
	runForce   bool
	runWait    bool
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run SYMBOL",
	Short: "Enqueue a research run for a symbol",
	Long:  "Resolves the symbol and enqueues its ingest job. With the in-memory queue, or with --wait, worker pools run in-process until the snapshot lands and it is printed as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		payload, accepted, err := enqueueSymbol(ctx, env, args[0], runForce)
		if err != nil {
			return err
		}
		if !accepted {
			zap.L().Info("duplicate run suppressed by idempotency window",
				zap.String("symbol", payload.Symbol),
				zap.String("idempotency_key", payload.IdempotencyKey))
			return nil
		}

		zap.L().Info("run enqueued",
			zap.String("symbol", payload.Symbol),
			zap.String("run_id", payload.RunID))

		if cfg.Queue.Driver != "memory" && !runWait {
			return nil
		}

		snapshot, err := driveRun(ctx, env, payload)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

// driveRun processes the enqueued job chain in-process and waits for its
// snapshot.
func driveRun(ctx context.Context, env *appEnv, payload model.JobPayload) (*model.Snapshot, error) {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	poolsDone := make(chan error, 1)
	go func() { poolsDone <- runPools(runCtx, env) }()
	defer func() {
		cancel()
		<-poolsDone
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return nil, eris.Wrap(runCtx.Err(), "waiting for snapshot")
		case <-ticker.C:
			snapshot, err := env.Store.LatestSnapshot(runCtx, payload.Symbol, payload.RunID)
			if err != nil {
				return nil, err
			}
			if snapshot != nil {
				return snapshot, nil
			}
		}
	}
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "bypass the idempotency window")
	runCmd.Flags().BoolVar(&runWait, "wait", false, "process in-process and wait for the snapshot")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "maximum time to wait for the snapshot")
	rootCmd.AddCommand(runCmd)
}
