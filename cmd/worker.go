package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the stage worker pools",
	Long:  "Starts one worker pool per pipeline stage against the configured queue and blocks until SIGINT or SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		err = runPools(ctx, env)
		zap.L().Info("worker pools stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
