package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var snapshotHistory int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot SYMBOL",
	Short: "Print the latest snapshot for a symbol",
	Long:  "Prints the most recent snapshot for the symbol as JSON, including its diagnostics. --history N prints the N most recent snapshots instead.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if snapshotHistory > 1 {
			snapshots, err := st.ListSnapshots(ctx, symbol, snapshotHistory)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				return eris.Errorf("no snapshots for %s", symbol)
			}
			return enc.Encode(snapshots)
		}

		snapshot, err := st.LatestSnapshot(ctx, symbol, "")
		if err != nil {
			return err
		}
		if snapshot == nil {
			return eris.Errorf("no snapshots for %s", symbol)
		}
		return enc.Encode(snapshot)
	},
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotHistory, "history", 0, "print the N most recent snapshots")
	rootCmd.AddCommand(snapshotCmd)
}
