package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var purgeDays int

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete reports older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		days := purgeDays
		if days == 0 {
			days = cfg.Retention.Days
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		deleted, err := st.PurgeOlderThan(ctx, days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d reports older than %d days\n", deleted, days)

		if deleted > 0 && cfg.Retention.CompactAfterPurge {
			if err := st.Compact(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database compacted")
		}
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "retention age in days (default from config)")
	rootCmd.AddCommand(purgeCmd)
}
