package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mandela-labs/report-cli/internal/report"
)

var (
	diffSince     string
	diffUntil     string
	diffSnapshots int
)

var diffCmd = &cobra.Command{
	Use:   "diff <url>",
	Short: "Build a change report for one page and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		since, err := parseDate(diffSince)
		if err != nil {
			return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
		}
		until, err := parseDate(diffUntil)
		if err != nil {
			return fmt.Errorf("--until must be YYYY-MM-DD: %w", err)
		}

		payload, err := env.Service.Build(ctx, report.Request{
			URL:       args[0],
			Since:     since,
			Until:     until,
			Snapshots: diffSnapshots,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffSince, "since", "", "earliest capture date (YYYY-MM-DD)")
	diffCmd.Flags().StringVar(&diffUntil, "until", "", "latest capture date (YYYY-MM-DD, default now)")
	diffCmd.Flags().IntVar(&diffSnapshots, "snapshots", 0, "archived snapshot count (default from config)")
	rootCmd.AddCommand(diffCmd)
}
