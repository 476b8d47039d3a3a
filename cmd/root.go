package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mandela-labs/report-cli/internal/config"
)

var cfg *config.Config

var showConfig bool

var rootCmd = &cobra.Command{
	Use:   "report-cli",
	Short: "Compare archived and live versions of a webpage",
	Long:  "Queries the Internet Archive for historical captures of a page, fetches the live version, and highlights word-level changes between them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if showConfig {
			dump, err := cfg.Dump()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), dump)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "print the effective configuration before running")
}
