package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nice",
	Short: "Distributed search for square-cube pandigital numbers",
	Long: "Coordinates a fleet of clients searching every numeric base for " +
		"\"nice\" numbers: integers whose square and cube, concatenated and " +
		"written in that base, together use every digit exactly once.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
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
