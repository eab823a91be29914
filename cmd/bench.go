package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wasabipesto/nice/internal/benchmark"
	"github.com/wasabipesto/nice/internal/client"
)

var (
	benchMode string
	benchGPU  bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a fixed offline search range and report candidates/sec",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		valid := false
		for _, m := range benchmark.ValidModes() {
			if string(m) == benchMode {
				valid = true
				break
			}
		}
		if !valid {
			return eris.Errorf("unknown benchmark mode %q", benchMode)
		}

		benchCfg := cfg.Client
		benchCfg.Benchmark = benchMode
		benchCfg.GPU = benchGPU

		c, err := client.New(benchCfg)
		if err != nil {
			return err
		}
		return c.Run(ctx)
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchMode, "mode", string(benchmark.ModeDefault), "benchmark mode: default, large, extra-large, hi-base")
	benchCmd.Flags().BoolVar(&benchGPU, "gpu", false, "use the GPU kernel if available")
	rootCmd.AddCommand(benchCmd)
}
