package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wasabipesto/nice/internal/client"
)

var (
	clientMode      string
	clientUsername  string
	clientAPIBase   string
	clientRepeat    bool
	clientThreads   int
	clientBenchmark string
	clientGPU       bool
	clientGPUDevice int
	clientValidate  bool
	clientNoProg    bool
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Claim, search, and submit fields against the coordination service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		clientCfg := cfg.Client
		if clientMode != "" {
			clientCfg.Mode = clientMode
		}
		if clientUsername != "" {
			clientCfg.Username = clientUsername
		}
		if clientAPIBase != "" {
			clientCfg.APIBase = clientAPIBase
		}
		if clientRepeat {
			clientCfg.Repeat = true
		}
		if clientThreads != 0 {
			clientCfg.Threads = clientThreads
		}
		if clientBenchmark != "" {
			clientCfg.Benchmark = clientBenchmark
		}
		if clientGPU {
			clientCfg.GPU = true
		}
		if clientGPUDevice != 0 {
			clientCfg.GPUDevice = clientGPUDevice
		}
		if clientValidate {
			clientCfg.Validate = true
		}
		if clientNoProg {
			clientCfg.NoProgress = true
		}

		c, err := client.New(clientCfg)
		if err != nil {
			return err
		}
		return c.Run(ctx)
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientMode, "mode", "", "search mode: detailed or niceonly")
	clientCmd.Flags().StringVar(&clientUsername, "username", "", "attribution name for submissions")
	clientCmd.Flags().StringVar(&clientAPIBase, "api-base", "", "coordination service base URL")
	clientCmd.Flags().BoolVar(&clientRepeat, "repeat", false, "keep claiming fields until interrupted")
	clientCmd.Flags().IntVar(&clientThreads, "threads", 0, "worker goroutines (0 = all CPUs)")
	clientCmd.Flags().StringVar(&clientBenchmark, "benchmark", "", "run a fixed offline range instead of claiming work: default, large, extra-large, hi-base")
	clientCmd.Flags().BoolVar(&clientGPU, "gpu", false, "use the GPU kernel if available")
	clientCmd.Flags().IntVar(&clientGPUDevice, "gpu-device", 0, "GPU device index")
	clientCmd.Flags().BoolVar(&clientValidate, "validate", false, "cross-check results against the coordination service before submitting")
	clientCmd.Flags().BoolVar(&clientNoProg, "no-progress", false, "suppress progress output")
	rootCmd.AddCommand(clientCmd)
}
