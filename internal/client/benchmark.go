package client

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/benchmark"
	"github.com/wasabipesto/nice/internal/executor"
	"github.com/wasabipesto/nice/internal/filter"
)

// runBenchmark scans a fixed, local benchmark range instead of talking
// to a coordination service at all, and reports candidates-per-second
// so hardware comparisons aren't skewed by network or database latency.
func (c *Client) runBenchmark(ctx context.Context) error {
	field, err := benchmark.Get(benchmark.Mode(c.cfg.Benchmark))
	if err != nil {
		return err
	}

	start, err := executor.Uint128FromDecimal(field.RangeStart)
	if err != nil {
		return eris.Wrap(err, "client: benchmark range_start")
	}
	end, err := executor.Uint128FromDecimal(field.RangeEnd)
	if err != nil {
		return eris.Wrap(err, "client: benchmark range_end")
	}

	zap.L().Info("starting benchmark",
		zap.String("mode", c.cfg.Benchmark),
		zap.Uint32("base", field.Base),
		zap.String("range_start", field.RangeStart.String()),
		zap.String("range_end", field.RangeEnd.String()),
	)

	began := time.Now()
	result, err := c.exec.Run(ctx, filter.Range{Start: start, End: end}, field.Base, c.mode)
	if err != nil {
		return eris.Wrap(err, "client: run benchmark range")
	}
	elapsed := time.Since(began)

	rangeSize := field.RangeEnd.Sub(field.RangeStart)
	candidatesPerSec := float64(0)
	if elapsed > 0 {
		size, _ := rangeSize.Float64()
		candidatesPerSec = size / elapsed.Seconds()
	}

	zap.L().Info("benchmark complete",
		zap.Duration("elapsed", elapsed),
		zap.Float64("candidates_per_sec", candidatesPerSec),
		zap.Int("numbers_found", len(result.Numbers)),
	)
	return nil
}
