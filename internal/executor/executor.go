// Package executor runs the digit-scan kernels over a Field's full
// range, splitting work across a CPU worker pool (and, when available,
// a GPU scanner) and merging per-worker results into a deterministic
// Submission body.
package executor

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/alitto/pond/v2"

	"github.com/wasabipesto/nice/internal/bignum"
	"github.com/wasabipesto/nice/internal/filter"
	"github.com/wasabipesto/nice/internal/kernel"
	"github.com/wasabipesto/nice/internal/model"
)

// ProgressInterval is how many candidates a worker processes between
// atomic progress updates, coarse enough to avoid contention.
const ProgressInterval = 1_000_000

// Result is the accumulated, deterministic output of one Run: the full
// distribution (detailed mode only) and the set of numbers worth
// reporting (notable numbers for detailed, nice numbers for niceonly).
type Result struct {
	Distribution model.Distribution
	Numbers      []model.NiceNumber
}

// Executor partitions a Field's range across Threads workers and merges
// their local results.
type Executor struct {
	Scanner kernel.DigitScanner
	Threads int
	// Progress, if non-nil, is incremented atomically as candidates are
	// processed; callers may poll it from another goroutine.
	Progress *atomic.Int64
}

// NewExecutor builds an Executor over scanner with the given worker
// count (clamped to at least 1).
func NewExecutor(scanner kernel.DigitScanner, threads int) *Executor {
	if threads < 1 {
		threads = 1
	}
	return &Executor{Scanner: scanner, Threads: threads, Progress: new(atomic.Int64)}
}

// Run scans [r.Start, r.End) in base and mode, returning a deterministic
// Result regardless of thread count or partitioning.
func (e *Executor) Run(ctx context.Context, r filter.Range, base uint32, mode model.SearchMode) (Result, error) {
	subRanges := partition(r, e.Threads)

	pool := pond.NewPool(e.Threads)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	local := make([]Result, len(subRanges))
	for i, sub := range subRanges {
		i, sub := i, sub
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			if mode == model.ModeDetailed {
				local[i] = e.runDetailed(sub, base)
			} else {
				local[i] = e.runNiceonly(sub, base)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return Result{}, err
	}

	return merge(local), nil
}

// runDetailed scans every candidate in r with no filtering — the
// histogram must reflect every n in the range, not just the ones that
// pass a niceonly pre-filter.
func (e *Executor) runDetailed(r filter.Range, base uint32) Result {
	dist := model.Distribution{}
	var numbers []model.NiceNumber
	threshold := model.NotableThreshold(base)

	n := r.Start
	count := int64(0)
	for n.Cmp(r.End) < 0 {
		uniques := e.Scanner.NumUniques(n, base)
		dist[uniques]++
		if uniques > threshold {
			numbers = append(numbers, model.NiceNumber{Number: decimalFromUint128(n), NumUniques: uniques})
		}
		n = n.AddUint64(1)
		count++
		if e.Progress != nil && count%ProgressInterval == 0 {
			e.Progress.Add(ProgressInterval)
		}
	}
	if e.Progress != nil {
		e.Progress.Add(count % ProgressInterval)
	}
	return Result{Distribution: dist, Numbers: numbers}
}

// runNiceonly enumerates only candidates that survive the MSD prefix
// filter and the CRT stride table, applying the early-exit kernel to
// each survivor.
func (e *Executor) runNiceonly(r filter.Range, base uint32) Result {
	k := filter.RecommendedK(base)
	table := filter.NewStrideTable(base, k)
	if table.Empty() {
		// No residue mod (b-1) can ever be nice in this base: every
		// Field is vacuously complete without evaluating a candidate.
		return Result{}
	}

	var numbers []model.NiceNumber
	var count int64

	for _, sub := range filter.ValidRanges(r, base) {
		n, idx := table.FirstValidAtOrAfter(sub.Start)
		for n.Cmp(sub.End) < 0 {
			if e.Scanner.IsNice(n, base) {
				numbers = append(numbers, model.NiceNumber{Number: decimalFromUint128(n), NumUniques: base})
			}
			n, idx = table.Next(n, idx)
			count++
			if e.Progress != nil && count%ProgressInterval == 0 {
				e.Progress.Add(ProgressInterval)
			}
		}
	}
	if e.Progress != nil {
		e.Progress.Add(count % ProgressInterval)
	}
	return Result{Numbers: numbers}
}

// partition splits r into up to n roughly-equal sub-ranges.
func partition(r filter.Range, n int) []filter.Range {
	size := r.Size()
	if n < 1 {
		n = 1
	}
	chunk, _ := size.DivModUint64(uint64(n))
	if chunk.IsZero() {
		return []filter.Range{r}
	}

	out := make([]filter.Range, 0, n)
	start := r.Start
	for i := 0; i < n; i++ {
		var end bignum.Uint128
		if i == n-1 {
			end = r.End
		} else {
			end = start.Add(chunk)
		}
		if start.Cmp(end) >= 0 {
			break
		}
		out = append(out, filter.Range{Start: start, End: end})
		start = end
	}
	return out
}

// merge combines per-worker results into one deterministic Result: the
// distribution sums commutatively, and the numbers list is sorted by
// value so byte-exact comparisons are possible downstream.
func merge(parts []Result) Result {
	dist := model.Distribution{}
	var numbers []model.NiceNumber
	for _, p := range parts {
		for k, v := range p.Distribution {
			dist[k] += v
		}
		numbers = append(numbers, p.Numbers...)
	}
	sort.Slice(numbers, func(i, j int) bool {
		return numbers[i].Number.LessThan(numbers[j].Number)
	})
	return Result{Distribution: dist, Numbers: numbers}
}
