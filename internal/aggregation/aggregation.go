// Package aggregation computes Base/Chunk rollups from canonical
// submissions: the merged distribution histogram, niceness mean/stdev,
// and the downsampled top-N notable numbers. Grounded on
// distribution_stats.rs and number_stats.rs, with one deliberate
// divergence applied per the REDESIGN FLAG: downsampling keeps the
// highest-niceness numbers, not the largest-magnitude ones.
package aggregation

import (
	"math"
	"sort"

	"github.com/wasabipesto/nice/internal/model"
)

// Rollup is the aggregate statistics derived from a set of canonical
// submissions over a Base or Chunk.
type Rollup struct {
	Distribution  model.Distribution
	NicenessMean  float64
	NicenessStdev float64
	Numbers       []model.NiceNumber
}

// Compute merges the distributions and numbers of canonSubs (one per
// field, already filtered to canonical detailed submissions) and
// downsamples the notable numbers to model.SaveTopN.
func Compute(canonSubs []model.Submission, base uint32) Rollup {
	dist := model.Distribution{}
	var allNumbers []model.NiceNumber

	for _, sub := range canonSubs {
		for _, bucket := range sub.Distribution {
			dist[bucket.NumUniques] += bucket.Count
		}
		allNumbers = append(allNumbers, sub.Numbers...)
	}

	mean, stdev := meanStdev(dist, base)

	return Rollup{
		Distribution:  dist,
		NicenessMean:  mean,
		NicenessStdev: stdev,
		Numbers:       downsampleByNiceness(allNumbers, base, model.SaveTopN),
	}
}

// meanStdev computes the niceness mean/standard deviation of a
// distribution, weighting each num_uniques bucket by its count, exactly
// matching mean_stdev_from_distribution in the original.
func meanStdev(dist model.Distribution, base uint32) (float64, float64) {
	var count uint64
	for _, c := range dist {
		count += c
	}
	if count == 0 {
		return 0, 0
	}

	var mean, sumSq float64
	for uniques, c := range dist {
		n := model.Niceness(uniques, base)
		weight := float64(c)
		mean += n * weight
		sumSq += weight * n * n
	}
	mean /= float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// downsampleByNiceness keeps the topN numbers ranked by
// (niceness desc, number asc) — the REDESIGN-flagged departure from the
// original's magnitude-based downsample_numbers.
func downsampleByNiceness(numbers []model.NiceNumber, base uint32, topN int) []model.NiceNumber {
	sorted := append([]model.NiceNumber(nil), numbers...)
	sort.Slice(sorted, func(i, j int) bool {
		ni, nj := sorted[i].Niceness(base), sorted[j].Niceness(base)
		if ni != nj {
			return ni > nj
		}
		return sorted[i].Number.LessThan(sorted[j].Number)
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}
