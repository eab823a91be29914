package filter

import "github.com/wasabipesto/nice/internal/bignum"

// Recursive MSD subdivision parameters.
const (
	MSDRecursiveMaxDepth        = 11
	MSDRecursiveMinRangeSize    = 1000
	MSDRecursiveSubdivisionFact = 2
	// MSDLSDOverlapK is the number of least-significant digits checked
	// for collisions against the MSD prefix.
	MSDLSDOverlapK = 1
)

// Range is a half-open candidate interval [Start, End).
type Range struct {
	Start, End bignum.Uint128
}

// Size returns End-Start.
func (r Range) Size() bignum.Uint128 {
	return r.End.Sub(r.Start)
}

// First returns the first candidate in the range.
func (r Range) First() bignum.Uint128 { return r.Start }

// Last returns the last candidate in the range (End-1).
func (r Range) Last() bignum.Uint128 { return r.End.Sub(bignum.NewUint128(1)) }

// HasDuplicateMSDPrefix reports whether every candidate in range is
// provably not nice because the most-significant digits shared by every
// square (or every cube) in the range already contain a duplicate, or
// because the square and cube MSD prefixes overlap, or because — when
// the range is narrow enough that every candidate shares the same
// low-order suffix — the MSD prefix collides with that fixed LSD
// suffix.
func HasDuplicateMSDPrefix(r Range, base uint32) bool {
	if r.Size().Cmp(bignum.NewUint128(1)) <= 0 {
		return false
	}

	startSq := r.First().Square().DigitsAsc(base)
	endSq := r.Last().Square().DigitsAsc(base)
	if len(startSq) != len(endSq) {
		return false
	}
	sqPrefix := commonMSDPrefix(startSq, endSq)
	if hasDuplicateDigits(sqPrefix) {
		return true
	}

	startCu := bignum.Cube128(r.First()).DigitsAsc(base)
	endCu := bignum.Cube128(r.Last()).DigitsAsc(base)
	if len(startCu) != len(endCu) {
		return false
	}
	cuPrefix := commonMSDPrefix(startCu, endCu)
	if hasDuplicateDigits(cuPrefix) {
		return true
	}

	if hasOverlappingDigits(sqPrefix, cuPrefix) {
		return true
	}

	bK := pow64(uint64(base), MSDLSDOverlapK)
	spansSingleSuffix := r.Size().Cmp(bignum.NewUint128(bK)) <= 0 &&
		r.First().ModUint64(bK) == r.Last().ModUint64(bK)
	if spansSingleSuffix {
		lsdSq := extractLSDSuffix(startSq, MSDLSDOverlapK)
		lsdCu := extractLSDSuffix(startCu, MSDLSDOverlapK)

		switch {
		case hasOverlappingDigits(sqPrefix, lsdSq),
			hasOverlappingDigits(cuPrefix, lsdCu),
			hasOverlappingDigits(sqPrefix, lsdCu),
			hasOverlappingDigits(cuPrefix, lsdSq),
			hasDuplicateDigits(lsdSq),
			hasDuplicateDigits(lsdCu),
			hasOverlappingDigits(lsdSq, lsdCu):
			return true
		}
	}

	return false
}

// commonMSDPrefix finds the longest run of matching digits working
// backwards from the most-significant end of two ascending-order digit
// slices.
func commonMSDPrefix(digits1, digits2 []uint32) []uint32 {
	len1, len2 := len(digits1), len(digits2)
	minLen := len1
	if len2 < minLen {
		minLen = len2
	}
	var common []uint32
	for i := 0; i < minLen; i++ {
		idx1 := len1 - 1 - i
		idx2 := len2 - 1 - i
		if digits1[idx1] != digits2[idx2] {
			break
		}
		common = append(common, digits1[idx1])
	}
	return common
}

func extractLSDSuffix(digitsAsc []uint32, k int) []uint32 {
	if k > len(digitsAsc) {
		k = len(digitsAsc)
	}
	return digitsAsc[:k]
}

func hasDuplicateDigits(digits []uint32) bool {
	var seen [256]bool
	for _, d := range digits {
		if d >= 256 {
			continue
		}
		if seen[d] {
			return true
		}
		seen[d] = true
	}
	return false
}

func hasOverlappingDigits(a, b []uint32) bool {
	var seen [256]bool
	for _, d := range a {
		if d < 256 {
			seen[d] = true
		}
	}
	for _, d := range b {
		if d < 256 && seen[d] {
			return true
		}
	}
	return false
}

// ValidRanges recursively subdivides range, dropping any sub-range whose
// MSD prefix proves it cannot contain a nice number, and returns the
// sub-ranges that still need per-candidate processing.
func ValidRanges(r Range, base uint32) []Range {
	return validRangesRecursive(r, base, 0, MSDRecursiveMaxDepth, bignum.NewUint128(MSDRecursiveMinRangeSize), MSDRecursiveSubdivisionFact)
}

func validRangesRecursive(r Range, base uint32, depth, maxDepth int, minSize bignum.Uint128, subdivisionFactor int) []Range {
	if depth >= maxDepth {
		return []Range{r}
	}
	if r.Size().Cmp(minSize) <= 0 {
		return []Range{r}
	}
	if HasDuplicateMSDPrefix(r, base) {
		return nil
	}

	threshold, _ := minSize.MulUint64(uint64(subdivisionFactor))
	if r.Size().Cmp(threshold) < 0 {
		return []Range{r}
	}

	chunkSize, _ := r.Size().DivModUint64(uint64(subdivisionFactor))
	var out []Range
	subStart := r.Start
	for i := 0; i < subdivisionFactor; i++ {
		var subEnd bignum.Uint128
		if i == subdivisionFactor-1 {
			subEnd = r.End
		} else {
			subEnd = subStart.Add(chunkSize)
		}
		if subStart.Cmp(subEnd) < 0 {
			out = append(out, validRangesRecursive(Range{Start: subStart, End: subEnd}, base, depth+1, maxDepth, minSize, subdivisionFactor)...)
		}
		subStart = subEnd
	}
	return out
}
