// Package benchmark provides fixed, offline search ranges for
// performance evaluation without a coordination service: each mode is a
// known range_size at a known base so `nice client --benchmark=...` can
// report a candidates-per-second figure independent of network and
// database variance.
package benchmark

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/wasabipesto/nice/internal/rangecalc"
)

// Mode names a fixed benchmark range.
type Mode string

const (
	// ModeDefault is the everyday smoke-test range: 10^6 candidates at
	// base 40.
	ModeDefault Mode = "default"
	// ModeLarge is 10^8 candidates at base 40.
	ModeLarge Mode = "large"
	// ModeExtraLarge is 10^9 candidates at base 40, the size of a
	// typical field handed out by the coordination service.
	ModeExtraLarge Mode = "extra-large"
	// ModeHiBase is 10^6 candidates at base 80, for measuring how
	// kernel cost scales with wider digit bases.
	ModeHiBase Mode = "hi-base"
)

// anchorRangeStart is the lower bound of base 40's valid candidate
// range, shared as the starting point of every base-40 benchmark mode
// so their results stay comparable across runs.
var anchorRangeStart = decimal.RequireFromString("1916284264916")

type modeSpec struct {
	base uint32
	size int64
}

var modes = map[Mode]modeSpec{
	ModeDefault:    {base: 40, size: 1_000_000},
	ModeLarge:      {base: 40, size: 100_000_000},
	ModeExtraLarge: {base: 40, size: 1_000_000_000},
	ModeHiBase:     {base: 80, size: 1_000_000},
}

// Field is a self-contained unit of benchmark work: no claim_id, no
// coordination service round trip.
type Field struct {
	Base       uint32
	RangeStart decimal.Decimal
	RangeEnd   decimal.Decimal
}

// Get returns the fixed range for mode. Every base-40 mode shares the
// common anchor for cross-run comparability; hi-base searches a
// different base entirely, so it derives its own range start instead
// of reusing base 40's, otherwise it would benchmark digit-scan cost
// at a magnitude base 80 candidates never actually occupy.
func Get(mode Mode) (Field, error) {
	spec, ok := modes[mode]
	if !ok {
		return Field{}, eris.Errorf("benchmark: unknown mode %q", mode)
	}

	start := anchorRangeStart
	if mode == ModeHiBase {
		br, ok := rangecalc.ForBase(spec.base)
		if !ok {
			return Field{}, eris.Errorf("benchmark: no valid range for base %d", spec.base)
		}
		start = decimal.NewFromBigInt(br.Start, 0)
	}

	return Field{
		Base:       spec.base,
		RangeStart: start,
		RangeEnd:   start.Add(decimal.NewFromInt(spec.size)),
	}, nil
}

// ValidModes lists the recognized benchmark mode names, for CLI flag
// validation and help text.
func ValidModes() []Mode {
	return []Mode{ModeDefault, ModeLarge, ModeExtraLarge, ModeHiBase}
}
