package benchmark

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/rangecalc"
)

func TestGetDefaultModeIsOneMillionAtBase40(t *testing.T) {
	f, err := Get(ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), f.Base)
	assert.True(t, f.RangeStart.Equal(decimal.RequireFromString("1916284264916")))
	assert.True(t, f.RangeEnd.Sub(f.RangeStart).Equal(decimal.NewFromInt(1_000_000)))
}

func TestGetHiBaseModeIsBase80(t *testing.T) {
	f, err := Get(ModeHiBase)
	require.NoError(t, err)
	assert.Equal(t, uint32(80), f.Base)
	assert.True(t, f.RangeEnd.Sub(f.RangeStart).Equal(decimal.NewFromInt(1_000_000)))
}

func TestGetHiBaseModeDerivesItsOwnRangeStart(t *testing.T) {
	f, err := Get(ModeHiBase)
	require.NoError(t, err)

	br, ok := rangecalc.ForBase(80)
	require.True(t, ok)
	assert.True(t, f.RangeStart.Equal(decimal.NewFromBigInt(br.Start, 0)),
		"hi-base should derive its range start from base 80's own valid range, not base 40's anchor")
	assert.False(t, f.RangeStart.Equal(decimal.RequireFromString("1916284264916")))
}

func TestGetExtraLargeModeIsOneBillion(t *testing.T) {
	f, err := Get(ModeExtraLarge)
	require.NoError(t, err)
	assert.True(t, f.RangeEnd.Sub(f.RangeStart).Equal(decimal.NewFromInt(1_000_000_000)))
}

func TestGetUnknownModeErrors(t *testing.T) {
	_, err := Get(Mode("nonexistent"))
	assert.Error(t, err)
}

func TestValidModesListsAllFour(t *testing.T) {
	assert.Len(t, ValidModes(), 4)
}
