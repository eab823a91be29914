package rangecalc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func big10(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad literal: " + s)
	}
	return n
}

func TestForBaseKnownValues(t *testing.T) {
	cases := []struct {
		base       uint32
		start, end string
		ok         bool
	}{
		{5, "3", "5", true},
		{6, "", "", false},
		{7, "7", "13", true},
		{8, "16", "22", true},
		{9, "27", "38", true},
		{10, "47", "100", true},
		{20, "58945", "160000", true},
		{30, "234613921", "729000000", true},
		{40, "1916284264916", "6553600000000", true},
		{50, "26507984537059635", "97656250000000000", true},
		{60, "556029612114824200908", "2176782336000000000000", true},
		{80, "653245554420798943087177909799", "2814749767106560000000000000000", true},
		{121, "", "", false},
	}
	for _, c := range cases {
		r, ok := ForBase(c.base)
		require.Equal(t, c.ok, ok, "base %d", c.base)
		if !ok {
			continue
		}
		assert.Equal(t, big10(c.start).String(), r.Start.String(), "base %d start", c.base)
		assert.Equal(t, big10(c.end).String(), r.End.String(), "base %d end", c.base)
	}
}

func TestForBase100LargerThanUint128(t *testing.T) {
	r, ok := ForBase(100)
	require.True(t, ok)
	assert.Equal(t, "2154434690031883721759293566519350495260", r.Start.String())
	assert.Equal(t, "10000000000000000000000000000000000000000", r.End.String())
}
