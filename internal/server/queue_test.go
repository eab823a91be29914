package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/model"
)

func TestNiceonlyQueueClaimReturnsFalseWhenEmpty(t *testing.T) {
	s := newFakeStore()
	q := NewNiceonlyQueue(s)

	_, _, ok := q.Claim(context.Background())
	assert.False(t, ok)
}

func TestNiceonlyQueueClaimServesPrefilledField(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 0, 100)
	s.queueClaim(1)

	q := NewNiceonlyQueue(s)
	q.Prefill(context.Background())
	require.Equal(t, 1, q.Size())

	field, claim, ok := q.Claim(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(1), field.ID)
	assert.Equal(t, model.ModeNiceonly, claim.SearchMode)
	assert.Equal(t, 0, q.Size())
}

func TestNiceonlyQueueRefillsBelowThreshold(t *testing.T) {
	s := newFakeStore()
	for i := int64(1); i <= refillThreshold+1; i++ {
		seedField(s, i, 10, i, i+1)
		s.queueClaim(i)
	}

	q := NewNiceonlyQueue(s)
	q.Prefill(context.Background())
	assert.Equal(t, refillThreshold+1, q.Size())

	// Draining past the threshold should trigger a refill attempt; with
	// no more queued claims available it just runs dry without erroring.
	for i := 0; i < refillThreshold+1; i++ {
		_, _, ok := q.Claim(context.Background())
		require.True(t, ok)
	}
	_, _, ok := q.Claim(context.Background())
	assert.False(t, ok)
}
