package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/store"
)

// refillThreshold is the queue size at or below which a refill fires.
const refillThreshold = 10

// refillAmount is how many fields a refill attempts to claim.
const refillAmount = 100

// NiceonlyQueue pre-claims a batch of check_level-0 fields so /claim/niceonly
// can serve from memory (~microseconds) instead of paying for a
// transactional database claim on every request. It is deliberately
// lossy: fields lost to a process crash simply expire after
// model.ClaimDuration and get reclaimed, same as any other stale claim.
type NiceonlyQueue struct {
	mu     sync.Mutex
	fields []queuedField
	store  store.Store
}

type queuedField struct {
	field model.Field
	claim model.Claim
}

// NewNiceonlyQueue creates an empty queue bound to the given store.
func NewNiceonlyQueue(s store.Store) *NiceonlyQueue {
	return &NiceonlyQueue{store: s}
}

// Claim pops one pre-claimed field, refilling first if the queue has
// dropped to or below refillThreshold. Returns ok=false if the queue
// (and its refill attempt) came up empty.
func (q *NiceonlyQueue) Claim(ctx context.Context) (model.Field, model.Claim, bool) {
	q.mu.Lock()
	low := len(q.fields) <= refillThreshold
	q.mu.Unlock()

	if low {
		q.refill(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fields) == 0 {
		return model.Field{}, model.Claim{}, false
	}
	last := len(q.fields) - 1
	qf := q.fields[last]
	q.fields = q.fields[:last]
	return qf.field, qf.claim, true
}

// refill claims up to refillAmount fresh niceonly fields from the
// store and appends them to the queue. Individual claim failures are
// logged and skipped; a fully empty refill just leaves the queue
// empty, and Claim's caller falls back to a direct store claim.
func (q *NiceonlyQueue) refill(ctx context.Context) {
	claimed := make([]queuedField, 0, refillAmount)
	for i := 0; i < refillAmount; i++ {
		field, claim, err := q.store.ClaimField(ctx, store.PolicyNormal, model.ModeNiceonly, "")
		if err != nil {
			if err != store.ErrNoFieldAvailable {
				zap.L().Error("niceonly queue refill: claim failed", zap.Error(err))
			}
			break
		}
		claimed = append(claimed, queuedField{field: *field, claim: *claim})
	}

	if len(claimed) == 0 {
		zap.L().Warn("niceonly queue refill returned no fields")
		return
	}

	q.mu.Lock()
	q.fields = append(q.fields, claimed...)
	size := len(q.fields)
	q.mu.Unlock()

	zap.L().Debug("refilled niceonly queue", zap.Int("count", len(claimed)), zap.Int("queue_size", size))
}

// Prefill forces an immediate refill, used once at startup so the
// first wave of requests doesn't pay the database round trip.
func (q *NiceonlyQueue) Prefill(ctx context.Context) {
	zap.L().Info("pre-filling niceonly queue")
	q.refill(ctx)
}

// Size reports the current queue length, for the /status endpoint.
func (q *NiceonlyQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fields)
}

// StaleClaimSweeper periodically expires claims whose lease has run
// out so their fields become reclaimable again.
func StaleClaimSweeper(ctx context.Context, s store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-model.ClaimDuration)
			n, err := s.ExpireStaleClaims(ctx, cutoff)
			if err != nil {
				zap.L().Error("stale claim sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("expired stale claims", zap.Int("count", n))
			}
		}
	}
}
