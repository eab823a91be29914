package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/resilience"
)

// deadLetterQueue holds submissions that exhausted their retry budget
// against the coordination service, so a finished search isn't silently
// lost to a transient outage. It never persists across process restarts;
// a long outage means re-running the affected field once connectivity
// returns.
type deadLetterQueue struct {
	mu      sync.Mutex
	entries []resilience.DLQEntry
}

func newDeadLetterQueue() *deadLetterQueue {
	return &deadLetterQueue{}
}

// add records a submission that failed to deliver, classifying the
// error as transient or permanent for later triage.
func (q *deadLetterQueue) add(sub model.Submission, failedPhase string, maxRetries int, err error) resilience.DLQEntry {
	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		Submission:   sub,
		Error:        err.Error(),
		ErrorType:    resilience.ClassifyError(err),
		FailedPhase:  failedPhase,
		RetryCount:   0,
		MaxRetries:   maxRetries,
		NextRetryAt:  now,
		CreatedAt:    now,
		LastFailedAt: now,
	}
	q.mu.Lock()
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
	return entry
}

// list returns a snapshot of entries matching filter, most recent last.
func (q *deadLetterQueue) list(filter resilience.DLQFilter) []resilience.DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]resilience.DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// len reports the current queue depth.
func (q *deadLetterQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
