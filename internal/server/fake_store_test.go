package server

import (
	"context"
	"sync"
	"time"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/store"
)

// fakeStore is a minimal in-memory store.Store used to exercise the
// HTTP layer without a real database. Unlike the pgxmock-backed store
// tests, nothing here asserts on query shape, it just keeps state in
// maps.
type fakeStore struct {
	mu sync.Mutex

	bases       map[int64]model.Base
	chunks      map[int64]model.Chunk
	fields      map[int64]model.Field
	claims      map[int64]model.Claim
	submissions map[int64]model.Submission

	nextClaimID int64
	nextSubID   int64

	claimQueue []int64 // field IDs returned by ClaimField in order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bases:       make(map[int64]model.Base),
		chunks:      make(map[int64]model.Chunk),
		fields:      make(map[int64]model.Field),
		claims:      make(map[int64]model.Claim),
		submissions: make(map[int64]model.Submission),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error    { return nil }
func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) UpsertBase(ctx context.Context, b *model.Base) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bases[b.ID] = *b
	return nil
}

func (f *fakeStore) GetBase(ctx context.Context, id int64) (*model.Base, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bases[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) ListBases(ctx context.Context) ([]model.Base, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Base, 0, len(f.bases))
	for _, b := range f.bases {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) UpdateBaseRollup(ctx context.Context, baseID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bases[baseID]
	b.Distribution = dist.ToBuckets()
	b.NicenessMean = mean
	b.NicenessStdev = stdev
	b.Numbers = numbers
	f.bases[baseID] = b
	return nil
}

func (f *fakeStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeStore) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chunks[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) ListChunks(ctx context.Context, baseID int64) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.BaseID == baseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateChunkRollup(ctx context.Context, chunkID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	return nil
}

func (f *fakeStore) InsertFields(ctx context.Context, fields []model.Field) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fd := range fields {
		f.fields[fd.ID] = fd
	}
	return nil
}

func (f *fakeStore) ListFields(ctx context.Context, filter store.FieldFilter) ([]model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Field
	for _, fd := range f.fields {
		out = append(out, fd)
	}
	return out, nil
}

func (f *fakeStore) GetField(ctx context.Context, id int64) (*model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd, ok := f.fields[id]
	if !ok {
		return nil, nil
	}
	return &fd, nil
}

func (f *fakeStore) GetRandomVerifiedField(ctx context.Context) (*model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fd := range f.fields {
		if fd.CheckLevel >= 2 && fd.CanonSubmissionID != nil {
			return &fd, nil
		}
	}
	return nil, nil
}

// ClaimField pops the next field ID queued via queueClaim, ignoring
// policy: tests control ordering directly rather than reimplementing
// selection logic.
func (f *fakeStore) ClaimField(ctx context.Context, policy store.ClaimPolicy, searchMode model.SearchMode, userIP string) (*model.Field, *model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.claimQueue) == 0 {
		return nil, nil, store.ErrNoFieldAvailable
	}
	fieldID := f.claimQueue[0]
	f.claimQueue = f.claimQueue[1:]

	fd, ok := f.fields[fieldID]
	if !ok {
		return nil, nil, store.ErrNoFieldAvailable
	}

	f.nextClaimID++
	now := time.Now().UTC()
	fd.LastClaimTime = &now
	f.fields[fieldID] = fd

	claim := model.Claim{ID: f.nextClaimID, FieldID: fieldID, SearchMode: searchMode, ClaimTime: now, UserIP: userIP}
	f.claims[claim.ID] = claim
	return &fd, &claim, nil
}

func (f *fakeStore) UpdateFieldConsensus(ctx context.Context, fieldID int64, checkLevel uint8, canonSubmissionID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd := f.fields[fieldID]
	fd.CheckLevel = checkLevel
	fd.CanonSubmissionID = canonSubmissionID
	f.fields[fieldID] = fd
	return nil
}

func (f *fakeStore) ExpireStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (f *fakeStore) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) InsertSubmission(ctx context.Context, s *model.Submission) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSubID++
	s.ID = f.nextSubID
	f.submissions[s.ID] = *s
	return s.ID, nil
}

func (f *fakeStore) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Submission
	for _, s := range f.submissions {
		if filter.FieldID != 0 && s.FieldID != filter.FieldID {
			continue
		}
		if filter.ExcludeDisqualified && s.Disqualified {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) DisqualifySubmission(ctx context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.submissions[id]
	s.Disqualified = true
	f.submissions[id] = s
	return nil
}

// queueClaim arranges for the next N calls to ClaimField to hand out
// these field IDs in order.
func (f *fakeStore) queueClaim(fieldIDs ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimQueue = append(f.claimQueue, fieldIDs...)
}

var _ store.Store = (*fakeStore)(nil)
