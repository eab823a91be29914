package seed

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/rangecalc"
	"github.com/wasabipesto/nice/internal/store"
)

// fakeStore is a minimal in-memory store.Store covering just the
// methods Base touches, enough to test seeding without a real database.
// The rest of the interface is stubbed since Base never calls it.
type fakeStore struct {
	bases  []model.Base
	chunks []model.Chunk
	fields []model.Field
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) Ping(ctx context.Context) error    { return nil }
func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) UpsertBase(ctx context.Context, b *model.Base) error {
	b.ID = int64(len(f.bases) + 1)
	f.bases = append(f.bases, *b)
	return nil
}
func (f *fakeStore) GetBase(ctx context.Context, id int64) (*model.Base, error) { return nil, nil }
func (f *fakeStore) ListBases(ctx context.Context) ([]model.Base, error)        { return f.bases, nil }
func (f *fakeStore) UpdateBaseRollup(ctx context.Context, baseID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	return nil
}

func (f *fakeStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	for i := range chunks {
		chunks[i].ID = int64(len(f.chunks) + 1)
		f.chunks = append(f.chunks, chunks[i])
	}
	return nil
}
func (f *fakeStore) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) { return nil, nil }
func (f *fakeStore) ListChunks(ctx context.Context, baseID int64) ([]model.Chunk, error) {
	return f.chunks, nil
}
func (f *fakeStore) UpdateChunkRollup(ctx context.Context, chunkID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	return nil
}

func (f *fakeStore) InsertFields(ctx context.Context, fields []model.Field) error {
	for i := range fields {
		fields[i].ID = int64(len(f.fields) + 1)
		f.fields = append(f.fields, fields[i])
	}
	return nil
}
func (f *fakeStore) ListFields(ctx context.Context, filter store.FieldFilter) ([]model.Field, error) {
	return f.fields, nil
}
func (f *fakeStore) GetField(ctx context.Context, id int64) (*model.Field, error) { return nil, nil }
func (f *fakeStore) GetRandomVerifiedField(ctx context.Context) (*model.Field, error) {
	return nil, nil
}
func (f *fakeStore) ClaimField(ctx context.Context, policy store.ClaimPolicy, searchMode model.SearchMode, userIP string) (*model.Field, *model.Claim, error) {
	return nil, nil, nil
}
func (f *fakeStore) UpdateFieldConsensus(ctx context.Context, fieldID int64, checkLevel uint8, canonSubmissionID *int64) error {
	return nil
}
func (f *fakeStore) ExpireStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (f *fakeStore) GetClaim(ctx context.Context, id int64) (*model.Claim, error) { return nil, nil }

func (f *fakeStore) InsertSubmission(ctx context.Context, s *model.Submission) (int64, error) {
	return 0, nil
}
func (f *fakeStore) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	return nil, nil
}
func (f *fakeStore) ListSubmissions(ctx context.Context, filter store.SubmissionFilter) ([]model.Submission, error) {
	return nil, nil
}
func (f *fakeStore) DisqualifySubmission(ctx context.Context, id int64, reason string) error {
	return nil
}

func TestBreakRangeIntoFieldsExactDivision(t *testing.T) {
	spans := breakRangeIntoFields(big.NewInt(0), big.NewInt(100), big.NewInt(25))
	require.Len(t, spans, 4)
	assert.Equal(t, "0", spans[0].Start.String())
	assert.Equal(t, "25", spans[0].End.String())
	assert.Equal(t, "75", spans[3].Start.String())
	assert.Equal(t, "100", spans[3].End.String())
}

func TestBreakRangeIntoFieldsNarrowLastSpan(t *testing.T) {
	spans := breakRangeIntoFields(big.NewInt(47), big.NewInt(100), big.NewInt(30))
	require.Len(t, spans, 2)
	assert.Equal(t, "77", spans[1].Start.String())
	assert.Equal(t, "100", spans[1].End.String())
}

func TestBreakRangeIntoFieldsSingleSpanWhenSizeExceedsRange(t *testing.T) {
	spans := breakRangeIntoFields(big.NewInt(47), big.NewInt(100), big.NewInt(1_000_000))
	require.Len(t, spans, 1)
	assert.Equal(t, "47", spans[0].Start.String())
	assert.Equal(t, "100", spans[0].End.String())
}

func TestBaseSeedsChunksAndFieldsCoveringTheFullRange(t *testing.T) {
	s := &fakeStore{}
	br, ok := rangecalc.ForBase(10)
	require.True(t, ok)

	result, err := Base(context.Background(), s, 10, big.NewInt(20), big.NewInt(5))
	require.NoError(t, err)

	require.Len(t, s.bases, 1)
	assert.Equal(t, br.Start.String(), s.bases[0].RangeStart.String())
	assert.Equal(t, br.End.String(), s.bases[0].RangeEnd.String())

	require.NotEmpty(t, s.chunks)
	assert.Equal(t, br.Start.String(), s.chunks[0].RangeStart.String())
	assert.Equal(t, br.End.String(), s.chunks[len(s.chunks)-1].RangeEnd.String())
	assert.Equal(t, len(s.chunks), result.NumChunks)

	require.NotEmpty(t, s.fields)
	assert.Equal(t, br.Start.String(), s.fields[0].RangeStart.String())
	assert.Equal(t, br.End.String(), s.fields[len(s.fields)-1].RangeEnd.String())
	assert.Equal(t, len(s.fields), result.NumFields)

	for _, c := range s.chunks {
		assert.Equal(t, s.bases[0].ID, c.BaseID)
	}
	for _, fd := range s.fields {
		assert.Equal(t, s.bases[0].ID, fd.BaseID)
		assert.NotZero(t, fd.ChunkID)
	}
}

func TestBaseRejectsNonPositiveSizes(t *testing.T) {
	s := &fakeStore{}
	_, err := Base(context.Background(), s, 10, big.NewInt(0), big.NewInt(5))
	assert.Error(t, err)
}

func TestBaseRejectsInvalidBase(t *testing.T) {
	s := &fakeStore{}
	_, err := Base(context.Background(), s, 11, big.NewInt(20), big.NewInt(5))
	assert.Error(t, err)
}

func TestBasesSkipsInvalidBasesInRange(t *testing.T) {
	s := &fakeStore{}
	result, err := Bases(context.Background(), s, 10, 12, big.NewInt(20), big.NewInt(5))
	require.NoError(t, err)
	assert.Positive(t, result.NumChunks)
	assert.Positive(t, result.NumFields)
}
