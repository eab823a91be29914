// Package store persists Bases, Chunks, Fields, Claims, and Submissions
// behind a small interface with Postgres (production) and SQLite
// (local dev, seed, bench) implementations.
package store

import (
	"context"
	"time"

	"github.com/wasabipesto/nice/internal/model"
)

// ClaimPolicy selects which Field a claim request should receive.
type ClaimPolicy string

const (
	// PolicyNormal claims the lowest-check-level field on the lowest
	// range_size base that still needs work.
	PolicyNormal ClaimPolicy = "normal"
	// PolicyThin prioritizes chunks whose checked fraction is below
	// model.ThinFractionCutoff, to keep bases from developing long tails
	// of unchecked fields.
	PolicyThin ClaimPolicy = "thin"
	// PolicyPrioritized only claims fields with Prioritize set.
	PolicyPrioritized ClaimPolicy = "prioritized"
)

// FieldFilter narrows ListFields.
type FieldFilter struct {
	BaseID      int64
	MaxCheckLvl uint8
	Limit       int
	Offset      int
}

// SubmissionFilter narrows ListSubmissions.
type SubmissionFilter struct {
	FieldID             int64
	SearchMode          model.SearchMode
	ExcludeDisqualified bool
	Limit               int
}

// Store is the persistence boundary the coordination service, seeder,
// and aggregator all depend on.
type Store interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	// Bases
	UpsertBase(ctx context.Context, b *model.Base) error
	GetBase(ctx context.Context, id int64) (*model.Base, error)
	ListBases(ctx context.Context) ([]model.Base, error)
	UpdateBaseRollup(ctx context.Context, baseID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error

	// Chunks
	InsertChunks(ctx context.Context, chunks []model.Chunk) error
	GetChunk(ctx context.Context, id int64) (*model.Chunk, error)
	ListChunks(ctx context.Context, baseID int64) ([]model.Chunk, error)
	UpdateChunkRollup(ctx context.Context, chunkID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error

	// Fields
	InsertFields(ctx context.Context, fields []model.Field) error
	ListFields(ctx context.Context, filter FieldFilter) ([]model.Field, error)
	GetField(ctx context.Context, id int64) (*model.Field, error)
	// GetRandomVerifiedField picks one field at check_level 2 with a
	// canon submission, for the client self-validation endpoint.
	GetRandomVerifiedField(ctx context.Context) (*model.Field, error)
	// ClaimField atomically selects and leases one eligible field under
	// policy for searchMode, recording a Claim, and returns both.
	ClaimField(ctx context.Context, policy ClaimPolicy, searchMode model.SearchMode, userIP string) (*model.Field, *model.Claim, error)
	UpdateFieldConsensus(ctx context.Context, fieldID int64, checkLevel uint8, canonSubmissionID *int64) error
	ExpireStaleClaims(ctx context.Context, olderThan time.Time) (int, error)

	// Claims
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)

	// Submissions
	InsertSubmission(ctx context.Context, s *model.Submission) (int64, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error)
	DisqualifySubmission(ctx context.Context, id int64, reason string) error
}
