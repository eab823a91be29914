package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/wasabipesto/nice/internal/db"
	"github.com/wasabipesto/nice/internal/model"
)

// ErrNoFieldAvailable is returned by ClaimField when no field currently
// matches the requested policy and search mode.
var ErrNoFieldAvailable = eris.New("store: no field available for claim")

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection;
// at present only the submission lookup by id used by GetSubmission.
var preparedStatements = map[string]string{
	"get_submission": `SELECT id, claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers FROM submissions WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g. the aggregation job's read-heavy rollup
// queries).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bases (
	id               BIGSERIAL PRIMARY KEY,
	base             INTEGER NOT NULL UNIQUE,
	range_start      NUMERIC NOT NULL,
	range_end        NUMERIC NOT NULL,
	range_size       NUMERIC NOT NULL,
	checked_detailed NUMERIC NOT NULL DEFAULT 0,
	checked_niceonly NUMERIC NOT NULL DEFAULT 0,
	minimum_cl       SMALLINT NOT NULL DEFAULT 0,
	niceness_mean    REAL NOT NULL DEFAULT 0,
	niceness_stdev   REAL NOT NULL DEFAULT 0,
	distribution     JSONB NOT NULL DEFAULT '[]',
	numbers          JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS chunks (
	id               BIGSERIAL PRIMARY KEY,
	base_id          BIGINT NOT NULL REFERENCES bases(id),
	base             INTEGER NOT NULL,
	range_start      NUMERIC NOT NULL,
	range_end        NUMERIC NOT NULL,
	range_size       NUMERIC NOT NULL,
	checked_detailed NUMERIC NOT NULL DEFAULT 0,
	checked_niceonly NUMERIC NOT NULL DEFAULT 0,
	minimum_cl       SMALLINT NOT NULL DEFAULT 0,
	niceness_mean    REAL NOT NULL DEFAULT 0,
	niceness_stdev   REAL NOT NULL DEFAULT 0,
	distribution     JSONB NOT NULL DEFAULT '[]',
	numbers          JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_chunks_base_id ON chunks(base_id);

CREATE TABLE IF NOT EXISTS fields (
	id                  BIGSERIAL PRIMARY KEY,
	base_id             BIGINT NOT NULL REFERENCES bases(id),
	chunk_id            BIGINT NOT NULL REFERENCES chunks(id),
	base                INTEGER NOT NULL,
	range_start         NUMERIC NOT NULL,
	range_end           NUMERIC NOT NULL,
	check_level         SMALLINT NOT NULL DEFAULT 0,
	canon_submission_id BIGINT,
	last_claim_time     TIMESTAMPTZ,
	prioritize          BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS idx_fields_claim_selection
	ON fields(base_id, check_level, last_claim_time, (range_end - range_start));
CREATE INDEX IF NOT EXISTS idx_fields_prioritize ON fields(prioritize) WHERE prioritize;
CREATE INDEX IF NOT EXISTS idx_fields_chunk_id ON fields(chunk_id);

CREATE TABLE IF NOT EXISTS claims (
	id          BIGSERIAL PRIMARY KEY,
	field_id    BIGINT NOT NULL REFERENCES fields(id),
	search_mode TEXT NOT NULL,
	claim_time  TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_ip     TEXT
);
CREATE INDEX IF NOT EXISTS idx_claims_field_id ON claims(field_id);

CREATE TABLE IF NOT EXISTS submissions (
	id                 BIGSERIAL PRIMARY KEY,
	claim_id           BIGINT NOT NULL REFERENCES claims(id),
	field_id           BIGINT NOT NULL REFERENCES fields(id),
	search_mode        TEXT NOT NULL,
	submit_time        TIMESTAMPTZ NOT NULL DEFAULT now(),
	elapsed_secs       REAL NOT NULL,
	username           TEXT NOT NULL,
	client_version     TEXT NOT NULL,
	disqualified       BOOLEAN NOT NULL DEFAULT false,
	unique_distribution JSONB,
	nice_numbers       JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_submissions_field_mode_dq
	ON submissions(field_id, search_mode, disqualified);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	payload        JSONB NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_phase   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func marshalBuckets(buckets []model.UniqueCount) ([]byte, error) {
	return json.Marshal(buckets)
}

func marshalNumbers(numbers []model.NiceNumber) ([]byte, error) {
	return json.Marshal(numbers)
}

func (s *PostgresStore) UpsertBase(ctx context.Context, b *model.Base) error {
	distJSON, err := marshalBuckets(b.Distribution)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal base distribution")
	}
	numJSON, err := marshalNumbers(b.Numbers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal base numbers")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO bases (base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (base) DO UPDATE SET
		   checked_detailed = $5, checked_niceonly = $6, minimum_cl = $7,
		   niceness_mean = $8, niceness_stdev = $9, distribution = $10, numbers = $11
		 RETURNING id`,
		b.B, b.RangeStart, b.RangeEnd, b.RangeSize, b.CheckedDetailed, b.CheckedNiceonly,
		b.MinimumCL, b.NicenessMean, b.NicenessStdev, distJSON, numJSON,
	).Scan(&b.ID)
	return eris.Wrapf(err, "postgres: upsert base %d", b.B)
}

func (s *PostgresStore) GetBase(ctx context.Context, id int64) (*model.Base, error) {
	var b model.Base
	var distJSON, numJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM bases WHERE id = $1`, id,
	).Scan(&b.ID, &b.B, &b.RangeStart, &b.RangeEnd, &b.RangeSize, &b.CheckedDetailed, &b.CheckedNiceonly,
		&b.MinimumCL, &b.NicenessMean, &b.NicenessStdev, &distJSON, &numJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get base %d", id)
	}
	if err := json.Unmarshal(distJSON, &b.Distribution); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal base distribution")
	}
	if err := json.Unmarshal(numJSON, &b.Numbers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal base numbers")
	}
	return &b, nil
}

func (s *PostgresStore) ListBases(ctx context.Context) ([]model.Base, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM bases ORDER BY base ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bases")
	}
	defer rows.Close()

	var out []model.Base
	for rows.Next() {
		var b model.Base
		var distJSON, numJSON []byte
		if err := rows.Scan(&b.ID, &b.B, &b.RangeStart, &b.RangeEnd, &b.RangeSize, &b.CheckedDetailed, &b.CheckedNiceonly,
			&b.MinimumCL, &b.NicenessMean, &b.NicenessStdev, &distJSON, &numJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan base")
		}
		if err := json.Unmarshal(distJSON, &b.Distribution); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal base distribution")
		}
		if err := json.Unmarshal(numJSON, &b.Numbers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal base numbers")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list bases iterate")
}

func (s *PostgresStore) UpdateBaseRollup(ctx context.Context, baseID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	distJSON, err := marshalBuckets(dist.ToBuckets())
	if err != nil {
		return eris.Wrap(err, "postgres: marshal base rollup distribution")
	}
	numJSON, err := marshalNumbers(numbers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal base rollup numbers")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE bases SET niceness_mean = $1, niceness_stdev = $2, distribution = $3, numbers = $4 WHERE id = $5`,
		mean, stdev, distJSON, numJSON, baseID,
	)
	return eris.Wrapf(err, "postgres: update base rollup %d", baseID)
}

func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	rows := make([][]any, len(chunks))
	for i, c := range chunks {
		rows[i] = []any{c.BaseID, c.B, c.RangeStart, c.RangeEnd, c.RangeSize}
	}
	_, err := db.CopyFrom(ctx, s.pool, "chunks", []string{"base_id", "base", "range_start", "range_end", "range_size"}, rows)
	return eris.Wrap(err, "postgres: insert chunks")
}

func (s *PostgresStore) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) {
	var c model.Chunk
	var distJSON, numJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, base_id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM chunks WHERE id = $1`, id,
	).Scan(&c.ID, &c.BaseID, &c.B, &c.RangeStart, &c.RangeEnd, &c.RangeSize, &c.CheckedDetailed, &c.CheckedNiceonly,
		&c.MinimumCL, &c.NicenessMean, &c.NicenessStdev, &distJSON, &numJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get chunk %d", id)
	}
	if err := json.Unmarshal(distJSON, &c.Distribution); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal chunk distribution")
	}
	if err := json.Unmarshal(numJSON, &c.Numbers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal chunk numbers")
	}
	return &c, nil
}

func (s *PostgresStore) ListChunks(ctx context.Context, baseID int64) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, base_id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM chunks WHERE base_id = $1 ORDER BY range_start ASC`, baseID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list chunks for base %d", baseID)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var distJSON, numJSON []byte
		if err := rows.Scan(&c.ID, &c.BaseID, &c.B, &c.RangeStart, &c.RangeEnd, &c.RangeSize, &c.CheckedDetailed, &c.CheckedNiceonly,
			&c.MinimumCL, &c.NicenessMean, &c.NicenessStdev, &distJSON, &numJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk")
		}
		if err := json.Unmarshal(distJSON, &c.Distribution); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal chunk distribution")
		}
		if err := json.Unmarshal(numJSON, &c.Numbers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal chunk numbers")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list chunks iterate")
}

func (s *PostgresStore) UpdateChunkRollup(ctx context.Context, chunkID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	distJSON, err := marshalBuckets(dist.ToBuckets())
	if err != nil {
		return eris.Wrap(err, "postgres: marshal chunk rollup distribution")
	}
	numJSON, err := marshalNumbers(numbers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal chunk rollup numbers")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE chunks SET niceness_mean = $1, niceness_stdev = $2, distribution = $3, numbers = $4 WHERE id = $5`,
		mean, stdev, distJSON, numJSON, chunkID,
	)
	return eris.Wrapf(err, "postgres: update chunk rollup %d", chunkID)
}

func (s *PostgresStore) InsertFields(ctx context.Context, fields []model.Field) error {
	rows := make([][]any, len(fields))
	for i, f := range fields {
		rows[i] = []any{f.BaseID, f.ChunkID, f.B, f.RangeStart, f.RangeEnd, f.Prioritize}
	}
	_, err := db.CopyFrom(ctx, s.pool, "fields", []string{"base_id", "chunk_id", "base", "range_start", "range_end", "prioritize"}, rows)
	return eris.Wrap(err, "postgres: insert fields")
}

func (s *PostgresStore) ListFields(ctx context.Context, filter FieldFilter) ([]model.Field, error) {
	query := `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
	          FROM fields WHERE true`
	args := []any{}
	argIdx := 1
	if filter.BaseID != 0 {
		query += fmt.Sprintf(" AND base_id = $%d", argIdx)
		args = append(args, filter.BaseID)
		argIdx++
	}
	query += fmt.Sprintf(" AND check_level <= $%d", argIdx)
	args = append(args, filter.MaxCheckLvl)
	argIdx++
	query += " ORDER BY range_start ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fields")
	}
	defer rows.Close()

	var out []model.Field
	for rows.Next() {
		var f model.Field
		if err := rows.Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.B, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list fields iterate")
}

func (s *PostgresStore) GetField(ctx context.Context, id int64) (*model.Field, error) {
	var f model.Field
	err := s.pool.QueryRow(ctx,
		`SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		 FROM fields WHERE id = $1`, id,
	).Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.B, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get field %d", id)
	}
	return &f, nil
}

func (s *PostgresStore) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	var c model.Claim
	err := s.pool.QueryRow(ctx,
		`SELECT id, field_id, search_mode, claim_time, user_ip FROM claims WHERE id = $1`, id,
	).Scan(&c.ID, &c.FieldID, &c.SearchMode, &c.ClaimTime, &c.UserIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get claim %d", id)
	}
	return &c, nil
}

// GetRandomVerifiedField picks a uniformly random fully-verified field
// via ORDER BY random(), acceptable since validation is an occasional
// self-check request rather than a hot path.
func (s *PostgresStore) GetRandomVerifiedField(ctx context.Context) (*model.Field, error) {
	var f model.Field
	err := s.pool.QueryRow(ctx,
		`SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		 FROM fields WHERE check_level >= 2 AND canon_submission_id IS NOT NULL
		 ORDER BY random() LIMIT 1`,
	).Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.B, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get random verified field")
	}
	return &f, nil
}

// ClaimField selects an eligible field with SELECT ... FOR UPDATE SKIP
// LOCKED so concurrent claim requests never contend on the same row,
// stamps last_claim_time, and records the Claim in the same
// transaction.
func (s *PostgresStore) ClaimField(ctx context.Context, policy ClaimPolicy, searchMode model.SearchMode, userIP string) (*model.Field, *model.Claim, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: claim field: begin tx")
	}
	defer tx.Rollback(ctx)

	requiredLevel := model.RequiredLevel(searchMode)
	leaseCutoff := time.Now().UTC().Add(-model.ClaimDuration)

	var selectSQL string
	switch policy {
	case PolicyPrioritized:
		selectSQL = `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		             FROM fields WHERE prioritize AND check_level < $1 AND (last_claim_time IS NULL OR last_claim_time < $2)
		             ORDER BY range_start ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
	case PolicyThin:
		selectSQL = `SELECT f.id, f.base_id, f.chunk_id, f.base, f.range_start, f.range_end, f.check_level, f.canon_submission_id, f.last_claim_time, f.prioritize
		             FROM fields f JOIN chunks c ON c.id = f.chunk_id
		             WHERE f.check_level < $1 AND (f.last_claim_time IS NULL OR f.last_claim_time < $2)
		               AND (c.checked_niceonly / NULLIF(c.range_size, 0)) < $3
		             ORDER BY f.range_start ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
	default:
		selectSQL = `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		             FROM fields WHERE check_level < $1 AND (last_claim_time IS NULL OR last_claim_time < $2)
		             ORDER BY base_id ASC, range_start ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
	}

	var f model.Field
	var row pgx.Row
	if policy == PolicyThin {
		row = tx.QueryRow(ctx, selectSQL, requiredLevel, leaseCutoff, model.ThinFractionCutoff)
	} else {
		row = tx.QueryRow(ctx, selectSQL, requiredLevel, leaseCutoff)
	}
	err = row.Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.B, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNoFieldAvailable
		}
		return nil, nil, eris.Wrap(err, "postgres: claim field: select")
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE fields SET last_claim_time = $1 WHERE id = $2`, now, f.ID); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: claim field: update last_claim_time")
	}

	var claim model.Claim
	err = tx.QueryRow(ctx,
		`INSERT INTO claims (field_id, search_mode, claim_time, user_ip) VALUES ($1, $2, $3, $4) RETURNING id, field_id, search_mode, claim_time, user_ip`,
		f.ID, string(searchMode), now, userIP,
	).Scan(&claim.ID, &claim.FieldID, &claim.SearchMode, &claim.ClaimTime, &claim.UserIP)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: claim field: insert claim")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "postgres: claim field: commit")
	}
	f.LastClaimTime = &now
	return &f, &claim, nil
}

func (s *PostgresStore) UpdateFieldConsensus(ctx context.Context, fieldID int64, checkLevel uint8, canonSubmissionID *int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE fields SET check_level = $1, canon_submission_id = $2 WHERE id = $3`,
		checkLevel, canonSubmissionID, fieldID,
	)
	return eris.Wrapf(err, "postgres: update field consensus %d", fieldID)
}

func (s *PostgresStore) ExpireStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fields SET last_claim_time = NULL
		 WHERE last_claim_time < $1
		   AND id NOT IN (SELECT field_id FROM submissions WHERE submit_time > $1)`,
		olderThan,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire stale claims")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, sub *model.Submission) (int64, error) {
	distJSON, err := marshalBuckets(sub.Distribution)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal submission distribution")
	}
	numJSON, err := marshalNumbers(sub.Numbers)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal submission numbers")
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO submissions (claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		sub.ClaimID, sub.FieldID, string(sub.SearchMode), sub.SubmitTime, sub.ElapsedSecs, sub.Username, sub.ClientVersion, sub.Disqualified, distJSON, numJSON,
	).Scan(&sub.ID)
	return sub.ID, eris.Wrap(err, "postgres: insert submission")
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	var sub model.Submission
	var distJSON []byte
	var numJSON []byte
	err := s.pool.QueryRow(ctx, "get_submission", id).
		Scan(&sub.ID, &sub.ClaimID, &sub.FieldID, &sub.SearchMode, &sub.SubmitTime, &sub.ElapsedSecs, &sub.Username, &sub.ClientVersion, &sub.Disqualified, &distJSON, &numJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get submission %d", id)
	}
	if len(distJSON) > 0 {
		if err := json.Unmarshal(distJSON, &sub.Distribution); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal submission distribution")
		}
	}
	if err := json.Unmarshal(numJSON, &sub.Numbers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal submission numbers")
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT id, claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers
	          FROM submissions WHERE field_id = $1`
	args := []any{filter.FieldID}
	argIdx := 2
	if filter.SearchMode != "" {
		query += fmt.Sprintf(" AND search_mode = $%d", argIdx)
		args = append(args, string(filter.SearchMode))
		argIdx++
	}
	if filter.ExcludeDisqualified {
		query += " AND NOT disqualified"
	}
	query += " ORDER BY submit_time ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		var sub model.Submission
		var distJSON, numJSON []byte
		if err := rows.Scan(&sub.ID, &sub.ClaimID, &sub.FieldID, &sub.SearchMode, &sub.SubmitTime, &sub.ElapsedSecs, &sub.Username, &sub.ClientVersion, &sub.Disqualified, &distJSON, &numJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission")
		}
		if len(distJSON) > 0 {
			if err := json.Unmarshal(distJSON, &sub.Distribution); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal submission distribution")
			}
		}
		if err := json.Unmarshal(numJSON, &sub.Numbers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal submission numbers")
		}
		out = append(out, sub)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list submissions iterate")
}

func (s *PostgresStore) DisqualifySubmission(ctx context.Context, id int64, reason string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE submissions SET disqualified = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: disqualify submission %d (%s)", id, reason)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %d", id)
	}
	return nil
}
