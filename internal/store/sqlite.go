package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/wasabipesto/nice/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// backend for local development, the seed command, and benchmarks,
// none of which need Postgres's concurrent-claim guarantees — a single
// writer connection and a plain transaction around ClaimField are
// enough.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bases (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	base             INTEGER NOT NULL UNIQUE,
	range_start      TEXT NOT NULL,
	range_end        TEXT NOT NULL,
	range_size       TEXT NOT NULL,
	checked_detailed TEXT NOT NULL DEFAULT '0',
	checked_niceonly TEXT NOT NULL DEFAULT '0',
	minimum_cl       INTEGER NOT NULL DEFAULT 0,
	niceness_mean    REAL NOT NULL DEFAULT 0,
	niceness_stdev   REAL NOT NULL DEFAULT 0,
	distribution     TEXT NOT NULL DEFAULT '[]',
	numbers          TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS chunks (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	base_id          INTEGER NOT NULL REFERENCES bases(id),
	base             INTEGER NOT NULL,
	range_start      TEXT NOT NULL,
	range_end        TEXT NOT NULL,
	range_size       TEXT NOT NULL,
	checked_detailed TEXT NOT NULL DEFAULT '0',
	checked_niceonly TEXT NOT NULL DEFAULT '0',
	minimum_cl       INTEGER NOT NULL DEFAULT 0,
	niceness_mean    REAL NOT NULL DEFAULT 0,
	niceness_stdev   REAL NOT NULL DEFAULT 0,
	distribution     TEXT NOT NULL DEFAULT '[]',
	numbers          TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_chunks_base_id ON chunks(base_id);

CREATE TABLE IF NOT EXISTS fields (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	base_id             INTEGER NOT NULL REFERENCES bases(id),
	chunk_id            INTEGER NOT NULL REFERENCES chunks(id),
	base                INTEGER NOT NULL,
	range_start         TEXT NOT NULL,
	range_end           TEXT NOT NULL,
	check_level         INTEGER NOT NULL DEFAULT 0,
	canon_submission_id INTEGER,
	last_claim_time     DATETIME,
	prioritize          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_fields_claim_selection ON fields(base_id, check_level, last_claim_time);
CREATE INDEX IF NOT EXISTS idx_fields_chunk_id ON fields(chunk_id);

CREATE TABLE IF NOT EXISTS claims (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	field_id    INTEGER NOT NULL REFERENCES fields(id),
	search_mode TEXT NOT NULL,
	claim_time  DATETIME NOT NULL,
	user_ip     TEXT
);
CREATE INDEX IF NOT EXISTS idx_claims_field_id ON claims(field_id);

CREATE TABLE IF NOT EXISTS submissions (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	claim_id            INTEGER NOT NULL REFERENCES claims(id),
	field_id            INTEGER NOT NULL REFERENCES fields(id),
	search_mode         TEXT NOT NULL,
	submit_time         DATETIME NOT NULL,
	elapsed_secs        REAL NOT NULL,
	username            TEXT NOT NULL,
	client_version      TEXT NOT NULL,
	disqualified        INTEGER NOT NULL DEFAULT 0,
	unique_distribution TEXT,
	nice_numbers        TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_submissions_field_mode_dq ON submissions(field_id, search_mode, disqualified);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBase(ctx context.Context, b *model.Base) error {
	distJSON, err := marshalBuckets(b.Distribution)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal base distribution")
	}
	numJSON, err := marshalNumbers(b.Numbers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal base numbers")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bases (base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(base) DO UPDATE SET
		   checked_detailed=excluded.checked_detailed, checked_niceonly=excluded.checked_niceonly, minimum_cl=excluded.minimum_cl,
		   niceness_mean=excluded.niceness_mean, niceness_stdev=excluded.niceness_stdev, distribution=excluded.distribution, numbers=excluded.numbers`,
		b.B, b.RangeStart, b.RangeEnd, b.RangeSize, b.CheckedDetailed, b.CheckedNiceonly,
		b.MinimumCL, b.NicenessMean, b.NicenessStdev, string(distJSON), string(numJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert base %d", b.B)
	}
	if b.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert base: last insert id")
		}
		b.ID = id
	}
	return nil
}

func (s *SQLiteStore) GetBase(ctx context.Context, id int64) (*model.Base, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM bases WHERE id = ?`, id)
	return scanBase(row)
}

func (s *SQLiteStore) ListBases(ctx context.Context) ([]model.Base, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM bases ORDER BY base ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bases")
	}
	defer rows.Close()

	var out []model.Base
	for rows.Next() {
		b, err := scanBase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list bases iterate")
}

func (s *SQLiteStore) UpdateBaseRollup(ctx context.Context, baseID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	distJSON, err := marshalBuckets(dist.ToBuckets())
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal base rollup distribution")
	}
	numJSON, err := marshalNumbers(numbers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal base rollup numbers")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bases SET niceness_mean = ?, niceness_stdev = ?, distribution = ?, numbers = ? WHERE id = ?`,
		mean, stdev, string(distJSON), string(numJSON), baseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update base rollup %d", baseID)
	}
	return checkRowsAffected(res, "base", baseID)
}

func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert chunks: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (base_id, base, range_start, range_end, range_size) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert chunks: prepare")
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.BaseID, c.B, c.RangeStart, c.RangeEnd, c.RangeSize); err != nil {
			return eris.Wrap(err, "sqlite: insert chunk")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: insert chunks: commit")
}

func (s *SQLiteStore) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base_id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

func (s *SQLiteStore) ListChunks(ctx context.Context, baseID int64) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, base_id, base, range_start, range_end, range_size, checked_detailed, checked_niceonly, minimum_cl, niceness_mean, niceness_stdev, distribution, numbers
		 FROM chunks WHERE base_id = ? ORDER BY range_start ASC`, baseID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list chunks for base %d", baseID)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list chunks iterate")
}

func (s *SQLiteStore) UpdateChunkRollup(ctx context.Context, chunkID int64, dist model.Distribution, mean, stdev float64, numbers []model.NiceNumber) error {
	distJSON, err := marshalBuckets(dist.ToBuckets())
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal chunk rollup distribution")
	}
	numJSON, err := marshalNumbers(numbers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal chunk rollup numbers")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET niceness_mean = ?, niceness_stdev = ?, distribution = ?, numbers = ? WHERE id = ?`,
		mean, stdev, string(distJSON), string(numJSON), chunkID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update chunk rollup %d", chunkID)
	}
	return checkRowsAffected(res, "chunk", chunkID)
}

func (s *SQLiteStore) InsertFields(ctx context.Context, fields []model.Field) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert fields: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fields (base_id, chunk_id, base, range_start, range_end, prioritize) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert fields: prepare")
	}
	defer stmt.Close()

	for _, f := range fields {
		if _, err := stmt.ExecContext(ctx, f.BaseID, f.ChunkID, f.B, f.RangeStart, f.RangeEnd, f.Prioritize); err != nil {
			return eris.Wrap(err, "sqlite: insert field")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: insert fields: commit")
}

func (s *SQLiteStore) ListFields(ctx context.Context, filter FieldFilter) ([]model.Field, error) {
	query := `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize FROM fields WHERE 1=1`
	var args []any
	if filter.BaseID != 0 {
		query += ` AND base_id = ?`
		args = append(args, filter.BaseID)
	}
	query += ` AND check_level <= ?`
	args = append(args, filter.MaxCheckLvl)
	query += ` ORDER BY range_start ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fields")
	}
	defer rows.Close()

	var out []model.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list fields iterate")
}

func (s *SQLiteStore) GetField(ctx context.Context, id int64) (*model.Field, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		 FROM fields WHERE id = ?`, id)
	f, err := scanField(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (s *SQLiteStore) GetClaim(ctx context.Context, id int64) (*model.Claim, error) {
	var c model.Claim
	err := s.db.QueryRowContext(ctx,
		`SELECT id, field_id, search_mode, claim_time, user_ip FROM claims WHERE id = ?`, id,
	).Scan(&c.ID, &c.FieldID, &c.SearchMode, &c.ClaimTime, &c.UserIP)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get claim %d", id)
	}
	return &c, nil
}

// GetRandomVerifiedField picks a uniformly random fully-verified field
// via ORDER BY random(), acceptable since validation is an occasional
// self-check request rather than a hot path.
func (s *SQLiteStore) GetRandomVerifiedField(ctx context.Context) (*model.Field, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		 FROM fields WHERE check_level >= 2 AND canon_submission_id IS NOT NULL
		 ORDER BY random() LIMIT 1`)
	f, err := scanField(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// ClaimField runs in a plain (deferred) transaction on the single
// writer connection, which serializes claims. There is no SKIP LOCKED equivalent in
// SQLite, but with MaxOpenConns(1) contention is sequential rather
// than concurrent, so the transaction boundary is enough.
func (s *SQLiteStore) ClaimField(ctx context.Context, policy ClaimPolicy, searchMode model.SearchMode, userIP string) (*model.Field, *model.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: claim field: begin tx")
	}
	defer tx.Rollback()

	requiredLevel := model.RequiredLevel(searchMode)
	leaseCutoff := time.Now().UTC().Add(-model.ClaimDuration)

	var selectSQL string
	var args []any
	switch policy {
	case PolicyPrioritized:
		selectSQL = `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		             FROM fields WHERE prioritize = 1 AND check_level < ? AND (last_claim_time IS NULL OR last_claim_time < ?)
		             ORDER BY range_start ASC LIMIT 1`
		args = []any{requiredLevel, leaseCutoff}
	case PolicyThin:
		selectSQL = `SELECT f.id, f.base_id, f.chunk_id, f.base, f.range_start, f.range_end, f.check_level, f.canon_submission_id, f.last_claim_time, f.prioritize
		             FROM fields f JOIN chunks c ON c.id = f.chunk_id
		             WHERE f.check_level < ? AND (f.last_claim_time IS NULL OR f.last_claim_time < ?)
		               AND CAST(c.checked_niceonly AS REAL) / CAST(c.range_size AS REAL) < ?
		             ORDER BY f.range_start ASC LIMIT 1`
		args = []any{requiredLevel, leaseCutoff, model.ThinFractionCutoff}
	default:
		selectSQL = `SELECT id, base_id, chunk_id, base, range_start, range_end, check_level, canon_submission_id, last_claim_time, prioritize
		             FROM fields WHERE check_level < ? AND (last_claim_time IS NULL OR last_claim_time < ?)
		             ORDER BY base_id ASC, range_start ASC LIMIT 1`
		args = []any{requiredLevel, leaseCutoff}
	}

	f, err := scanField(tx.QueryRowContext(ctx, selectSQL, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, ErrNoFieldAvailable
		}
		return nil, nil, eris.Wrap(err, "sqlite: claim field: select")
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE fields SET last_claim_time = ? WHERE id = ?`, now, f.ID); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: claim field: update last_claim_time")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO claims (field_id, search_mode, claim_time, user_ip) VALUES (?, ?, ?, ?)`,
		f.ID, string(searchMode), now, userIP,
	)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: claim field: insert claim")
	}
	claimID, err := res.LastInsertId()
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: claim field: last insert id")
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: claim field: commit")
	}

	f.LastClaimTime = &now
	claim := &model.Claim{ID: claimID, FieldID: f.ID, SearchMode: searchMode, ClaimTime: now, UserIP: userIP}
	return f, claim, nil
}

func (s *SQLiteStore) UpdateFieldConsensus(ctx context.Context, fieldID int64, checkLevel uint8, canonSubmissionID *int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fields SET check_level = ?, canon_submission_id = ? WHERE id = ?`,
		checkLevel, canonSubmissionID, fieldID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update field consensus %d", fieldID)
	}
	return checkRowsAffected(res, "field", fieldID)
}

func (s *SQLiteStore) ExpireStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE fields SET last_claim_time = NULL
		 WHERE last_claim_time < ?
		   AND id NOT IN (SELECT field_id FROM submissions WHERE submit_time > ?)`,
		olderThan, olderThan,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire stale claims")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *model.Submission) (int64, error) {
	distJSON, err := marshalBuckets(sub.Distribution)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal submission distribution")
	}
	numJSON, err := marshalNumbers(sub.Numbers)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal submission numbers")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ClaimID, sub.FieldID, string(sub.SearchMode), sub.SubmitTime, sub.ElapsedSecs, sub.Username, sub.ClientVersion, sub.Disqualified, string(distJSON), string(numJSON),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert submission")
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "sqlite: insert submission: last insert id")
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers
		 FROM submissions WHERE id = ?`, id)
	return scanSubmission(row)
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.Submission, error) {
	query := `SELECT id, claim_id, field_id, search_mode, submit_time, elapsed_secs, username, client_version, disqualified, unique_distribution, nice_numbers
	          FROM submissions WHERE field_id = ?`
	args := []any{filter.FieldID}
	if filter.SearchMode != "" {
		query += ` AND search_mode = ?`
		args = append(args, string(filter.SearchMode))
	}
	if filter.ExcludeDisqualified {
		query += ` AND disqualified = 0`
	}
	query += ` ORDER BY submit_time ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list submissions")
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list submissions iterate")
}

func (s *SQLiteStore) DisqualifySubmission(ctx context.Context, id int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET disqualified = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: disqualify submission %d (%s)", id, reason)
	}
	return checkRowsAffected(res, "submission", id)
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

func scanBase(row scannable) (*model.Base, error) {
	var b model.Base
	var distJSON, numJSON string
	err := row.Scan(&b.ID, &b.B, &b.RangeStart, &b.RangeEnd, &b.RangeSize, &b.CheckedDetailed, &b.CheckedNiceonly,
		&b.MinimumCL, &b.NicenessMean, &b.NicenessStdev, &distJSON, &numJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan base")
	}
	if err := json.Unmarshal([]byte(distJSON), &b.Distribution); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal base distribution")
	}
	if err := json.Unmarshal([]byte(numJSON), &b.Numbers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal base numbers")
	}
	return &b, nil
}

func scanChunk(row scannable) (*model.Chunk, error) {
	var c model.Chunk
	var distJSON, numJSON string
	err := row.Scan(&c.ID, &c.BaseID, &c.B, &c.RangeStart, &c.RangeEnd, &c.RangeSize, &c.CheckedDetailed, &c.CheckedNiceonly,
		&c.MinimumCL, &c.NicenessMean, &c.NicenessStdev, &distJSON, &numJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan chunk")
	}
	if err := json.Unmarshal([]byte(distJSON), &c.Distribution); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal chunk distribution")
	}
	if err := json.Unmarshal([]byte(numJSON), &c.Numbers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal chunk numbers")
	}
	return &c, nil
}

func scanField(row scannable) (*model.Field, error) {
	var f model.Field
	err := row.Scan(&f.ID, &f.BaseID, &f.ChunkID, &f.B, &f.RangeStart, &f.RangeEnd, &f.CheckLevel, &f.CanonSubmissionID, &f.LastClaimTime, &f.Prioritize)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanSubmission(row scannable) (*model.Submission, error) {
	var sub model.Submission
	var distJSON sql.NullString
	var numJSON string
	err := row.Scan(&sub.ID, &sub.ClaimID, &sub.FieldID, &sub.SearchMode, &sub.SubmitTime, &sub.ElapsedSecs, &sub.Username, &sub.ClientVersion, &sub.Disqualified, &distJSON, &numJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan submission")
	}
	if distJSON.Valid {
		if err := json.Unmarshal([]byte(distJSON.String), &sub.Distribution); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal submission distribution")
		}
	}
	if err := json.Unmarshal([]byte(numJSON), &sub.Numbers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal submission numbers")
	}
	return &sub, nil
}
