// Package seed populates a Base's full Chunk/Field hierarchy: given a
// base, it computes the base's search range via rangecalc, breaks that
// range into chunks of a configurable size, and breaks each chunk into
// fields of a configurable size, then bulk-inserts the result through
// the store. Grounded on generate_fields.rs/generate_chunks.rs, adapted
// from grouping fields into a fixed chunk count to breaking the range
// directly at a configurable chunk size, matching the seed config
// surface (chunk_size and field_size are both explicit settings here).
package seed

import (
	"context"
	"math/big"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/rangecalc"
	"github.com/wasabipesto/nice/internal/store"
)

// span is a half-open [Start, End) sub-range of big.Int candidates.
type span struct {
	Start, End *big.Int
}

// breakRangeIntoFields walks [min, max) in steps of size, the last step
// narrower than size if it doesn't divide evenly. Matches
// break_range_into_fields exactly, generalized to any span width so the
// same helper produces both chunks (at chunkSize) and fields (at
// fieldSize).
func breakRangeIntoFields(min, max, size *big.Int) []span {
	var spans []span
	start := new(big.Int).Set(min)
	end := new(big.Int).Set(min)
	for end.Cmp(max) < 0 {
		end = new(big.Int).Add(start, size)
		if end.Cmp(max) > 0 {
			end = new(big.Int).Set(max)
		}
		spans = append(spans, span{Start: start, End: end})
		start = end
	}
	return spans
}

func decimalFromBig(n *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(n, 0)
}

// Result reports what Base seeded.
type Result struct {
	NumChunks int
	NumFields int
}

// Base seeds one base's Base/Chunk/Field rows into s. chunkSize and
// fieldSize must both be positive. Not idempotent: UpsertBase overwrites
// the Base row, but InsertChunks/InsertFields are append-only, so
// re-seeding a populated base duplicates its chunks and fields.
func Base(ctx context.Context, s store.Store, base uint32, chunkSize, fieldSize *big.Int) (Result, error) {
	if chunkSize.Sign() <= 0 || fieldSize.Sign() <= 0 {
		return Result{}, eris.New("seed: chunk_size and field_size must be positive")
	}

	br, ok := rangecalc.ForBase(base)
	if !ok {
		return Result{}, eris.Errorf("seed: base %d has no valid search range", base)
	}
	rangeSize := new(big.Int).Sub(br.End, br.Start)

	b := &model.Base{
		B:          base,
		RangeStart: decimalFromBig(br.Start),
		RangeEnd:   decimalFromBig(br.End),
		RangeSize:  decimalFromBig(rangeSize),
		MinimumCL:  model.RequiredLevel(model.ModeNiceonly),
	}
	if err := s.UpsertBase(ctx, b); err != nil {
		return Result{}, eris.Wrap(err, "seed: upsert base")
	}

	chunkSpans := breakRangeIntoFields(br.Start, br.End, chunkSize)
	chunks := make([]model.Chunk, len(chunkSpans))
	for i, cs := range chunkSpans {
		chunks[i] = model.Chunk{
			BaseID:     b.ID,
			B:          base,
			RangeStart: decimalFromBig(cs.Start),
			RangeEnd:   decimalFromBig(cs.End),
			RangeSize:  decimalFromBig(new(big.Int).Sub(cs.End, cs.Start)),
			MinimumCL:  model.RequiredLevel(model.ModeNiceonly),
		}
	}
	if err := s.InsertChunks(ctx, chunks); err != nil {
		return Result{}, eris.Wrap(err, "seed: insert chunks")
	}

	numFields := 0
	for i := range chunks {
		chunk := chunks[i]
		fieldSpans := breakRangeIntoFields(chunk.RangeStart.BigInt(), chunk.RangeEnd.BigInt(), fieldSize)
		fields := make([]model.Field, len(fieldSpans))
		for j, fs := range fieldSpans {
			fields[j] = model.Field{
				BaseID:     b.ID,
				ChunkID:    chunk.ID,
				B:          base,
				RangeStart: decimalFromBig(fs.Start),
				RangeEnd:   decimalFromBig(fs.End),
			}
		}
		if err := s.InsertFields(ctx, fields); err != nil {
			return Result{}, eris.Wrap(err, "seed: insert fields")
		}
		numFields += len(fields)

		zap.L().Debug("seeded chunk",
			zap.Uint32("base", base),
			zap.Int64("chunk_id", chunk.ID),
			zap.Int("num_fields", len(fields)),
		)
	}

	zap.L().Info("seeded base",
		zap.Uint32("base", base),
		zap.Int("num_chunks", len(chunks)),
		zap.Int("num_fields", numFields),
		zap.String("range_start", b.RangeStart.String()),
		zap.String("range_end", b.RangeEnd.String()),
	)

	return Result{NumChunks: len(chunks), NumFields: numFields}, nil
}

// Bases seeds every base in [minBase, maxBase], skipping bases with no
// valid search range (base % 5 == 1) without error.
func Bases(ctx context.Context, s store.Store, minBase, maxBase uint32, chunkSize, fieldSize *big.Int) (Result, error) {
	var total Result
	for base := minBase; base <= maxBase; base++ {
		if _, ok := rangecalc.ForBase(base); !ok {
			continue
		}
		r, err := Base(ctx, s, base, chunkSize, fieldSize)
		if err != nil {
			return total, eris.Wrapf(err, "seed: base %d", base)
		}
		total.NumChunks += r.NumChunks
		total.NumFields += r.NumFields
	}
	return total, nil
}
