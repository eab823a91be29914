// Package model defines the persistent and wire entities of the nice
// number search coordination service: Base, Chunk, Field, Claim, and
// Submission, plus the shared value types they compose.
package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// SearchMode selects which digit-scan kernel a client runs over a Field.
type SearchMode string

const (
	ModeDetailed SearchMode = "detailed"
	ModeNiceonly SearchMode = "niceonly"
)

// RequiredLevel returns the check_level a Field must reach to be
// considered verified for the given mode.
func RequiredLevel(mode SearchMode) uint8 {
	if mode == ModeDetailed {
		return 2
	}
	return 1
}

// SaveTopN is the number of notable numbers retained per Base after
// downsampling, matching SAVE_TOP_N_NUMBERS in the reference model.
const SaveTopN = 10_000

// ClaimDuration is the default field lease timeout.
const ClaimDuration = time.Hour

// ThinFractionCutoff is the checked-fraction threshold below which a
// Chunk is eligible for the "thin" field selection policy.
const ThinFractionCutoff = 0.2

// NotableThreshold returns the minimum num_uniques (exclusive) a number
// must exceed to be considered notable: strictly greater than
// floor(0.9*b).
func NotableThreshold(base uint32) uint32 {
	return uint32(math.Floor(0.9 * float64(base)))
}

// Niceness returns numUniques/base, in (0, 1].
func Niceness(numUniques, base uint32) float64 {
	if base == 0 {
		return 0
	}
	return float64(numUniques) / float64(base)
}

// NiceNumber is a candidate returned by a search, paired with how many
// unique digits its square/cube concatenation contained.
type NiceNumber struct {
	Number     decimal.Decimal `json:"number"`
	NumUniques uint32          `json:"num_uniques"`
}

// Niceness returns this number's niceness for the given base.
func (n NiceNumber) Niceness(base uint32) float64 {
	return Niceness(n.NumUniques, base)
}

// UniqueCount is one bucket of a detailed-mode distribution histogram.
type UniqueCount struct {
	NumUniques uint32 `json:"num_uniques"`
	Count      uint64 `json:"count"`
}

// Distribution is a sparse histogram of num_uniques -> count, keyed by
// num_uniques for O(1) accumulation during aggregation.
type Distribution map[uint32]uint64

// ToBuckets renders a Distribution as a sorted slice for serialization.
func (d Distribution) ToBuckets() []UniqueCount {
	out := make([]UniqueCount, 0, len(d))
	for k, v := range d {
		out = append(out, UniqueCount{NumUniques: k, Count: v})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].NumUniques > out[j].NumUniques; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Total sums the counts across all buckets.
func (d Distribution) Total() uint64 {
	var sum uint64
	for _, v := range d {
		sum += v
	}
	return sum
}

// Base is one complete search space, spanning every candidate whose
// square and cube together could have exactly B digits.
type Base struct {
	ID              int64           `json:"id"`
	B               uint32          `json:"base"`
	RangeStart      decimal.Decimal `json:"range_start"`
	RangeEnd        decimal.Decimal `json:"range_end"`
	RangeSize       decimal.Decimal `json:"range_size"`
	CheckedDetailed decimal.Decimal `json:"checked_detailed"`
	CheckedNiceonly decimal.Decimal `json:"checked_niceonly"`
	MinimumCL       uint8           `json:"minimum_cl"`
	NicenessMean    float64         `json:"niceness_mean"`
	NicenessStdev   float64         `json:"niceness_stdev"`
	Distribution    []UniqueCount   `json:"distribution"`
	Numbers         []NiceNumber    `json:"numbers"`
}

// Chunk is a contiguous administrative sub-range of a Base.
type Chunk struct {
	ID              int64           `json:"id"`
	BaseID          int64           `json:"base_id"`
	B               uint32          `json:"base"`
	RangeStart      decimal.Decimal `json:"range_start"`
	RangeEnd        decimal.Decimal `json:"range_end"`
	RangeSize       decimal.Decimal `json:"range_size"`
	CheckedDetailed decimal.Decimal `json:"checked_detailed"`
	CheckedNiceonly decimal.Decimal `json:"checked_niceonly"`
	MinimumCL       uint8           `json:"minimum_cl"`
	NicenessMean    float64         `json:"niceness_mean"`
	NicenessStdev   float64         `json:"niceness_stdev"`
	Distribution    []UniqueCount   `json:"distribution"`
	Numbers         []NiceNumber    `json:"numbers"`
}

// Field is the unit of work handed to exactly one client at a time.
type Field struct {
	ID                int64           `json:"id"`
	BaseID            int64           `json:"base_id"`
	ChunkID           int64           `json:"chunk_id"`
	B                 uint32          `json:"base"`
	RangeStart        decimal.Decimal `json:"range_start"`
	RangeEnd          decimal.Decimal `json:"range_end"`
	CheckLevel        uint8           `json:"check_level"`
	CanonSubmissionID *int64          `json:"canon_submission_id,omitempty"`
	LastClaimTime     *time.Time      `json:"last_claim_time,omitempty"`
	Prioritize        bool            `json:"prioritize"`
}

// RangeSize returns range_end - range_start.
func (f Field) RangeSize() decimal.Decimal {
	return f.RangeEnd.Sub(f.RangeStart)
}

// Claim is an append-only lease record binding a Field to a client.
type Claim struct {
	ID         int64      `json:"id"`
	FieldID    int64      `json:"field_id"`
	SearchMode SearchMode `json:"search_mode"`
	ClaimTime  time.Time  `json:"claim_time"`
	UserIP     string     `json:"user_ip,omitempty"`
}

// Submission is a client's returned result for a claimed Field.
type Submission struct {
	ID            int64         `json:"id"`
	ClaimID       int64         `json:"claim_id"`
	FieldID       int64         `json:"field_id"`
	SearchMode    SearchMode    `json:"search_mode"`
	SubmitTime    time.Time     `json:"submit_time"`
	ElapsedSecs   float64       `json:"elapsed_secs"`
	Username      string        `json:"username"`
	ClientVersion string        `json:"client_version"`
	Disqualified  bool          `json:"disqualified"`
	Distribution  []UniqueCount `json:"unique_distribution,omitempty"`
	Numbers       []NiceNumber  `json:"nice_numbers"`
}

// ClaimResponse is the payload returned by POST /claim/{mode}: enough
// for a client to reconstruct a filter.Range and know where to submit.
type ClaimResponse struct {
	ClaimID    int64           `json:"claim_id"`
	FieldID    int64           `json:"field_id"`
	Base       uint32          `json:"base"`
	RangeStart decimal.Decimal `json:"range_start"`
	RangeEnd   decimal.Decimal `json:"range_end"`
	RangeSize  decimal.Decimal `json:"range_size"`
}

// SubmissionRequest is the payload POST /submit accepts.
type SubmissionRequest struct {
	ClaimID       int64         `json:"claim_id"`
	Username      string        `json:"username"`
	ClientVersion string        `json:"client_version"`
	Distribution  []UniqueCount `json:"unique_distribution,omitempty"`
	Numbers       []NiceNumber  `json:"nice_numbers"`
}

// ValidationData is returned by GET /claim/validate: a previously
// verified field's range plus its canonical submission's results, so
// a client can re-run its own kernel locally and compare before
// trusting it against live work.
type ValidationData struct {
	Base         uint32          `json:"base"`
	RangeStart   decimal.Decimal `json:"range_start"`
	RangeEnd     decimal.Decimal `json:"range_end"`
	SearchMode   SearchMode      `json:"search_mode"`
	Distribution []UniqueCount   `json:"unique_distribution,omitempty"`
	Numbers      []NiceNumber    `json:"nice_numbers"`
}

// Candidate is a key used to compare two submissions for consensus: the
// sorted distribution plus the sorted set of returned numbers. Two
// submissions with equal Candidate values are considered agreeing.
type Candidate struct {
	DistributionKey string
	NumbersKey      string
}
