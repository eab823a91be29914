package server

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/consensus"
	"github.com/wasabipesto/nice/internal/executor"
	"github.com/wasabipesto/nice/internal/kernel"
	"github.com/wasabipesto/nice/internal/model"
	"github.com/wasabipesto/nice/internal/store"
)

// handleClaim serves POST /claim/{mode}. niceonly requests are served
// from the in-memory pre-claim queue when possible; everything else
// goes straight to a transactional store claim.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	mode := chi.URLParam(r, "mode")
	var searchMode model.SearchMode
	switch mode {
	case string(model.ModeDetailed):
		searchMode = model.ModeDetailed
	case string(model.ModeNiceonly):
		searchMode = model.ModeNiceonly
	default:
		notFoundError(w, notFoundMessage)
		return
	}

	ctx := r.Context()
	userIP := clientIP(r)

	var field model.Field
	var claim model.Claim
	var policy store.ClaimPolicy = "queue"

	if searchMode == model.ModeNiceonly {
		if f, c, ok := s.queue.Claim(ctx); ok {
			field, claim = f, c
		} else {
			zap.L().Warn("niceonly queue exhausted, falling back to direct claim")
			f, c, err := s.store.ClaimField(ctx, store.PolicyNormal, searchMode, userIP)
			if !respondClaimResult(w, err) {
				return
			}
			field, claim, policy = *f, *c, store.PolicyNormal
		}
	} else {
		policy = pickDetailedPolicy()
		f, c, err := s.store.ClaimField(ctx, policy, searchMode, userIP)
		if !respondClaimResult(w, err) {
			return
		}
		field, claim = *f, *c
	}

	zap.L().Info("new claim",
		zap.String("search_mode", string(searchMode)),
		zap.String("policy", string(policy)),
		zap.Int64("field_id", field.ID),
		zap.Int64("claim_id", claim.ID),
	)

	writeJSON(w, model.ClaimResponse{
		ClaimID:    claim.ID,
		FieldID:    field.ID,
		Base:       field.B,
		RangeStart: field.RangeStart,
		RangeEnd:   field.RangeEnd,
		RangeSize:  field.RangeSize(),
	})
}

// respondClaimResult handles the common claim-error cases (no field
// available -> 204, any other error -> 500). Returns false if the
// caller already wrote a response and should stop.
func respondClaimResult(w http.ResponseWriter, err error) bool {
	if err != nil {
		if err == store.ErrNoFieldAvailable {
			w.WriteHeader(http.StatusNoContent)
			return false
		}
		internalError(w, "database error while claiming a field: "+err.Error())
		return false
	}
	return true
}

// pickDetailedPolicy weights detailed-mode claim strategy the way the
// original coordination service did: mostly thin chunks to avoid long
// unchecked tails, otherwise the plain next-unclaimed field.
func pickDetailedPolicy() store.ClaimPolicy {
	if rand.IntN(100) < 60 {
		return store.PolicyThin
	}
	return store.PolicyNormal
}

// handleClaimValidate serves GET /claim/validate: a random previously
// verified field plus its canonical submission, for client self-check.
func (s *Server) handleClaimValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	field, err := s.store.GetRandomVerifiedField(ctx)
	if err != nil {
		internalError(w, "database error while finding validation field: "+err.Error())
		return
	}
	if field == nil || field.CanonSubmissionID == nil {
		notFoundError(w, "no verified field is available for validation yet")
		return
	}

	canon, err := s.store.GetSubmission(ctx, *field.CanonSubmissionID)
	if err != nil {
		internalError(w, "database error while loading canonical submission: "+err.Error())
		return
	}
	if canon == nil {
		internalError(w, "canon submission referenced by field is missing")
		return
	}

	writeJSON(w, model.ValidationData{
		Base:         field.B,
		RangeStart:   field.RangeStart,
		RangeEnd:     field.RangeEnd,
		SearchMode:   canon.SearchMode,
		Distribution: canon.Distribution,
		Numbers:      canon.Numbers,
	})
}

// handleSubmit serves POST /submit: resolves the claim, validates the
// payload structurally, checks it against the field's existing canon
// (if any), and persists it.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequestError(w, "invalid request body: "+err.Error())
		return
	}

	claim, err := s.store.GetClaim(ctx, req.ClaimID)
	if err != nil {
		internalError(w, "database error while loading claim: "+err.Error())
		return
	}
	if claim == nil {
		badRequestError(w, "unknown claim_id")
		return
	}

	field, err := s.store.GetField(ctx, claim.FieldID)
	if err != nil {
		internalError(w, "database error while loading field: "+err.Error())
		return
	}
	if field == nil {
		internalError(w, "claim references a field that no longer exists")
		return
	}

	if msg, ok := validateSubmission(s.scanner, *field, claim.SearchMode, req); !ok {
		unprocessableEntityError(w, msg)
		return
	}

	sub := &model.Submission{
		ClaimID:       claim.ID,
		FieldID:       field.ID,
		SearchMode:    claim.SearchMode,
		SubmitTime:    time.Now().UTC(),
		Username:      req.Username,
		ClientVersion: req.ClientVersion,
		Distribution:  req.Distribution,
		Numbers:       req.Numbers,
	}

	id, err := s.store.InsertSubmission(ctx, sub)
	if err != nil {
		internalError(w, "database error while inserting submission: "+err.Error())
		return
	}
	sub.ID = id

	disqualified, err := s.reconcileConsensus(ctx, *field, *sub)
	if err != nil {
		internalError(w, "database error while reconciling consensus: "+err.Error())
		return
	}

	zap.L().Info("new submission",
		zap.String("search_mode", string(claim.SearchMode)),
		zap.Int64("field_id", field.ID),
		zap.Int64("claim_id", claim.ID),
		zap.String("username", req.Username),
		zap.Bool("disqualified", disqualified),
	)

	if disqualified {
		conflictError(w, "submission does not match the field's established consensus result")
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

// reconcileConsensus re-evaluates consensus for a field after a new
// submission lands: if the new submission disagrees with the field's
// established majority group it is marked disqualified and the field
// is left untouched; otherwise the field's canon pointer and
// check_level are (re)written to match the consensus outcome.
func (s *Server) reconcileConsensus(ctx context.Context, field model.Field, newSub model.Submission) (bool, error) {
	live, err := s.store.ListSubmissions(ctx, store.SubmissionFilter{FieldID: field.ID, ExcludeDisqualified: true})
	if err != nil {
		return false, err
	}

	result := consensus.Evaluate(field.CheckLevel, live)
	if result.Canon == nil {
		return false, nil
	}

	if !consensus.SameCandidate(newSub, *result.Canon) {
		if err := s.store.DisqualifySubmission(ctx, newSub.ID, "does not match field's canonical result"); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := s.store.UpdateFieldConsensus(ctx, field.ID, result.CheckLevel, &result.Canon.ID); err != nil {
		return false, err
	}
	s.publishNotableEvent(ctx, field.B, field.ID, result.Canon.Numbers)
	return false, nil
}

// validateSubmission enforces structural constraints on a submission
// payload: for detailed mode, the distribution must be a complete
// histogram summing to the field's range size and must agree with the
// submitted numbers above the notable cutoff; every submitted number
// must lie within the field and exceed the cutoff; niceonly numbers
// must additionally claim num_uniques == base. Detailed submissions
// have every number's num_uniques independently recomputed against the
// kernel since that path isn't latency-sensitive; niceonly trusts the
// client's self-report to keep the hot path cheap, the same tradeoff
// the original coordination service made.
func validateSubmission(scanner kernel.DigitScanner, field model.Field, mode model.SearchMode, req model.SubmissionRequest) (string, bool) {
	cutoff := model.NotableThreshold(field.B)

	for _, n := range req.Numbers {
		if n.Number.LessThan(field.RangeStart) || !n.Number.LessThan(field.RangeEnd) {
			return "a submitted number falls outside the claimed field's range", false
		}
		if n.NumUniques <= cutoff {
			return "a submitted number does not meet the notable-number threshold", false
		}
		if mode == model.ModeNiceonly && n.NumUniques != field.B {
			return "niceonly submissions must report num_uniques == base for every number", false
		}
	}

	if mode == model.ModeDetailed {
		if req.Distribution == nil {
			return "unique_distribution must be present for detailed searches", false
		}

		rangeSize := field.RangeSize()
		var total int64
		for _, d := range req.Distribution {
			total += int64(d.Count)
		}
		if !rangeSize.Equal(decimal.NewFromInt(total)) {
			return "total distribution count does not match the claimed field's range size", false
		}

		countsByUniques := make(map[uint32]int)
		for _, n := range req.Numbers {
			countsByUniques[n.NumUniques]++
		}
		var totalAboveCutoff int64
		for _, d := range req.Distribution {
			if d.NumUniques <= cutoff {
				continue
			}
			totalAboveCutoff += int64(d.Count)
			if uint64(countsByUniques[d.NumUniques]) != d.Count {
				return "count of submitted numbers does not match the distribution", false
			}
		}
		if int64(len(req.Numbers)) != totalAboveCutoff {
			return "count of submitted numbers does not match the distribution total above the notable cutoff", false
		}

		for _, n := range req.Numbers {
			u, err := executor.Uint128FromDecimal(n.Number)
			if err != nil {
				return "a submitted number is out of range: " + err.Error(), false
			}
			if got := scanner.NumUniques(u, field.B); got != n.NumUniques {
				return "a submitted number's num_uniques does not match the server's recomputation", false
			}
		}
	}

	return "", true
}
