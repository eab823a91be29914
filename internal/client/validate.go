package client

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/executor"
	"github.com/wasabipesto/nice/internal/filter"
	"github.com/wasabipesto/nice/internal/model"
)

// selfCheck runs once at startup when validate mode is on: it pulls a
// previously verified field from the coordination service, re-runs the
// local kernel over its full range, and confirms the result matches
// before any live work is claimed. A mismatch means the local kernel or
// GPU device disagrees with the rest of the fleet, which is worth
// catching before burning hours on work nobody will trust.
func selfCheck(ctx context.Context, api *apiClient, exec *executor.Executor) error {
	data, err := api.getValidationField(ctx)
	if err != nil {
		return eris.Wrap(err, "client: fetch validation field")
	}
	if data == nil {
		zap.L().Warn("validation requested but no verified field is available yet, skipping self-check")
		return nil
	}

	start, err := executor.Uint128FromDecimal(data.RangeStart)
	if err != nil {
		return eris.Wrap(err, "client: validation field range_start")
	}
	end, err := executor.Uint128FromDecimal(data.RangeEnd)
	if err != nil {
		return eris.Wrap(err, "client: validation field range_end")
	}

	result, err := exec.Run(ctx, filter.Range{Start: start, End: end}, data.Base, data.SearchMode)
	if err != nil {
		return eris.Wrap(err, "client: run validation range")
	}

	if !sameNumbers(result.Numbers, data.Numbers) {
		return eris.Errorf("client: self-check mismatch on base %d range [%s, %s): local kernel disagrees with the known-good result", data.Base, data.RangeStart, data.RangeEnd)
	}

	zap.L().Info("self-check passed", zap.Uint32("base", data.Base), zap.String("search_mode", string(data.SearchMode)))
	return nil
}

// checkSameField implements the literal per-submission validation mode:
// before submitting, ask the coordination service whether this field
// already has a canonical result, and if so confirm this client's
// result agrees before sending it. Disagreement is logged and the
// submission is aborted rather than sent, since a client whose kernel
// disagrees with established consensus would only get disqualified
// anyway and risks polluting the field with a second bad submission.
func checkSameField(ctx context.Context, api *apiClient, fieldID int64, mine []model.NiceNumber) error {
	existing, err := api.getSubmission(ctx, fieldID)
	if err != nil {
		return eris.Wrap(err, "client: fetch existing submission for validation")
	}
	if existing == nil {
		return nil
	}
	if !sameNumbers(mine, existing.Numbers) {
		return eris.Errorf("client: validation mismatch on field %d: found %d numbers locally, coordination service canon has %d", fieldID, len(mine), len(existing.Numbers))
	}
	return nil
}

// sameNumbers compares two number sets for exact agreement, order and
// duplicates included: two independent kernel runs over the same range
// must produce byte-identical output or something is wrong.
func sameNumbers(a, b []model.NiceNumber) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Number.Equal(b[i].Number) || a[i].NumUniques != b[i].NumUniques {
			return false
		}
	}
	return true
}
