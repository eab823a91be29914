package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasabipesto/nice/internal/config"
	"github.com/wasabipesto/nice/internal/model"
)

func newTestServer(s *fakeStore) *Server {
	return New(s, NewNiceonlyQueue(s), nil, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000})
}

func seedField(s *fakeStore, id int64, base uint32, start, end int64) model.Field {
	f := model.Field{
		ID:         id,
		BaseID:     1,
		ChunkID:    1,
		B:          base,
		RangeStart: decimal.NewFromInt(start),
		RangeEnd:   decimal.NewFromInt(end),
		CheckLevel: 0,
	}
	s.fields[id] = f
	return f
}

func TestHandleClaimNiceonlyServesFromQueue(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 1000, 2000)
	s.queueClaim(1)

	srv := newTestServer(s)
	req := httptest.NewRequest(http.MethodPost, "/claim/niceonly", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint32(10), resp.Base)
	assert.True(t, resp.RangeStart.Equal(decimal.NewFromInt(1000)))
}

func TestHandleClaimReturnsNoContentWhenNoFieldAvailable(t *testing.T) {
	s := newFakeStore()
	srv := newTestServer(s)

	req := httptest.NewRequest(http.MethodPost, "/claim/detailed", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleClaimUnknownModeIsNotFound(t *testing.T) {
	s := newFakeStore()
	srv := newTestServer(s)

	req := httptest.NewRequest(http.MethodPost, "/claim/bogus", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func claimDetailed(t *testing.T, srv *Server, s *fakeStore, fieldID int64) model.ClaimResponse {
	t.Helper()
	s.queueClaim(fieldID)
	req := httptest.NewRequest(http.MethodPost, "/claim/detailed", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp model.ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleSubmitDetailedAcceptsMatchingDistribution(t *testing.T) {
	s := newFakeStore()
	// 69 is the classic base-10 nice number: 69^2=4761, 69^3=328509,
	// whose digits together cover 0-9 exactly once.
	seedField(s, 1, 10, 0, 100)
	srv := newTestServer(s)

	claim := claimDetailed(t, srv, s, 1)

	body := model.SubmissionRequest{
		ClaimID:       claim.ClaimID,
		Username:      "tester",
		ClientVersion: "1.0.0",
		Distribution: []model.UniqueCount{
			{NumUniques: 1, Count: 99},
			{NumUniques: 10, Count: 1},
		},
		Numbers: []model.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	sub, err := s.GetSubmission(t.Context(), 1)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.False(t, sub.Disqualified)

	fd, err := s.GetField(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), fd.CheckLevel)
	require.NotNil(t, fd.CanonSubmissionID)
	assert.Equal(t, int64(1), *fd.CanonSubmissionID)
}

func TestHandleSubmitRejectsDistributionTotalMismatch(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 0, 10)
	srv := newTestServer(s)

	claim := claimDetailed(t, srv, s, 1)

	body := model.SubmissionRequest{
		ClaimID:  claim.ClaimID,
		Username: "tester",
		Distribution: []model.UniqueCount{
			{NumUniques: 5, Count: 3},
		},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleSubmitUnknownClaimIsBadRequest(t *testing.T) {
	s := newFakeStore()
	srv := newTestServer(s)

	body := model.SubmissionRequest{ClaimID: 999}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSubmitDisqualifiedByConsensusIsConflict(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 0, 100)

	earlier := time.Now().Add(-time.Hour)
	s.submissions[1] = model.Submission{
		ID: 1, FieldID: 1, SearchMode: model.ModeNiceonly, SubmitTime: earlier,
		Numbers: []model.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	s.submissions[2] = model.Submission{
		ID: 2, FieldID: 1, SearchMode: model.ModeNiceonly, SubmitTime: earlier,
		Numbers: []model.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	s.nextSubID = 2
	canonID := int64(1)
	fd := s.fields[1]
	fd.CheckLevel = 2
	fd.CanonSubmissionID = &canonID
	s.fields[1] = fd

	srv := newTestServer(s)

	s.queueClaim(1)
	req := httptest.NewRequest(http.MethodPost, "/claim/niceonly", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var claim model.ClaimResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claim))

	body := model.SubmissionRequest{
		ClaimID:  claim.ClaimID,
		Username: "tester",
		Numbers:  []model.NiceNumber{{Number: decimal.NewFromInt(70), NumUniques: 10}},
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/submit", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	sub, err := s.GetSubmission(t.Context(), 3)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.Disqualified)
}

func TestHandleClaimValidateReturnsVerifiedField(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 0, 100)
	canonID := int64(1)
	s.submissions[1] = model.Submission{
		ID:         1,
		FieldID:    1,
		SearchMode: model.ModeDetailed,
		SubmitTime: time.Now(),
		Numbers:    []model.NiceNumber{{Number: decimal.NewFromInt(69), NumUniques: 10}},
	}
	fd := s.fields[1]
	fd.CheckLevel = 2
	fd.CanonSubmissionID = &canonID
	s.fields[1] = fd

	srv := newTestServer(s)
	req := httptest.NewRequest(http.MethodGet, "/claim/validate", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var data model.ValidationData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, uint32(10), data.Base)
}

func TestHandleClaimValidateNotFoundWhenNothingVerified(t *testing.T) {
	s := newFakeStore()
	seedField(s, 1, 10, 0, 10)
	srv := newTestServer(s)

	req := httptest.NewRequest(http.MethodGet, "/claim/validate", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
