package server

import (
	"net/http"
	"strconv"
)

// handleListBases serves GET /bases, returning every base with its
// rolled-up aggregate stats.
func (s *Server) handleListBases(w http.ResponseWriter, r *http.Request) {
	bases, err := s.store.ListBases(r.Context())
	if err != nil {
		internalError(w, "database error while listing bases: "+err.Error())
		return
	}
	writeJSON(w, bases)
}

// handleListChunks serves GET /chunks?base_id=N, returning every chunk
// belonging to that base with its rolled-up aggregate stats.
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	baseID, err := parseInt64Query(r, "base_id")
	if err != nil {
		badRequestError(w, "base_id must be an integer")
		return
	}

	chunks, err := s.store.ListChunks(r.Context(), baseID)
	if err != nil {
		internalError(w, "database error while listing chunks: "+err.Error())
		return
	}
	writeJSON(w, chunks)
}

// handleGetSubmission serves GET /submission?field_id=N[&canon=true],
// resolving a field's canonical submission for client validation mode.
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	fieldID, err := parseInt64Query(r, "field_id")
	if err != nil {
		badRequestError(w, "field_id must be an integer")
		return
	}

	ctx := r.Context()
	field, err := s.store.GetField(ctx, fieldID)
	if err != nil {
		internalError(w, "database error while loading field: "+err.Error())
		return
	}
	if field == nil || field.CanonSubmissionID == nil {
		notFoundError(w, "field has no canonical submission yet")
		return
	}

	sub, err := s.store.GetSubmission(ctx, *field.CanonSubmissionID)
	if err != nil {
		internalError(w, "database error while loading submission: "+err.Error())
		return
	}
	if sub == nil {
		notFoundError(w, "canonical submission not found")
		return
	}
	writeJSON(w, sub)
}

func parseInt64Query(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
}
