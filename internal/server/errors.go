package server

import (
	"encoding/json"
	"net/http"
)

// apiErrorKind mirrors the closed set of error categories the client
// pipeline's resilience layer needs to distinguish: 4xx kinds are
// permanent (never retried), 5xx is transient.
type apiErrorKind string

const (
	errNotFound      apiErrorKind = "not_found"
	errBadRequest    apiErrorKind = "bad_request"
	errConflict      apiErrorKind = "conflict"
	errUnprocessable apiErrorKind = "unprocessable_entity"
	errInternal      apiErrorKind = "internal"
)

type apiErrorBody struct {
	Error   apiErrorKind `json:"error"`
	Message string       `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, kind apiErrorKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{Error: kind, Message: message})
}

func notFoundError(w http.ResponseWriter, message string) {
	writeAPIError(w, http.StatusNotFound, errNotFound, message)
}

func badRequestError(w http.ResponseWriter, message string) {
	writeAPIError(w, http.StatusBadRequest, errBadRequest, message)
}

func unprocessableEntityError(w http.ResponseWriter, message string) {
	writeAPIError(w, http.StatusUnprocessableEntity, errUnprocessable, message)
}

func conflictError(w http.ResponseWriter, message string) {
	writeAPIError(w, http.StatusConflict, errConflict, message)
}

func internalError(w http.ResponseWriter, message string) {
	writeAPIError(w, http.StatusInternalServerError, errInternal, message)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
