package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes data straight onto the wire. Responses carry no
// envelope; clients decode the payload they asked for, and errors are
// a bare {"error": message} object.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteSuccess writes data with a 200.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes data with a 201, for new mothers, bans, tokens
// and uploaded documents.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent answers deletions and revocations that return nothing.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest rejects malformed input with a 400.
func WriteBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// WriteValidationError rejects well-formed input that fails a field
// rule. Same 400 as WriteBadRequest; the split keeps the call sites
// readable.
func WriteValidationError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// WriteUnauthorized answers requests with a missing, unknown or
// revoked token.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

// WriteForbidden answers authenticated requests the permission rules
// refuse.
func WriteForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

// WriteNotFoundError answers lookups of records that do not exist or
// are hidden from the caller.
func WriteNotFoundError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// WriteConflict answers transitions requested from the wrong stage,
// such as banning an already banned mother.
func WriteConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, message)
}

// WriteInternalError answers unexpected failures with a 500.
func WriteInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err.Error())
}
