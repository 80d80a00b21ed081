package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Codes used outside any one service's error mapping.
const (
	CodeInvalidJSON  = "invalid_json"
	CodeUnauthorized = "unauthorized"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
)

// maxBodyBytes caps request bodies read by Decode.
const maxBodyBytes = 1 << 20

// ErrorBody is the envelope every failed request returns. Code is stable
// and meant for clients; Error is for humans.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Respond writes v as JSON with the given status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httputil] encode %T: %v", v, err)
	}
}

func OK(w http.ResponseWriter, v any) { Respond(w, http.StatusOK, v) }
func Created(w http.ResponseWriter, v any) { Respond(w, http.StatusCreated, v) }

// Fail writes the error envelope, tagged with the chi request id when the
// RequestID middleware ran.
func Fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	Respond(w, status, ErrorBody{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// Internal logs err against the request id and answers with a generic 500.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	id := middleware.GetReqID(r.Context())
	log.Printf("[httputil] %s %s (request %s): %v", r.Method, r.URL.Path, id, err)
	Fail(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// Decode reads one JSON value from the body into dst. On failure it writes
// a 400 invalid_json envelope and returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		Fail(w, r, http.StatusBadRequest, CodeInvalidJSON, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
