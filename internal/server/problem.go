package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound         = "https://faceanalyzer.dev/problems/not-found"
	ProblemTypeBadRequest       = "https://faceanalyzer.dev/problems/bad-request"
	ProblemTypeInternal         = "https://faceanalyzer.dev/problems/internal-error"
	ProblemTypeRateLimited      = "https://faceanalyzer.dev/problems/rate-limited"
	ProblemTypePayloadTooLarge  = "https://faceanalyzer.dev/problems/payload-too-large"
	ProblemTypeUnsupportedMedia = "https://faceanalyzer.dev/problems/unsupported-media-type"
	ProblemTypeUpstream         = "https://faceanalyzer.dev/problems/upstream-error"
	ProblemTypeUnavailable      = "https://faceanalyzer.dev/problems/unavailable"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeStatusProblem(w http.ResponseWriter, typ string, status int, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeNotFound, http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeBadRequest, http.StatusBadRequest, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeInternal, http.StatusInternalServerError, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeRateLimited, http.StatusTooManyRequests, detail, instance)
}

// PayloadTooLarge writes a 413 problem response.
func PayloadTooLarge(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypePayloadTooLarge, http.StatusRequestEntityTooLarge, detail, instance)
}

// UnsupportedMediaType writes a 415 problem response.
func UnsupportedMediaType(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeUnsupportedMedia, http.StatusUnsupportedMediaType, detail, instance)
}

// Upstream writes a problem response for a failed inference provider call.
// status is normally 502 or 504.
func Upstream(w http.ResponseWriter, status int, detail, instance string) {
	writeStatusProblem(w, ProblemTypeUpstream, status, detail, instance)
}

// Unavailable writes a 503 problem response.
func Unavailable(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeUnavailable, http.StatusServiceUnavailable, detail, instance)
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
