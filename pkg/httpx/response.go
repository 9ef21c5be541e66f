package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorEnvelope is the uniform JSON body for every rejected request.
type ErrorEnvelope struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Details    string `json:"details,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds
}

// DataEnvelope wraps successful payloads.
type DataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes {success:true,data:v}.
func WriteData(w http.ResponseWriter, code int, v any) {
	WriteJSON(w, code, DataEnvelope{Success: true, Data: v})
}

// WriteError writes env with success forced to false and a timestamp filled in.
// A positive RetryAfter is mirrored into the Retry-After header.
func WriteError(w http.ResponseWriter, code int, env ErrorEnvelope) {
	env.Success = false
	if env.Timestamp == "" {
		env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if env.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(env.RetryAfter))
	}
	WriteJSON(w, code, env)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
