package httputil

import (
	"encoding/json"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
// It marshals first so an encoding failure never leaves a partial body behind.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ErrorBody is the {"error": ...} shape every failure uses.
// Error holds a JSON string or a provider error object.
type ErrorBody struct {
	Error json.RawMessage `json:"error"`
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, status int, message string) {
	msg, _ := json.Marshal(message)
	RespondRawError(w, status, msg)
}

// RespondRawError writes {"error": raw} where raw is already valid JSON,
// typically the error payload of the completion provider.
func RespondRawError(w http.ResponseWriter, status int, raw []byte) {
	if !json.Valid(raw) {
		raw, _ = json.Marshal(string(raw))
	}
	payload, err := json.Marshal(ErrorBody{Error: raw})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondBytes writes a pre-serialized JSON body.
func RespondBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
