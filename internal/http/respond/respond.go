// Package respond writes the JSON bodies of the browser-facing API routes.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Envelope is the {success, error} shape the browser scripts expect.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK writes {"success":true}.
func OK(w http.ResponseWriter) {
	JSON(w, http.StatusOK, Envelope{Success: true})
}

// Error writes {"success":false,"error":message} with status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Error: message})
}

// JSON writes any payload as JSON.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("[respond] encode payload failed")
	}
}
