package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string // the body's "error" field
	Details string // the body's "details" field
	Body    []byte
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
	case e.Details != "":
		return fmt.Sprintf("backend status %d: %s", e.Status, e.Details)
	default:
		return fmt.Sprintf("backend status %d", e.Status)
	}
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = textOf(payload.Error)
		apiErr.Details = textOf(payload.Details)
	}
	return apiErr
}

// textOf accepts a string field, or stringifies anything else the backend sends there.
func textOf(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message picks the text to show for a failed call: the backend's error field,
// then its details field, then the transport error's own message, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Details != "" {
			return apiErr.Details
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
