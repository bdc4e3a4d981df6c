package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/codeturtle/turtle-web/internal/http/respond"
)

// HealthHandler returns uptime and the number of visitors held in memory.
type HealthHandler struct {
	startedAt time.Time
	visitors  func() int
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, visitors func() int) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, visitors: visitors}
}

// Register wires the handler into a router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	}
	if h.visitors != nil {
		body["visitors"] = h.visitors()
	}
	respond.JSON(w, http.StatusOK, body)
}
