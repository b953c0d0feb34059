package http

import (
	"net/http"
)

// HealthHandler answers liveness probes. It never touches the store, so a saturated pool
// does not make the process look dead.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
