// Package http exposes the diagnostic HTTP surface of this service: a
// liveness probe, wired the way the teacher's cmd/server/main.go wires its
// /health route. The /ws upgrade is served by eventbus.Hub, not by this
// package. There is
// deliberately no admin/CRUD surface here (§ Non-goals).
package http

import (
	"encoding/json"
	"net/http"
)

// HealthHandler reports process liveness plus whether each optional
// dependency (Postgres, FCM) is wired, so an operator curling /health can
// tell a degraded-but-running process from a crashed one.
type HealthHandler struct {
	PostgresEnabled bool
	FCMEnabled      bool
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"postgres": h.PostgresEnabled,
		"fcm":      h.FCMEnabled,
	})
}
