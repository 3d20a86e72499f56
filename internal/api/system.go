package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each dependency probe in /health.
const healthCheckTimeout = 2 * time.Second

// Health check states.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
	healthDown     = "down"
	healthDisabled = "disabled"
)

// handleRoot answers the liveness probe at /.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"msg": "IoT Device Health API is running",
	})
}

// handleHealth reports the health of the store, the broker connection and
// the alert queue. A failing store makes the service unavailable; a missing
// broker only degrades it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := healthOK
	checks := map[string]string{
		"database": healthDisabled,
		"mqtt":     healthDisabled,
	}

	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			checks["database"] = healthDown
			status = healthDown
		} else {
			checks["database"] = healthOK
		}
	}

	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(ctx); err != nil {
			checks["mqtt"] = healthDown
			if status == healthOK {
				status = healthDegraded
			}
		} else {
			checks["mqtt"] = healthOK
		}
	}

	resp := map[string]any{
		"status":            status,
		"version":           s.version,
		"checks":            checks,
		"websocket_clients": s.hub.ClientCount(),
		"websocket_dropped": s.hub.Dropped(),
	}
	if s.dispatcher != nil {
		resp["alerts"] = s.dispatcher.Stats()
	}

	code := http.StatusOK
	if status == healthDown {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
