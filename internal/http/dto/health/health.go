// Package health contiene DTOs para endpoints de health check.
package health

import "time"

// ComponentStatus representa el estado de un componente específico.
type ComponentStatus struct {
	Status  string `json:"status"`            // "ok" | "error" | "disabled"
	Message string `json:"message,omitempty"` // Detalle opcional
}

// ReadyResponse representa la respuesta de /readyz.
type ReadyResponse struct {
	Status     string                     `json:"status"` // "ready" | "degraded" | "unavailable"
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
}
