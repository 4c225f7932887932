package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	startedAt     time.Time
	version       string
	configVersion func() string
}

// NewHealthHandler builds a HealthHandler; configVersion reports the active
// extraction configuration snapshot.
func NewHealthHandler(version string, configVersion func() string) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), version: version, configVersion: configVersion}
}

// Healthz is the liveness probe.
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        h.version,
		"config_version": h.configVersion(),
		"uptime":         time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe. The pipeline is in-process, so readiness
// follows liveness; external collaborators are best-effort and do not gate
// traffic.
func (h *HealthHandler) Readyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
