package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"site-cloner/internal/database"
	"site-cloner/internal/middleware"
)

type HealthResponse struct {
	Status    string                     `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Database  database.HealthCheckResult `json:"database"`
}

// HealthChecker pings the backing database.
type HealthChecker interface {
	CheckHealth(ctx context.Context) database.HealthCheckResult
}

type HealthController struct {
	checker HealthChecker
	metrics *middleware.PrometheusMetrics
	version string
}

// NewHealthController reports checker's state; metrics may be nil.
func NewHealthController(checker HealthChecker, metrics *middleware.PrometheusMetrics, version string) *HealthController {
	return &HealthController{checker: checker, metrics: metrics, version: version}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	result := hc.checker.CheckHealth(ctx)
	if hc.metrics != nil {
		hc.metrics.UpdateDatabaseHealth(result)
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   "site-cloner",
		Version:   hc.version,
		Database:  result,
	}

	statusCode := http.StatusOK
	if !result.Healthy() {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}
