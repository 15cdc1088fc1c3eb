package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the /health payload. Checks maps each dependency
// name to "ok" or the failure message.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheckWithDeps returns a /health handler that probes each
// dependency. Any failing check degrades the response to 503 so load
// balancers stop routing here.
func HealthCheckWithDeps(serviceName, version string, checks map[string]func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		results := make(map[string]string, len(checks))

		for name, probe := range checks {
			if err := probe(); err != nil {
				results[name] = err.Error()
				status = "degraded"
			} else {
				results[name] = "ok"
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, HealthResponse{
			Status:  status,
			Service: serviceName,
			Version: version,
			Checks:  results,
		})
	}
}
