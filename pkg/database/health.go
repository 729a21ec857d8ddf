package database

import (
	"context"
	"time"
)

// HealthStatus is the GET /health database section.
type HealthStatus struct {
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
}

// Health pings the database with a short timeout and reports pool stats.
func (c *Client) Health(ctx context.Context) HealthStatus {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{Healthy: true}
	if err := c.db.PingContext(pingCtx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}

	stats := c.db.Stats()
	status.OpenConnections = stats.OpenConnections
	status.InUse = stats.InUse
	status.Idle = stats.Idle
	return status
}
