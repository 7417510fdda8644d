package database

import (
	"context"
	"database/sql"
	"time"
)

// PoolSettings sizes the connection pool behind the store.
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigurePool applies settings, falling back to defaults for zero values.
func ConfigurePool(db *sql.DB, s PoolSettings) {
	maxOpen := s.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	maxIdle := s.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = maxOpen / 2
		if maxIdle < 2 {
			maxIdle = 2
		}
	}
	db.SetMaxIdleConns(maxIdle)

	lifetime := s.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(lifetime)

	idle := s.ConnMaxIdleTime
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	db.SetConnMaxIdleTime(idle)
}

// ConnectionStats is the pool snapshot reported by health checks.
type ConnectionStats struct {
	OpenConnections   int           `json:"openConnections"`
	InUse             int           `json:"inUse"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"waitCount"`
	WaitDuration      time.Duration `json:"waitDuration"`
	MaxIdleClosed     int64         `json:"maxIdleClosed"`
	MaxLifetimeClosed int64         `json:"maxLifetimeClosed"`
}

// HealthCheckResult is the outcome of one ping.
type HealthCheckResult struct {
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Latency   time.Duration   `json:"latency"`
	CheckedAt time.Time       `json:"checkedAt"`
	Stats     ConnectionStats `json:"stats"`
}

// Healthy reports a successful ping.
func (r HealthCheckResult) Healthy() bool {
	return r.Status == "healthy"
}

// CheckHealth pings the store's connection and snapshots its pool.
func (s *MySQLStore) CheckHealth(ctx context.Context) HealthCheckResult {
	start := time.Now()
	result := HealthCheckResult{CheckedAt: start}

	sqlDB, err := s.db.DB()
	if err != nil {
		result.Status = "error"
		result.Message = "failed to get database instance: " + err.Error()
		result.Latency = time.Since(start)
		return result
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		result.Status = "unhealthy"
		result.Message = "ping failed: " + err.Error()
		result.Latency = time.Since(start)
		return result
	}
	result.Latency = time.Since(start)
	result.Status = "healthy"

	st := sqlDB.Stats()
	result.Stats = ConnectionStats{
		OpenConnections:   st.OpenConnections,
		InUse:             st.InUse,
		Idle:              st.Idle,
		WaitCount:         st.WaitCount,
		WaitDuration:      st.WaitDuration,
		MaxIdleClosed:     st.MaxIdleClosed,
		MaxLifetimeClosed: st.MaxLifetimeClosed,
	}
	return result
}
