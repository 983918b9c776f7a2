//go:build integration

// Package containers manages shared test containers for integration suites.
// Each container type is started at most once per test binary; Ryuk reaps
// them when the run ends.
package containers

import (
	"context"
	"sync"
	"testing"

	"geoset/internal/platform/postgres"
)

// Manager hands out shared containers to integration suites.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared Postgres container, starting it and applying
// the schema on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.postgres == nil {
		pc := NewPostgresContainer(t)
		if err := postgres.Migrate(context.Background(), pc.DB); err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
		m.postgres = pc
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}
