// Package postgres manages the PostgreSQL connection pool used for durable
// user records and analytics snapshots. The service runs degraded without
// it: sessions and caching continue, persistence is skipped.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/config"
)

const healthCheckTimeout = 5 * time.Second

// ErrDatabaseUnavailable is returned when database operations are attempted
// while the database is unavailable.
var ErrDatabaseUnavailable = errors.New("database is not available")

// Manager manages the PostgreSQL connection pool and health monitoring.
type Manager struct {
	pool      *pgxpool.Pool
	config    *config.DatabaseConfig
	logger    *logrus.Logger
	available bool
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates a database manager with a connection pool and health
// monitoring. When database credentials are not configured it returns a
// manager without a connection and every Pool call answers nil.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		config:    &cfg.Database,
		logger:    logger,
		available: false,
		ctx:       ctx,
		cancel:    cancel,
	}

	if cfg.IsDatabaseConfigured() {
		if err := manager.connect(); err != nil {
			logger.WithError(err).Warn("Failed to connect to PostgreSQL on startup, will retry periodically")
		}

		go manager.healthMonitor()
	} else {
		logger.Info("PostgreSQL not configured, running without persistence")
	}

	return manager, nil
}

// connect establishes the database connection pool and ensures the schema.
func (m *Manager) connect() error {
	poolConfig, err := pgxpool.ParseConfig(m.buildDSN())
	if err != nil {
		return err
	}

	poolConfig.MaxConns = m.config.MaxConn
	poolConfig.MinConns = m.config.MinConn
	poolConfig.MaxConnLifetime = m.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = m.config.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = m.config.ConnectTimeout

	ctx, cancel := context.WithTimeout(m.ctx, m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return err
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return pingErr
	}

	if schemaErr := ensureSchema(ctx, pool); schemaErr != nil {
		pool.Close()
		return fmt.Errorf("failed to ensure database schema: %w", schemaErr)
	}

	m.mu.Lock()
	if m.pool != nil {
		m.pool.Close()
	}
	m.pool = pool
	m.available = true
	m.mu.Unlock()

	m.logger.Info("Successfully connected to PostgreSQL")
	return nil
}

// buildDSN constructs the PostgreSQL connection string.
func (m *Manager) buildDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s search_path=%s",
		m.config.Host,
		strconv.Itoa(m.config.Port),
		m.config.Database,
		m.config.User,
		m.config.Password,
		m.config.SSLMode,
		m.config.Schema,
	)
}

// healthMonitor periodically checks database connectivity.
func (m *Manager) healthMonitor() {
	ticker := time.NewTicker(m.config.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

// checkHealth pings the pool and reconnects when the connection is lost.
func (m *Manager) checkHealth() {
	m.mu.RLock()
	pool := m.pool
	wasAvailable := m.available
	m.mu.RUnlock()

	if pool == nil {
		if err := m.connect(); err != nil {
			m.mu.Lock()
			m.available = false
			m.mu.Unlock()

			if wasAvailable {
				m.logger.WithError(err).Warn("PostgreSQL connection lost, attempting reconnection")
			}
		}
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, healthCheckTimeout)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		m.mu.Lock()
		m.available = false
		m.mu.Unlock()

		if wasAvailable {
			m.logger.WithError(err).Warn("PostgreSQL health check failed, connection lost")
		}

		if reconnectErr := m.connect(); reconnectErr != nil {
			m.logger.WithError(reconnectErr).Debug("PostgreSQL reconnection attempt failed")
		}
	} else {
		m.mu.Lock()
		isAvailable := m.available
		m.available = true
		m.mu.Unlock()

		if !isAvailable {
			m.logger.Info("PostgreSQL connection restored")
		}
	}
}

// IsAvailable returns true if the database is currently available.
func (m *Manager) IsAvailable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available
}

// Pool returns the connection pool, or nil while the database is
// unavailable.
func (m *Manager) Pool() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.available {
		return m.pool
	}
	return nil
}

// Close closes the connection pool and stops health monitoring.
func (m *Manager) Close() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool != nil {
		m.pool.Close()
		m.pool = nil
	}
	m.available = false
}

// Ping performs a health check on the database connection.
func (m *Manager) Ping(ctx context.Context) error {
	pool := m.Pool()
	if pool == nil {
		return ErrDatabaseUnavailable
	}
	return pool.Ping(ctx)
}
