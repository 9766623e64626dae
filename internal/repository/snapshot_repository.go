package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// SnapshotRepository defines persistence operations for analytics
// snapshots.
type SnapshotRepository interface {
	// Insert stores a new snapshot. The snapshot's ID and CreatedAt are
	// populated on return.
	Insert(ctx context.Context, snapshot *models.AnalyticsSnapshot) error

	// ListRecent returns the newest snapshots of a data type for a user,
	// newest first.
	ListRecent(ctx context.Context, userID uuid.UUID, dataType string, limit int) ([]models.AnalyticsSnapshot, error)

	// PurgeExpired removes snapshots past their expiry and reports how
	// many were deleted.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PostgresSnapshotRepository implements SnapshotRepository for PostgreSQL.
type PostgresSnapshotRepository struct {
	getPool PoolGetter
}

// NewPostgresSnapshotRepository creates a PostgreSQL snapshot repository.
func NewPostgresSnapshotRepository(poolGetter PoolGetter) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{getPool: poolGetter}
}

// Insert stores a new snapshot.
func (r *PostgresSnapshotRepository) Insert(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	pool := r.getPool()
	if pool == nil {
		return ErrUnavailable
	}

	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}

	query := `
		INSERT INTO analytics_snapshots (id, user_id, data_type, time_range, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		RETURNING created_at`

	err := pool.QueryRow(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.DataType,
		snapshot.TimeRange,
		snapshot.Data,
		snapshot.ExpiresAt,
	).Scan(&snapshot.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert analytics snapshot: %w", err)
	}
	return nil
}

// ListRecent returns the newest snapshots of a data type for a user.
func (r *PostgresSnapshotRepository) ListRecent(
	ctx context.Context,
	userID uuid.UUID,
	dataType string,
	limit int,
) ([]models.AnalyticsSnapshot, error) {
	pool := r.getPool()
	if pool == nil {
		return nil, ErrUnavailable
	}

	query := `
		SELECT id, user_id, data_type, time_range, data, created_at, expires_at
		FROM analytics_snapshots
		WHERE user_id = $1 AND data_type = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := pool.Query(ctx, query, userID, dataType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.AnalyticsSnapshot
	for rows.Next() {
		var s models.AnalyticsSnapshot
		if err := rows.Scan(&s.ID, &s.UserID, &s.DataType, &s.TimeRange, &s.Data, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analytics snapshots: %w", err)
	}

	return snapshots, nil
}

// PurgeExpired removes snapshots past their expiry.
func (r *PostgresSnapshotRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	pool := r.getPool()
	if pool == nil {
		return 0, ErrUnavailable
	}

	result, err := pool.Exec(ctx, `DELETE FROM analytics_snapshots WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}
