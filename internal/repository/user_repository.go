// Package repository provides PostgreSQL-backed persistence for user
// records and analytics snapshots. Repositories obtain the pool through a
// getter so they always use the current connection after a reconnect.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Luuchoh/SpotifyScope/internal/models"
)

// PoolGetter returns the current database connection pool, or nil while the
// database is unavailable.
type PoolGetter func() *pgxpool.Pool

// ErrUnavailable is returned when the database connection is not available.
var ErrUnavailable = errors.New("database connection not available")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository defines persistence operations for user records.
type UserRepository interface {
	// UpsertBySpotifyID creates or updates the user identified by its
	// provider ID, refreshing profile fields and stored tokens. The
	// user's ID and timestamps are populated on return.
	UpsertBySpotifyID(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by internal ID. Returns ErrNotFound when
	// no such user exists.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetBySpotifyID retrieves a user by provider ID.
	GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error)

	// UpdateTokens replaces the stored provider tokens for a user.
	UpdateTokens(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, expiry time.Time) error

	// ClearTokens removes the stored provider tokens, used on logout.
	ClearTokens(ctx context.Context, userID uuid.UUID) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL.
type PostgresUserRepository struct {
	getPool PoolGetter
}

// NewPostgresUserRepository creates a PostgreSQL user repository.
func NewPostgresUserRepository(poolGetter PoolGetter) *PostgresUserRepository {
	return &PostgresUserRepository{getPool: poolGetter}
}

const userColumns = `id, spotify_id, email, display_name, profile_image,
	access_token, refresh_token, token_expiry, created_at, updated_at`

// UpsertBySpotifyID creates or updates the user identified by its provider
// ID.
func (r *PostgresUserRepository) UpsertBySpotifyID(ctx context.Context, user *models.User) error {
	pool := r.getPool()
	if pool == nil {
		return ErrUnavailable
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users
		(id, spotify_id, email, display_name, profile_image, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (spotify_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			profile_image = EXCLUDED.profile_image,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := pool.QueryRow(ctx, query,
		user.ID,
		user.SpotifyID,
		user.Email,
		user.DisplayName,
		user.ProfileImage,
		user.AccessToken,
		user.RefreshToken,
		user.TokenExpiry,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by internal ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, userID)
}

// GetBySpotifyID retrieves a user by provider ID.
func (r *PostgresUserRepository) GetBySpotifyID(ctx context.Context, spotifyID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE spotify_id = $1`
	return r.scanUser(ctx, query, spotifyID)
}

// UpdateTokens replaces the stored provider tokens for a user.
func (r *PostgresUserRepository) UpdateTokens(
	ctx context.Context,
	userID uuid.UUID,
	accessToken, refreshToken string,
	expiry time.Time,
) error {
	pool := r.getPool()
	if pool == nil {
		return ErrUnavailable
	}

	query := `
		UPDATE users
		SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = now()
		WHERE id = $1`

	result, err := pool.Exec(ctx, query, userID, accessToken, refreshToken, expiry)
	if err != nil {
		return fmt.Errorf("failed to update user tokens: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearTokens removes the stored provider tokens.
func (r *PostgresUserRepository) ClearTokens(ctx context.Context, userID uuid.UUID) error {
	pool := r.getPool()
	if pool == nil {
		return ErrUnavailable
	}

	query := `
		UPDATE users
		SET access_token = '', refresh_token = '', token_expiry = NULL, updated_at = now()
		WHERE id = $1`

	result, err := pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to clear user tokens: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanUser scans a single user row.
func (r *PostgresUserRepository) scanUser(
	ctx context.Context,
	query string,
	args ...interface{},
) (*models.User, error) {
	pool := r.getPool()
	if pool == nil {
		return nil, ErrUnavailable
	}

	var user models.User
	err := pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.SpotifyID,
		&user.Email,
		&user.DisplayName,
		&user.ProfileImage,
		&user.AccessToken,
		&user.RefreshToken,
		&user.TokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	return &user, nil
}
