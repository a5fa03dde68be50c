package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"clinigate/internal/models"
)

// FeatureStore handles feature assignment persistence.
type FeatureStore struct {
	db *sql.DB
}

// NewFeatureStore creates a new FeatureStore with the given database connection.
func NewFeatureStore(db *sql.DB) *FeatureStore {
	return &FeatureStore{db: db}
}

// Find returns the assignment of code to userID. Returns nil if none exists.
// Expiry is not applied here; callers evaluate it at read time.
func (s *FeatureStore) Find(ctx context.Context, userID uuid.UUID, code string) (*models.FeatureAssignment, error) {
	fa := &models.FeatureAssignment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, feature_code, enabled, expires_at, created_at, updated_at
		FROM feature_assignments WHERE user_id = $1 AND feature_code = $2
	`, userID, code).Scan(
		&fa.UserID, &fa.FeatureCode, &fa.Enabled, &fa.ExpiresAt, &fa.CreatedAt, &fa.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find feature assignment: %w", err)
	}
	return fa, nil
}

// Upsert creates or replaces the assignment and fills its timestamps.
func (s *FeatureStore) Upsert(ctx context.Context, fa *models.FeatureAssignment) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO feature_assignments (user_id, feature_code, enabled, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, feature_code) DO UPDATE
		SET enabled = EXCLUDED.enabled, expires_at = EXCLUDED.expires_at, updated_at = NOW()
		RETURNING created_at, updated_at
	`, fa.UserID, fa.FeatureCode, fa.Enabled, fa.ExpiresAt).Scan(&fa.CreatedAt, &fa.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert feature assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment. It reports whether one existed.
func (s *FeatureStore) Delete(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM feature_assignments WHERE user_id = $1 AND feature_code = $2
	`, userID, code)
	if err != nil {
		return false, fmt.Errorf("delete feature assignment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete feature assignment: %w", err)
	}
	return n > 0, nil
}
