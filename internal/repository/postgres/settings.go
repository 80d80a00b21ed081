package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/settings"
)

// SettingsRepo implements settings.Repository against PostgreSQL.
type SettingsRepo struct{ db *sql.DB }

// NewSettingsRepo creates a Postgres-backed settings repository.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

func (r *SettingsRepo) Get(ctx context.Context, key string) (*domain.Setting, error) {
	s := &domain.Setting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, settings.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return s, nil
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}
