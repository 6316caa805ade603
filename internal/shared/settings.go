package shared

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingOverdueThresholdDays stores the default overdue threshold for credit scans.
const SettingOverdueThresholdDays = "credit.overdue_threshold_days"

// SettingsStore reads and writes key/value application settings.
type SettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore constructs the store.
func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

// GetInt returns the integer setting value, or fallback when unset.
func (s *SettingsStore) GetInt(ctx context.Context, key string, fallback int) (int, error) {
	if s == nil {
		return fallback, nil
	}
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key=$1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fallback, nil
		}
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, nil
	}
	return value, nil
}

// SetInt stores an integer setting value.
func (s *SettingsStore) SetInt(ctx context.Context, key string, value int) error {
	if s == nil {
		return errors.New("settings store not initialised")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO app_settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, strconv.Itoa(value))
	return err
}
