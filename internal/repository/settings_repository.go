package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/sorting-hall/internal/model"
)

const settingsID = 1

// SettingsRepo provides data access to the hall_settings singleton.
type SettingsRepo struct {
	db DBTX
}

// NewSettingsRepo constructs a SettingsRepo with the given handle.
func NewSettingsRepo(db DBTX) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the settings.  When the record does not exist yet it is
// created with the MostFreePallets strategy.
func (r *SettingsRepo) Get(ctx context.Context) (*model.HallSettings, error) {
	var (
		s   model.HallSettings
		raw string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, row_selection_strategy FROM hall_settings WHERE id = ?`, settingsID).Scan(&s.ID, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.db.ExecContext(ctx,
			`INSERT IGNORE INTO hall_settings (id, row_selection_strategy) VALUES (?, ?)`,
			settingsID, string(model.StrategyMostFreePallets)); err != nil {
			return nil, err
		}
		return &model.HallSettings{ID: settingsID, Strategy: model.StrategyMostFreePallets}, nil
	}
	if err != nil {
		return nil, err
	}
	strategy, ok := model.ParseStrategy(raw)
	if !ok {
		strategy = model.StrategyMostFreePallets
	}
	s.Strategy = strategy
	return &s, nil
}

// SetStrategy stores the row selection strategy, creating the settings
// record when needed.
func (r *SettingsRepo) SetStrategy(ctx context.Context, strategy model.Strategy) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hall_settings (id, row_selection_strategy) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE row_selection_strategy = VALUES(row_selection_strategy)`,
		settingsID, string(strategy))
	return err
}
