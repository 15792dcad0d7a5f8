package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/model"
	"github.com/iliyamo/sorting-hall/internal/repository"
)

// SeedReport counts what a Seed run changed.
type SeedReport struct {
	RowsCreated   int
	RowsUpdated   int
	TablesCreated int
}

// Seeder synchronizes the stored hall with a layout.
type Seeder struct {
	repo *repository.Repository
	log  logger.Logger
}

// NewSeeder returns a Seeder writing to repo.
func NewSeeder(repo *repository.Repository, log logger.Logger) *Seeder {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Seeder{repo: repo, log: log}
}

// Seed creates missing rows and tables and brings existing rows to the
// layout's colour and capacity.  Slots at positions beyond the capacity
// are deleted and missing positions are added empty.  Running Seed twice
// with the same layout changes nothing the second time.
func (s *Seeder) Seed(ctx context.Context, layout *config.Layout) (*SeedReport, error) {
	report := &SeedReport{}
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		for _, rl := range layout.Rows {
			created, updated, err := s.syncRow(ctx, tx, rl)
			if err != nil {
				return fmt.Errorf("row %s: %w", rl.Name, err)
			}
			if created {
				report.RowsCreated++
			}
			if updated {
				report.RowsUpdated++
			}
		}
		for _, tl := range layout.Tables {
			_, created, err := tx.Tables.Ensure(ctx, tl.Name)
			if err != nil {
				return fmt.Errorf("table %s: %w", tl.Name, err)
			}
			if created {
				report.TablesCreated++
			}
		}
		_, err := tx.Settings.Get(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("hall seeded: %d rows created, %d rows updated, %d tables created",
		report.RowsCreated, report.RowsUpdated, report.TablesCreated)
	return report, nil
}

func (s *Seeder) syncRow(ctx context.Context, tx *repository.Repository, rl config.RowLayout) (created, updated bool, err error) {
	row, err := tx.Rows.GetByName(ctx, rl.Name)
	if errors.Is(err, repository.ErrRowNotFound) {
		row = &model.Row{Name: rl.Name, ColorHex: rl.Color, Capacity: rl.Capacity}
		if err := tx.Rows.Create(ctx, row); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}

	var missing []int
	present := make(map[int]bool, len(row.Slots))
	extra := false
	for _, sl := range row.Slots {
		present[sl.Position] = true
		if sl.Position >= rl.Capacity {
			extra = true
			if sl.State != model.SlotEmpty {
				s.log.Warnf("row %s: dropping %s slot at position %d", row.Name, sl.State, sl.Position)
			}
		}
	}
	for pos := 0; pos < rl.Capacity; pos++ {
		if !present[pos] {
			missing = append(missing, pos)
		}
	}

	if row.ColorHex == rl.Color && row.Capacity == rl.Capacity && !extra && len(missing) == 0 {
		return false, false, nil
	}
	if err := tx.Rows.UpdateLayout(ctx, row.ID, rl.Color, rl.Capacity); err != nil {
		return false, false, err
	}
	if extra {
		if err := tx.Rows.DeleteSlotsFrom(ctx, row.ID, rl.Capacity); err != nil {
			return false, false, err
		}
	}
	if len(missing) > 0 {
		if err := tx.Rows.AddSlots(ctx, row.ID, missing); err != nil {
			return false, false, err
		}
	}
	return false, true, nil
}
