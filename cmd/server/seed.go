package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/database"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/repository"
	"github.com/iliyamo/sorting-hall/internal/service"
)

var layoutPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create or update rows and tables from the hall layout",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "hall layout YAML (default $HALL_LAYOUT or hall.yaml)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	path := layoutPath
	if path == "" {
		path = config.LayoutPathFromEnv()
	}
	layout, err := config.LoadLayout(path)
	if err != nil {
		return err
	}

	dbc := config.LoadDBConfig()
	db, err := database.Open(dbc.User, dbc.Pass, dbc.Host, dbc.Port, dbc.Name)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	report, err := service.NewSeeder(repository.NewRepository(db), logger.New("seed")).Seed(ctx, layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rows created: %d, rows updated: %d, tables created: %d\n",
		report.RowsCreated, report.RowsUpdated, report.TablesCreated)
	return nil
}
