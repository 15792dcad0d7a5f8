package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sorting-hall/internal/app"
	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/logger"
)

var serveOpts app.Options

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the fleet callback and the dispatcher",
	RunE:  runServe,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().BoolVar(&serveOpts.ConsumeEvents, "consume-events", false, "append call events from the queue to the event log")
		c.Flags().StringVar(&serveOpts.EventLogDir, "log-dir", "logs", "directory of the call event log")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := config.Load()
	svc, err := app.New(ctx, cfg, serveOpts)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
