package commands

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/ubuntu/docsync/internal/constants"
	"github.com/ubuntu/docsync/internal/couchdb"
	"github.com/ubuntu/docsync/internal/ingest"
	"github.com/ubuntu/docsync/internal/metrics"
	"github.com/ubuntu/docsync/internal/source"
	"github.com/ubuntu/docsync/internal/summary"
	"github.com/ubuntu/docsync/internal/watch"
)

var (
	// ErrSyncFailed is returned when at least one input unit was not synchronized.
	ErrSyncFailed = errors.New("some documents were not synchronized")
	// ErrInvalidWorkers is returned when fewer than one worker is requested.
	ErrInvalidWorkers = errors.New("workers must be at least 1")
)

func installPushCmd(app *App) error {
	cmd := &cobra.Command{
		Use:   "push DATABASE [PATH...]",
		Short: "Send document files to a database",
		Long: `Send document files to a database.

Each PATH is a document file or a directory, whose document files are sent in name order.
Subdirectories are not visited. PATH defaults to the current directory.

A file holding a single document creates it, and fails if it already exists.
A file holding a list of documents sends them as one batch.
Failing files are reported without stopping the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args[1:]
			if len(paths) == 0 {
				paths = []string{"."}
			}

			slog.Info("Running push command", "database", args[0], "paths", paths)
			return app.pushRun(args[0], paths)
		},
	}

	cmd.Flags().DurationVar(&app.config.Push.Delay, "delay", constants.DefaultDelay, "minimum pause between two document files")
	cmd.Flags().IntVar(&app.config.Push.Workers, "workers", constants.DefaultWorkers, "number of document files sent concurrently")
	cmd.Flags().BoolVarP(&app.config.Push.DryRun, "dry-run", "d", false, "go through the motions of sending documents, but do not communicate with the document store")
	cmd.Flags().BoolVarP(&app.config.Push.Watch, "watch", "w", false, "keep running and send document files again each time they change")
	cmd.Flags().BoolVar(&app.config.Push.CheckServer, "check-server", false, "check that the document store is reachable before sending anything")
	cmd.Flags().String("format", string(summary.FormatText), fmt.Sprintf("run summary format, one of %v", summary.Formats))
	cmd.Flags().StringVar(&app.config.Push.SummaryFile, "summary-file", "", "write the run summary to this file instead of the standard output")
	cmd.Flags().StringVar(&app.config.Push.MetricsFile, "metrics-file", "", "write run metrics to this file in the Prometheus text format")

	for _, name := range []string{"summary-file", "metrics-file"} {
		if err := cmd.MarkFlagFilename(name); err != nil {
			return fmt.Errorf("failed to mark %s flag as filename: %v", name, err)
		}
	}

	app.cmd.AddCommand(cmd)
	return app.viper.BindPFlags(cmd.Flags())
}

// pushRun sends the document files under paths to database.
func (a *App) pushRun(database string, paths []string) error {
	cfg := a.config
	if cfg.Push.Workers < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidWorkers, cfg.Push.Workers)
	}

	client, err := couchdb.New(couchdb.Config{Host: cfg.Host, Port: cfg.Port}, couchdb.WithResponseTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	if cfg.Push.CheckServer && !cfg.Push.DryRun {
		info, err := client.Ping(a.ctx)
		if err != nil {
			return err
		}
		slog.Info("Document store is reachable", "vendor", info.Vendor, "version", info.Version)
	}

	rec := metrics.New(prometheus.NewRegistry())
	driver, err := ingest.New(ingest.Config{
		Database: database,
		Delay:    cfg.Push.Delay,
		Workers:  cfg.Push.Workers,
		DryRun:   cfg.Push.DryRun,
	}, client, ingest.WithObserver(rec))
	if err != nil {
		return err
	}

	units, err := source.Discover(paths)
	if err != nil {
		return err
	}

	err = a.sync(driver, rec, database, units)
	if !cfg.Push.Watch {
		return err
	}
	if a.ctx.Err() != nil {
		return nil
	}
	if err != nil {
		slog.Warn("Initial synchronization is incomplete", "error", err)
	}

	w, err := watch.New(paths, func(_ context.Context, files []source.File) {
		if err := a.sync(driver, rec, database, source.Units(files)); err != nil {
			slog.Warn("Synchronization of changed files is incomplete", "error", err)
		}
	}, watch.WithReady(func() { close(a.ready) }))
	if err != nil {
		return err
	}
	return w.Run(a.ctx)
}

// sync runs driver over units, then reports the run summary and metrics.
func (a *App) sync(driver *ingest.Driver, rec *metrics.Recorder, database string, units iter.Seq[source.Unit]) error {
	cfg := a.config.Push

	s, runErr := driver.Run(a.ctx, units)
	if runErr != nil {
		runErr = fmt.Errorf("run interrupted: %w", runErr)
	}

	var reportErr error
	r := summary.New(s, database)
	if cfg.SummaryFile != "" {
		reportErr = summary.Write(cfg.SummaryFile, r, cfg.Format)
	} else {
		reportErr = summary.Render(a.cmd.OutOrStdout(), r, cfg.Format)
	}

	var metricsErr error
	if cfg.MetricsFile != "" {
		metricsErr = rec.WriteToTextfile(cfg.MetricsFile)
	}

	var failedErr error
	if !s.OK() {
		failedErr = fmt.Errorf("%w: %d of %d failed", ErrSyncFailed, s.Failed(), len(s.Outcomes))
	}

	return errors.Join(runErr, failedErr, reportErr, metricsErr)
}
