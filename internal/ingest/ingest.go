// Package ingest drives input units through parsing, classification and dispatch,
// and aggregates their outcomes into a run summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ubuntu/docsync/internal/constants"
	"github.com/ubuntu/docsync/internal/dispatch"
	"github.com/ubuntu/docsync/internal/document"
	"github.com/ubuntu/docsync/internal/source"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrNoDatabase is returned when no database name is configured.
	ErrNoDatabase = errors.New("database name cannot be empty")
	// ErrInvalidConfig is returned when the driver configuration is invalid.
	ErrInvalidConfig = errors.New("invalid ingestion configuration")
)

// Config is the configuration of a Driver.
type Config struct {
	// Database is the name of the database documents are sent to.
	Database string
	// Delay is the minimum pause between two input units. 0 disables pacing.
	Delay time.Duration
	// Workers is the number of documents dispatched concurrently.
	Workers int
	// DryRun stops after classification, without contacting the store.
	DryRun bool
}

// Observer is notified of every outcome. With a single worker, outcomes are notified in input order
// from the calling goroutine. It must be safe for concurrent use when Workers > 1.
type Observer interface {
	Observe(dispatch.Outcome)
}

// Summary is the result of a run.
type Summary struct {
	RunID    string
	Outcomes []dispatch.Outcome
	Elapsed  time.Duration
}

// Failed returns the number of failed outcomes.
func (s Summary) Failed() int {
	var n int
	for _, o := range s.Outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}

// OK returns true if every outcome is successful.
func (s Summary) OK() bool {
	return s.Failed() == 0
}

// Driver processes input units. A Driver can run several times, each run being independent.
type Driver struct {
	cfg       Config
	transport dispatch.Transport
	observers []Observer
	log       *slog.Logger

	newRunID func() string
}

type options struct {
	logger    *slog.Logger
	observers []Observer

	// Private members exported for tests.
	newRunID func() string
}

// Options represents an optional function to override Driver default values.
type Options func(*options)

// WithLogger sets the logger used by the driver.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver adds an observer notified of every outcome.
func WithObserver(obs Observer) Options {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// New returns a new Driver sending documents through t.
func New(cfg Config, t dispatch.Transport, args ...Options) (*Driver, error) {
	if cfg.Database == "" {
		return nil, ErrNoDatabase
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("%w: delay cannot be negative, got %s", ErrInvalidConfig, cfg.Delay)
	}
	if cfg.Workers == 0 {
		cfg.Workers = constants.DefaultWorkers
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, cfg.Workers)
	}
	if t == nil && !cfg.DryRun {
		return nil, fmt.Errorf("%w: a transport is required unless in dry run", ErrInvalidConfig)
	}

	opts := options{
		logger:   slog.Default(),
		newRunID: uuid.NewString,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Driver{
		cfg:       cfg,
		transport: t,
		observers: opts.observers,
		log:       opts.logger,
		newRunID:  opts.newRunID,
	}, nil
}

// Run processes units in order and returns one outcome per unit, in the same order.
//
// A failing unit never stops the run. The only error returned is the context error when ctx
// is done before all units are processed: the summary then holds the outcomes of the units
// processed so far. Documents already being sent when ctx is done are sent to completion,
// bounded by the transport response timeout.
func (d *Driver) Run(ctx context.Context, units iter.Seq[source.Unit]) (Summary, error) {
	start := time.Now()
	runID := d.newRunID()
	log := d.log.With("run_id", runID)
	log.Info("Starting run", "database", d.cfg.Database, "workers", d.cfg.Workers, "dry_run", d.cfg.DryRun)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if d.cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(d.cfg.Delay), 1)
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)

	var (
		slots  []*dispatch.Outcome
		order  = newIDOrder()
		runErr error
	)
	// A request already sent completes even once ctx is done: runs stop between units only.
	dispatchCtx := context.WithoutCancel(ctx)
	for u := range units {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			runErr = ctx.Err()
			if runErr == nil {
				runErr = err
			}
			break
		}

		slot := new(dispatch.Outcome)
		slots = append(slots, slot)

		doc, failed := d.prepare(u)
		if failed != nil {
			*slot = *failed
			d.report(log, *slot)
			continue
		}

		if d.cfg.DryRun {
			method, path := dispatch.Describe(doc, d.cfg.Database)
			*slot = dispatch.Outcome{
				Source:  u.Name,
				Kind:    doc.Kind(),
				Stage:   dispatch.StageClassify,
				Success: true,
				Message: fmt.Sprintf("dry run: would %s %s", method, path),
			}
			d.report(log, *slot)
			continue
		}

		if d.cfg.Workers == 1 {
			*slot = dispatch.Dispatch(dispatchCtx, doc, d.transport, d.cfg.Database)
			d.report(log, *slot)
			continue
		}

		wait, done := order.enter(identifiers(doc))
		g.Go(func() error {
			defer close(done)
			for _, w := range wait {
				<-w
			}
			*slot = dispatch.Dispatch(dispatchCtx, doc, d.transport, d.cfg.Database)
			d.report(log, *slot)
			return nil
		})
	}
	// Workers never fail: failures are outcomes.
	_ = g.Wait()

	s := Summary{RunID: runID, Outcomes: make([]dispatch.Outcome, 0, len(slots)), Elapsed: time.Since(start)}
	for _, o := range slots {
		s.Outcomes = append(s.Outcomes, *o)
	}

	if runErr != nil {
		log.Warn("Run interrupted", "processed", len(s.Outcomes), "error", runErr)
		return s, runErr
	}
	log.Info("Run finished", "units", len(s.Outcomes), "failed", s.Failed(), "elapsed", s.Elapsed)
	return s, nil
}

// prepare reads, parses and classifies u. It returns the failed outcome of the first failing stage, if any.
func (d *Driver) prepare(u source.Unit) (document.Classified, *dispatch.Outcome) {
	start := time.Now()
	fail := func(stage dispatch.Stage, err error) *dispatch.Outcome {
		return &dispatch.Outcome{
			Source:   u.Name,
			Stage:    stage,
			Message:  fmt.Sprintf("%s: %v", stage, err),
			Duration: time.Since(start),
		}
	}

	if u.Err != nil {
		return nil, fail(dispatch.StageRead, u.Err)
	}

	v, err := document.Parse(u.Data, u.Syntax)
	if err != nil {
		return nil, fail(dispatch.StageParse, err)
	}

	doc, err := document.Classify(v, u.Name)
	if err != nil {
		return nil, fail(dispatch.StageClassify, err)
	}
	return doc, nil
}

func (d *Driver) report(log *slog.Logger, o dispatch.Outcome) {
	attrs := []any{"source", o.Source, "stage", o.Stage, "message", o.Message}
	if o.StatusCode != nil {
		attrs = append(attrs, "status", *o.StatusCode)
	}
	if o.Success {
		log.Info("Document synchronized", attrs...)
	} else {
		log.Warn("Document not synchronized", attrs...)
	}

	for _, obs := range d.observers {
		obs.Observe(o)
	}
}

func identifiers(doc document.Classified) []string {
	switch d := document.Value(doc).(type) {
	case document.Single:
		return []string{d.ID}
	case document.Bulk:
		return d.IDs()
	default:
		panic(fmt.Sprintf("unexpected classified document type %T", doc))
	}
}
