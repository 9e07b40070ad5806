package pipeline

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/aggregate"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/extract"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/packager"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StreamOpener opens the raw message stream of one variable for (year, month).
type StreamOpener interface {
	Open(ctx context.Context, v domain.Variable, year, month int) (extract.Stream, error)
}

// TableStore persists wide tables and summaries between stages.
type TableStore interface {
	SaveWide(ctx context.Context, t *domain.WideTable) error
	LoadWide(ctx context.Context, v domain.Variable, year, month int) (*domain.WideTable, error)
	SaveSummary(ctx context.Context, s *domain.Summary) error
	LoadSummary(ctx context.Context, g domain.Group, label string, month int) (*domain.Summary, error)
}

// ReportPublisher delivers run reports to downstream consumers.
type ReportPublisher interface {
	Publish(ctx context.Context, report domain.RunReport) error
}

// Config selects what one run covers.
type Config struct {
	Version    string
	Years      []int
	TimeRanges []domain.TimeRange
	Months     []int
	Variables  []domain.Variable
	Bounds     domain.Bounds
	Workers    int
	Aggregate  aggregate.Options
}

// Pipeline runs the batch stages: extract, aggregate, package and check.
type Pipeline struct {
	opener    StreamOpener
	tables    TableStore
	publisher ReportPublisher

	extractor  *extract.Extractor
	aggregator *aggregate.Aggregator
	packager   *packager.Packager

	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New wires a Pipeline. publisher may be nil to skip run reports.
func New(opener StreamOpener, tables TableStore, pkg *packager.Packager, publisher ReportPublisher, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		opener:     opener,
		tables:     tables,
		publisher:  publisher,
		extractor:  extract.New(cfg.Bounds, logger, metrics),
		aggregator: aggregate.New(tables, cfg.Aggregate, logger),
		packager:   pkg,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a stage has completed a unit of work.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed any unit yet")
	}
	return nil
}

// Run executes every stage in order and stops at the first stage that
// leaves failures behind, since later stages would only see missing inputs.
func (p *Pipeline) Run(ctx context.Context) ([]domain.RunReport, error) {
	stages := []func(context.Context) (domain.RunReport, error){
		p.Extract,
		p.Aggregate,
		func(ctx context.Context) (domain.RunReport, error) { return p.Package(ctx, packager.Options{}) },
		p.Check,
	}
	var reports []domain.RunReport
	for _, stage := range stages {
		report, err := stage(ctx)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
		if !report.OK() {
			p.logger.Warn("stage left failures, stopping run", "stage", report.Stage)
			break
		}
	}
	return reports, nil
}

// unit is one independent piece of work within a stage.
type unit struct {
	name string
	run  func(ctx context.Context) error
}

// runUnits executes units on a bounded pool. A failed unit is recorded and
// its siblings continue; only cancellation aborts the stage.
func (p *Pipeline) runUnits(ctx context.Context, stage domain.Stage, units []unit) (domain.RunReport, error) {
	report := p.newReport(stage)
	report.Units = len(units)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, u := range units {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := domain.Now()
			err := u.run(gctx)
			p.metrics.UnitDuration.WithLabelValues(string(stage)).Observe(domain.Since(start).Seconds())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.metrics.UnitErrors.WithLabelValues(string(stage)).Inc()
				p.logger.Error("unit failed", "stage", stage, "unit", u.name, "error", err)
				mu.Lock()
				report.Failures = append(report.Failures, domain.UnitFailure{Unit: u.name, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			p.ready.Store(true)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	slices.SortFunc(report.Failures, func(a, b domain.UnitFailure) int {
		return cmp.Compare(a.Unit, b.Unit)
	})
	p.finish(ctx, &report)
	return report, err
}

func (p *Pipeline) newReport(stage domain.Stage) domain.RunReport {
	return domain.RunReport{
		ID:        uuid.NewString(),
		Stage:     stage,
		Version:   p.cfg.Version,
		StartedAt: domain.Now(),
	}
}

// finish stamps the report, logs it and publishes it when a publisher is set.
// Publishing problems never fail the stage.
func (p *Pipeline) finish(ctx context.Context, report *domain.RunReport) {
	report.FinishedAt = domain.Now()
	p.logger.Info("stage finished",
		"id", report.ID,
		"stage", report.Stage,
		"units", report.Units,
		"failures", len(report.Failures),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	if p.publisher == nil || ctx.Err() != nil {
		return
	}
	if err := p.publisher.Publish(ctx, *report); err != nil {
		p.logger.Warn("run report not published", "id", report.ID, "error", err)
	}
}
