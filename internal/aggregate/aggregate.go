// Package aggregate reduces the wide tables of every year in a time range
// into one summary per (group, time range, month).
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
)

// RainScheme selects how precipitation is summarized.
type RainScheme string

const (
	// RainDaily summarizes rain as mean and std of daily sums.
	RainDaily RainScheme = "daily"
	// RainBins summarizes rain as counts per RainTable class.
	RainBins RainScheme = "bins"
)

// ParseRainScheme validates a scheme name.
func ParseRainScheme(s string) (RainScheme, error) {
	switch RainScheme(s) {
	case RainDaily, RainBins:
		return RainScheme(s), nil
	}
	return "", fmt.Errorf("unknown rain scheme %q", s)
}

// KelvinOffset converts Kelvin to degrees Celsius.
const KelvinOffset = 273.15

// MetersToMillimeters converts precipitation depth.
const MetersToMillimeters = 1000

// TableSource loads extracted wide tables.
type TableSource interface {
	LoadWide(ctx context.Context, v domain.Variable, year, month int) (*domain.WideTable, error)
}

// Options tune the reductions.
type Options struct {
	RainScheme RainScheme
	// PrecipAccumulation is the period one precipitation sample covers.
	PrecipAccumulation time.Duration
}

// Aggregator computes summaries from extracted tables.
type Aggregator struct {
	src    TableSource
	opts   Options
	logger *slog.Logger
}

// New creates an Aggregator. Zero options fall back to the daily rain
// scheme with hourly accumulation.
func New(src TableSource, opts Options, logger *slog.Logger) *Aggregator {
	if opts.RainScheme == "" {
		opts.RainScheme = RainDaily
	}
	if opts.PrecipAccumulation <= 0 {
		opts.PrecipAccumulation = time.Hour
	}
	return &Aggregator{src: src, opts: opts, logger: logger}
}

// Aggregate reduces group g over every year of tr for one month. Every
// year's table must share the first year's index; a missing year fails with
// domain.ErrMissingTable and a differing index with domain.ErrIndexMismatch.
func (a *Aggregator) Aggregate(ctx context.Context, g domain.Group, tr domain.TimeRange, month int) (*domain.Summary, error) {
	if len(tr.Years) == 0 {
		return nil, fmt.Errorf("aggregate %s %s-%d: empty time range", g, tr.Label, month)
	}
	var r reducer
	switch g {
	case domain.GroupWind:
		r = newVectorCounter(domain.WindSpeedTable, true)
	case domain.GroupCurrent:
		r = newVectorCounter(domain.CurrentSpeedTable, false)
	case domain.GroupWave:
		r = newClassCounter(domain.WaveTable, 1)
	case domain.GroupTemp, domain.GroupSeaTemp:
		r = newExtremumStats()
	case domain.GroupRain:
		if a.opts.RainScheme == RainBins {
			r = newClassCounter(domain.RainTable, MetersToMillimeters)
		} else {
			r = newDailySums(a.opts.PrecipAccumulation)
		}
	default:
		return nil, fmt.Errorf("aggregate: unknown group %q", g)
	}

	var index []domain.Position
	for i, year := range tr.Years {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tables, err := a.load(ctx, g, year, month)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s %s-%d: %w", g, tr.Label, month, err)
		}
		if i == 0 {
			index = tables[0].Index
			r.init(len(index))
		} else if !domain.IndexEqual(index, tables[0].Index) {
			return nil, fmt.Errorf("aggregate %s %s-%d: %w: year %d differs from year %d",
				g, tr.Label, month, domain.ErrIndexMismatch, year, tr.Years[0])
		}
		if err := r.add(tables); err != nil {
			return nil, fmt.Errorf("aggregate %s %s-%d: year %d: %w", g, tr.Label, month, year, err)
		}
		a.logger.Debug("year reduced", "group", g, "label", tr.Label, "month", month, "year", year)
	}

	s := domain.NewSummary(g, tr.Label, month, index, r.columns())
	r.fill(s.Values)
	a.logger.Info("summary aggregated",
		"group", g,
		"label", tr.Label,
		"month", month,
		"rows", len(index),
		"columns", len(s.Columns),
	)
	return s, nil
}

// load reads the tables of g for one year, checking vector components
// against each other.
func (a *Aggregator) load(ctx context.Context, g domain.Group, year, month int) ([]*domain.WideTable, error) {
	vars := g.Variables()
	tables := make([]*domain.WideTable, len(vars))
	for i, v := range vars {
		t, err := a.src.LoadWide(ctx, v, year, month)
		if err != nil {
			return nil, err
		}
		tables[i] = t
	}
	if len(tables) == 2 {
		if err := tables[0].AlignedWith(tables[1]); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// reducer accumulates one year at a time and writes the final columns.
type reducer interface {
	init(rows int)
	add(tables []*domain.WideTable) error
	columns() []string
	fill(values [][]float64)
}
