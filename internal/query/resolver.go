// Package query answers area lookups against published objects: it resolves a
// lat/lon box to the covering cells, fetches their objects and sums the
// counts over every selected sub-position.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooManyCells signals a box covering more cells than allowed.
	ErrTooManyCells = errors.New("too many cells")

	// ErrFetch signals a storage failure while reading objects.
	ErrFetch = errors.New("fetch failed")
)

// DefaultMaxCells is the cell ceiling applied when none is configured.
const DefaultMaxCells = 100

// ObjectReader returns decoded objects. An absent key yields
// domain.ErrObjectNotFound.
type ObjectReader interface {
	Object(ctx context.Context, key string) (domain.Object, error)
}

// Request selects one time range, one month and a lat/lon box. Longitudes
// may cross the antimeridian.
type Request struct {
	TimeRange string
	Month     int
	FromLat   float64
	ToLat     float64
	FromLon   float64
	ToLon     float64
}

// WaveCount is the occurrence count of one wave height class.
type WaveCount struct {
	Height int   `json:"height"`
	Count  int64 `json:"count"`
}

// Response holds the summed counts and the stat records of every selected
// sub-position.
type Response struct {
	WindRecords    []domain.VectorCount `json:"windRecords"`
	CurrentRecords []domain.VectorCount `json:"currentRecords"`
	WaveRecords    []WaveCount          `json:"waveRecords"`
	RainRecords    []map[string]float64 `json:"rainRecords"`
	TempRecords    []map[string]float64 `json:"tempRecords"`
	SeaTempRecords []map[string]float64 `json:"seatempRecords"`
}

// Config holds the resolver settings.
type Config struct {
	Version    string
	TimeRanges []string
	MaxCells   int
	Workers    int
}

// Resolver answers area queries.
type Resolver struct {
	objects ObjectReader
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a resolver reading through objects.
func NewResolver(objects ObjectReader, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Resolver{objects: objects, cfg: cfg, logger: logger, metrics: metrics}
}

// Resolve validates the request, fetches the covering objects and sums them.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Response, error) {
	start := domain.Now()
	resp, err := r.resolve(ctx, req)
	r.metrics.QueryRequests.WithLabelValues(outcome(err)).Inc()
	r.metrics.QueryDuration.Observe(domain.Since(start).Seconds())
	return resp, err
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*Response, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}

	sel := selectCells(req)
	if len(sel) > r.cfg.MaxCells {
		return nil, fmt.Errorf("%w: %d cells requested, limit is %d", ErrTooManyCells, len(sel), r.cfg.MaxCells)
	}

	objects, err := r.fetch(ctx, req, sel)
	if err != nil {
		return nil, err
	}

	acc := newAccumulator()
	for i, s := range sel {
		obj := objects[i]
		if obj == nil {
			continue
		}
		for _, p := range s.positions {
			if rec, ok := obj[p]; ok {
				acc.add(rec)
			}
		}
	}
	r.logger.Debug("query resolved",
		"label", req.TimeRange,
		"month", req.Month,
		"cells", len(sel),
	)
	return acc.response(), nil
}

func (r *Resolver) validate(req Request) error {
	for _, v := range []float64{req.FromLat, req.ToLat, req.FromLon, req.ToLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite", ErrInvalidInput)
		}
	}
	if req.FromLat < domain.WorldBounds.MinLat || req.ToLat > domain.WorldBounds.MaxLat {
		return fmt.Errorf("%w: latitude must lie in [%g, %g]", ErrInvalidInput, domain.WorldBounds.MinLat, domain.WorldBounds.MaxLat)
	}
	if req.FromLat > req.ToLat {
		return fmt.Errorf("%w: fromLat exceeds toLat", ErrInvalidInput)
	}
	if req.Month < 1 || req.Month > 12 {
		return fmt.Errorf("%w: month must lie in 1..12", ErrInvalidInput)
	}
	if !slices.Contains(r.cfg.TimeRanges, req.TimeRange) {
		return fmt.Errorf("%w: unknown time range %q", ErrInvalidInput, req.TimeRange)
	}
	return nil
}

func (r *Resolver) fetch(ctx context.Context, req Request, sel []selection) ([]domain.Object, error) {
	out := make([]domain.Object, len(sel))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	var (
		mu      sync.Mutex
		missing int
	)
	for i, s := range sel {
		key := domain.ObjectKey(r.cfg.Version, req.TimeRange, req.Month, s.cell)
		g.Go(func() error {
			obj, err := r.objects.Object(gctx, key)
			switch {
			case errors.Is(err, domain.ErrObjectNotFound):
				mu.Lock()
				missing++
				mu.Unlock()
				return nil
			case err != nil:
				r.logger.Error("fetch object", "key", key, "error", err)
				return fmt.Errorf("%w: %w", ErrFetch, err)
			}
			out[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if missing > 0 {
		r.logger.Debug("objects not published", "label", req.TimeRange, "month", req.Month, "missing", missing)
	}
	return out, nil
}

// CheckReadiness reports whether the object store is reachable.
func (r *Resolver) CheckReadiness(ctx context.Context) error {
	if rc, ok := r.objects.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrTooManyCells):
		return "too_many_cells"
	default:
		return "fetch_error"
	}
}

// accumulator sums counts densely over every class and collects stat records.
type accumulator struct {
	winds    []domain.VectorCount
	windIdx  map[[2]int]int
	currents []domain.VectorCount
	curIdx   map[[2]int]int
	waves    []WaveCount
	waveIdx  map[int]int
	rains    []map[string]float64
	temps    []map[string]float64
	seatemps []map[string]float64
}

func newAccumulator() *accumulator {
	a := &accumulator{
		rains:    []map[string]float64{},
		temps:    []map[string]float64{},
		seatemps: []map[string]float64{},
	}
	a.winds, a.windIdx = denseVectors(domain.WindSpeedTable)
	a.currents, a.curIdx = denseVectors(domain.CurrentSpeedTable)
	a.waveIdx = make(map[int]int, domain.WaveTable.Len())
	for _, h := range domain.WaveTable.Indexes() {
		a.waveIdx[h] = len(a.waves)
		a.waves = append(a.waves, WaveCount{Height: h})
	}
	return a
}

func denseVectors(speeds domain.BinTable) ([]domain.VectorCount, map[[2]int]int) {
	dirs := domain.CompassIndexes()
	out := make([]domain.VectorCount, 0, len(dirs)*speeds.Len())
	idx := make(map[[2]int]int, cap(out))
	for _, d := range dirs {
		for _, v := range speeds.Indexes() {
			idx[[2]int{d, v}] = len(out)
			out = append(out, domain.VectorCount{Dir: d, Vel: v})
		}
	}
	return out, idx
}

func (a *accumulator) add(rec domain.Record) {
	for _, w := range rec.Winds {
		if i, ok := a.windIdx[[2]int{w.Dir, w.Vel}]; ok {
			a.winds[i].Count += w.Count
		}
	}
	for _, c := range rec.Currents {
		if i, ok := a.curIdx[[2]int{c.Dir, c.Vel}]; ok {
			a.currents[i].Count += c.Count
		}
	}
	for _, w := range rec.Waves {
		if i, ok := a.waveIdx[w.Idx]; ok {
			a.waves[i].Count += w.Count
		}
	}
	if rec.Rains != nil {
		a.rains = append(a.rains, rec.Rains)
	}
	if rec.Temps != nil {
		a.temps = append(a.temps, rec.Temps)
	}
	if rec.SeaTemps != nil {
		a.seatemps = append(a.seatemps, rec.SeaTemps)
	}
}

func (a *accumulator) response() *Response {
	return &Response{
		WindRecords:    a.winds,
		CurrentRecords: a.currents,
		WaveRecords:    a.waves,
		RainRecords:    a.rains,
		TempRecords:    a.temps,
		SeaTempRecords: a.seatemps,
	}
}
