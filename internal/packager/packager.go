// Package packager turns the summaries of one (time range, month) into one
// storage object per whole-degree cell and publishes them through a gateway.
package packager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Gateway is the external key-value store objects are published to.
type Gateway interface {
	// Get returns domain.ErrObjectNotFound for an absent key.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// SummarySource loads aggregated summaries.
type SummarySource interface {
	LoadSummary(ctx context.Context, g domain.Group, label string, month int) (*domain.Summary, error)
}

// Config holds the packaging settings.
type Config struct {
	Version string
	Bounds  domain.Bounds
	Workers int
}

// Options narrow one packaging run.
type Options struct {
	// OnlyKeys restricts the run to these object keys when non-empty.
	OnlyKeys []string
	// Merge reads each existing object and overlays the packaged categories
	// instead of replacing it.
	Merge bool
	// Groups limits the categories loaded. Empty means all of them; a
	// subset is only accepted together with Merge.
	Groups []domain.Group
}

// Report summarizes one packaging run.
type Report struct {
	Label   string   `json:"label"`
	Month   int      `json:"month"`
	Written int      `json:"written"`
	Failed  []string `json:"failed,omitempty"`
}

// Packager builds and writes storage objects.
type Packager struct {
	gw      Gateway
	src     SummarySource
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Packager. A non-positive worker count means 1.
func New(gw Gateway, src SummarySource, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Packager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Packager{gw: gw, src: src, cfg: cfg, logger: logger, metrics: metrics}
}

// Package loads the summaries of (label, month), builds the object of every
// cell in the configured bounds and writes them on a bounded pool. Write
// failures are collected in the report, not retried. A missing summary
// fails the run with domain.ErrMissingCategory before anything is written.
func (p *Packager) Package(ctx context.Context, label string, month int, opts Options) (Report, error) {
	groups := opts.Groups
	if len(groups) == 0 {
		groups = domain.AllGroups
	} else if !opts.Merge && len(groups) < len(domain.AllGroups) {
		return Report{}, fmt.Errorf("package %s-%d: a category subset requires merge", label, month)
	}

	cats := make([]*category, 0, len(groups))
	for _, g := range groups {
		s, err := p.src.LoadSummary(ctx, g, label, month)
		if err != nil {
			return Report{}, fmt.Errorf("package %s-%d: %w", label, month, err)
		}
		c, err := newCategory(s)
		if err != nil {
			return Report{}, fmt.Errorf("package %s-%d: %w", label, month, err)
		}
		cats = append(cats, c)
	}

	var only map[string]bool
	if len(opts.OnlyKeys) > 0 {
		only = make(map[string]bool, len(opts.OnlyKeys))
		for _, k := range opts.OnlyKeys {
			only[k] = true
		}
	}

	report := Report{Label: label, Month: month}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Workers)
	for _, cell := range p.cfg.Bounds.Cells() {
		key := domain.ObjectKey(p.cfg.Version, label, month, cell)
		if only != nil && !only[key] {
			continue
		}
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			err := p.write(egCtx, key, buildObject(cell, cats), opts.Merge)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("object write failed", "key", key, "error", err)
				p.metrics.ObjectsFailed.Inc()
				report.Failed = append(report.Failed, key)
				return nil
			}
			p.metrics.ObjectsWritten.Inc()
			report.Written++
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	slices.Sort(report.Failed)
	p.logger.Info("objects packaged",
		"label", label,
		"month", month,
		"written", report.Written,
		"failed", len(report.Failed),
	)
	return report, nil
}

func (p *Packager) write(ctx context.Context, key string, obj domain.Object, merge bool) error {
	if merge {
		data, err := p.gw.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrObjectNotFound):
		case err != nil:
			return err
		default:
			existing, err := domain.DecodeObject(data)
			if err != nil {
				return err
			}
			for pos, rec := range obj {
				existing[pos] = existing[pos].Merge(rec)
			}
			obj = existing
		}
	}
	data, err := domain.EncodeObject(obj)
	if err != nil {
		return err
	}
	return p.gw.Put(ctx, key, data)
}

// buildObject assembles the record of every sub-position of a cell from the
// given categories.
func buildObject(cell domain.Cell, cats []*category) domain.Object {
	obj := make(domain.Object, 16)
	for _, pos := range cell.SubPositions() {
		var rec domain.Record
		for _, c := range cats {
			c.apply(&rec, pos)
		}
		obj[pos] = rec
	}
	return obj
}

// fieldNames maps summary statistic columns to object field names.
var fieldNames = map[string]string{
	"high_mean":  "highMean",
	"high_std":   "highStd",
	"low_mean":   "lowMean",
	"low_std":    "lowStd",
	"daily_mean": "dailyMean",
	"daily_std":  "dailyStd",
}

// FieldName returns the object field name of a summary column.
func FieldName(column string) string {
	if f, ok := fieldNames[column]; ok {
		return f
	}
	return column
}

// category is one summary prepared for object assembly.
type category struct {
	s       *domain.Summary
	rows    map[domain.Position]int
	fields  []string
	vectors []domain.VectorCount // Dir, Vel per column for vector groups
	classes []int                // class index per column for counted groups
}

func newCategory(s *domain.Summary) (*category, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c := &category{s: s, rows: s.RowLookup()}
	switch s.Group {
	case domain.GroupWind, domain.GroupCurrent:
		c.vectors = make([]domain.VectorCount, len(s.Columns))
		for i, name := range s.Columns {
			d, v, err := parseVectorColumn(name)
			if err != nil {
				return nil, fmt.Errorf("%s summary: %w", s.Group, err)
			}
			c.vectors[i] = domain.VectorCount{Dir: d, Vel: v}
		}
	case domain.GroupWave:
		c.classes = make([]int, len(s.Columns))
		for i, name := range s.Columns {
			idx, err := strconv.Atoi(name)
			if err != nil {
				return nil, fmt.Errorf("%s summary: column %q: %w", s.Group, name, err)
			}
			c.classes[i] = idx
		}
	default:
		c.fields = make([]string, len(s.Columns))
		for i, name := range s.Columns {
			c.fields[i] = FieldName(name)
		}
	}
	return c, nil
}

func parseVectorColumn(name string) (dir, vel int, err error) {
	ds, vs, ok := strings.Cut(name, "|")
	if !ok {
		return 0, 0, fmt.Errorf("column %q is not a direction|velocity pair", name)
	}
	if dir, err = strconv.Atoi(ds); err != nil {
		return 0, 0, fmt.Errorf("column %q: %w", name, err)
	}
	if vel, err = strconv.Atoi(vs); err != nil {
		return 0, 0, fmt.Errorf("column %q: %w", name, err)
	}
	return dir, vel, nil
}

// apply adds the category's data at pos to rec following the inclusion
// rules: stats always when present (sea temperature only without NaN),
// wave and current counts only when their total is positive.
func (c *category) apply(rec *domain.Record, pos domain.Position) {
	row, ok := c.rows[pos]
	if !ok {
		return
	}
	switch c.s.Group {
	case domain.GroupRain:
		rec.Rains = c.stats(row)
	case domain.GroupTemp:
		rec.Temps = c.stats(row)
	case domain.GroupSeaTemp:
		if !c.s.RowHasNaN(row) {
			rec.SeaTemps = c.stats(row)
		}
	case domain.GroupWind:
		rec.Winds = c.vectorCounts(row)
	case domain.GroupCurrent:
		if c.s.RowSum(row) > 0 {
			rec.Currents = c.vectorCounts(row)
		}
	case domain.GroupWave:
		if c.s.RowSum(row) > 0 {
			rec.Waves = c.classCounts(row)
		}
	}
}

// stats returns the statistic fields at row, omitting NaN values.
func (c *category) stats(row int) map[string]float64 {
	out := make(map[string]float64, len(c.fields))
	for i, f := range c.fields {
		if v := c.s.Values[i][row]; !math.IsNaN(v) {
			out[f] = v
		}
	}
	return out
}

func (c *category) vectorCounts(row int) []domain.VectorCount {
	out := make([]domain.VectorCount, len(c.vectors))
	for i, vc := range c.vectors {
		vc.Count = count(c.s.Values[i][row])
		out[i] = vc
	}
	return out
}

func (c *category) classCounts(row int) []domain.ClassCount {
	out := make([]domain.ClassCount, len(c.classes))
	for i, idx := range c.classes {
		out[i] = domain.ClassCount{Idx: idx, Count: count(c.s.Values[i][row])}
	}
	return out
}

func count(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(v))
}
