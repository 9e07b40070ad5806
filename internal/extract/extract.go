// Package extract turns a stream of gridded time-step messages into a
// position-indexed wide table for one variable and month.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned when the stream holds no message for the requested month.
var ErrNoData = errors.New("no messages for month")

// Message is one time step of one variable: co-indexed coordinate and value
// arrays. Seq is the ordinal of the message within its stream.
type Message struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Seq    int
	Lons   []float64
	Lats   []float64
	Values []float64
}

// Key is the column key the message maps to.
func (m Message) Key() domain.ColumnKey {
	return domain.ColumnKey{Day: m.Day, Seq: m.Seq}
}

// MessageReader yields messages in stream order and io.EOF at the end.
type MessageReader interface {
	Next(ctx context.Context) (Message, error)
}

// Stream is a MessageReader backed by a resource that must be released.
type Stream interface {
	MessageReader
	Close() error
}

// Extractor builds wide tables from message streams.
type Extractor struct {
	bounds  domain.Bounds
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Extractor that keeps positions inside bounds.
func New(bounds domain.Bounds, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{bounds: bounds, logger: logger, metrics: metrics}
}

type sample struct {
	row int
	v   float64
}

// Extract reads r once and returns the wide table of variable v for
// (year, month). Messages of earlier months are skipped; reading stops at
// the first message past the month.
func (e *Extractor) Extract(ctx context.Context, r MessageReader, v domain.Variable, year, month int) (*domain.WideTable, error) {
	rows := make(map[domain.Position]int)
	var positions []domain.Position
	var keys []domain.ColumnKey
	var columns [][]sample
	seen := make(map[domain.ColumnKey]bool)
	target := year*12 + month

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s %d-%d: %w", v, year, month, err)
		}
		e.metrics.MessagesRead.Inc()

		at := msg.Year*12 + msg.Month
		if at < target {
			continue
		}
		if at > target {
			break
		}
		if len(msg.Lons) != len(msg.Values) || len(msg.Lats) != len(msg.Values) {
			return nil, fmt.Errorf("extract %s %d-%d: message %d has %d lons, %d lats, %d values",
				v, year, month, msg.Seq, len(msg.Lons), len(msg.Lats), len(msg.Values))
		}

		key := msg.Key()
		if seen[key] {
			return nil, fmt.Errorf("extract %s %d-%d: %w: %s", v, year, month, domain.ErrDuplicateColumn, key)
		}
		seen[key] = true

		col := make([]sample, 0, len(msg.Values))
		for _, s := range e.average(msg) {
			row, ok := rows[s.pos]
			if !ok {
				row = len(positions)
				rows[s.pos] = row
				positions = append(positions, s.pos)
			}
			col = append(col, sample{row: row, v: s.v})
		}
		keys = append(keys, key)
		columns = append(columns, col)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("extract %s %d-%d: %w", v, year, month, ErrNoData)
	}

	t := densify(positions, keys, columns)
	t.Variable, t.Year, t.Month = v, year, month
	e.logger.Info("table extracted",
		"variable", v,
		"year", year,
		"month", month,
		"rows", len(t.Index),
		"columns", len(t.Columns),
	)
	return t, nil
}

type posValue struct {
	pos domain.Position
	v   float64
}

// average snaps the message coordinates, drops positions outside the bounds
// and averages duplicate samples. NaN samples are ignored unless every
// sample at a position is NaN.
func (e *Extractor) average(msg Message) []posValue {
	type acc struct {
		sum float64
		n   int
	}
	accs := make(map[domain.Position]*acc, len(msg.Values))
	var order []domain.Position
	for i, val := range msg.Values {
		p := domain.NewPosition(msg.Lons[i], msg.Lats[i])
		if !e.bounds.Contains(p) {
			continue
		}
		a, ok := accs[p]
		if !ok {
			a = &acc{}
			accs[p] = a
			order = append(order, p)
		}
		if !math.IsNaN(val) {
			a.sum += val
			a.n++
		}
	}
	out := make([]posValue, len(order))
	for i, p := range order {
		a := accs[p]
		v := math.NaN()
		if a.n > 0 {
			v = a.sum / float64(a.n)
		}
		out[i] = posValue{pos: p, v: v}
	}
	return out
}

// densify lays the sparse columns out over the sorted union of positions,
// padding absent observations with NaN.
func densify(positions []domain.Position, keys []domain.ColumnKey, columns [][]sample) *domain.WideTable {
	index := make([]domain.Position, len(positions))
	copy(index, positions)
	domain.SortPositions(index)
	sortedRow := make(map[domain.Position]int, len(index))
	for r, p := range index {
		sortedRow[p] = r
	}
	remap := make([]int, len(positions))
	for row, p := range positions {
		remap[row] = sortedRow[p]
	}

	values := make([][]float64, len(columns))
	for c, col := range columns {
		dense := make([]float64, len(index))
		for i := range dense {
			dense[i] = math.NaN()
		}
		for _, s := range col {
			dense[remap[s.row]] = s.v
		}
		values[c] = dense
	}
	return &domain.WideTable{Index: index, Columns: keys, Values: values}
}

// ExtractVector extracts both components of a vector group concurrently and
// checks that they share columns and index.
func (e *Extractor) ExtractVector(ctx context.Context, ru, rv MessageReader, g domain.Group, year, month int) (u, v *domain.WideTable, err error) {
	vars := g.Variables()
	if len(vars) != 2 {
		return nil, nil, fmt.Errorf("extract vector: %s is not a vector group", g)
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		u, err = e.Extract(egCtx, ru, vars[0], year, month)
		return err
	})
	eg.Go(func() error {
		var err error
		v, err = e.Extract(egCtx, rv, vars[1], year, month)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if err := u.AlignedWith(v); err != nil {
		return nil, nil, fmt.Errorf("extract %s %d-%d: %w", g, year, month, err)
	}
	return u, v, nil
}

// SliceReader replays a fixed list of messages.
type SliceReader struct {
	msgs []Message
	pos  int
}

// NewSliceReader returns a reader over msgs.
func NewSliceReader(msgs ...Message) *SliceReader {
	return &SliceReader{msgs: msgs}
}

// Next implements MessageReader.
func (r *SliceReader) Next(_ context.Context) (Message, error) {
	if r.pos >= len(r.msgs) {
		return Message{}, io.EOF
	}
	m := r.msgs[r.pos]
	r.pos++
	return m, nil
}

// Close implements Stream.
func (r *SliceReader) Close() error { return nil }
