// Package columnar persists wide tables and summaries as zstd-compressed
// column files under a data directory.
package columnar

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/klauspost/compress/zstd"
)

// Ext is the file extension of column files.
const Ext = "cz"

const magic = "CZT1"

const (
	kindWide    = "wide"
	kindSummary = "summary"
)

// header precedes the column data. Columns are written in order: longitude,
// latitude, then one float64 column per entry of Names.
type header struct {
	Kind     string             `json:"kind"`
	Variable string             `json:"variable,omitempty"`
	Group    string             `json:"group,omitempty"`
	Label    string             `json:"label,omitempty"`
	Year     int                `json:"year,omitempty"`
	Month    int                `json:"month"`
	Rows     int                `json:"rows"`
	Names    []string           `json:"names,omitempty"`
	Keys     []domain.ColumnKey `json:"keys,omitempty"`
}

// Store reads and writes column files in one directory.
type Store struct {
	dir string
}

// New creates the data directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// WidePath returns the file path of a wide table.
func (s *Store) WidePath(v domain.Variable, year, month int) string {
	return filepath.Join(s.dir, domain.ExtractedFile(v, year, month, Ext))
}

// SummaryPath returns the file path of a summary.
func (s *Store) SummaryPath(g domain.Group, label string, month int) string {
	return filepath.Join(s.dir, domain.AggregatedFile(g, label, month, Ext))
}

// SaveWide writes a wide table, replacing any previous file.
func (s *Store) SaveWide(_ context.Context, t *domain.WideTable) error {
	if err := t.Validate(); err != nil {
		return err
	}
	h := header{
		Kind:     kindWide,
		Variable: string(t.Variable),
		Year:     t.Year,
		Month:    t.Month,
		Rows:     len(t.Index),
		Keys:     t.Columns,
	}
	return writeFile(s.WidePath(t.Variable, t.Year, t.Month), h, t.Index, t.Values)
}

// LoadWide reads a wide table. A missing file yields domain.ErrMissingTable.
func (s *Store) LoadWide(_ context.Context, v domain.Variable, year, month int) (*domain.WideTable, error) {
	path := s.WidePath(v, year, month)
	h, index, values, err := readFile(path, kindWide)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %d-%d", domain.ErrMissingTable, v, year, month)
	}
	if err != nil {
		return nil, err
	}
	if len(h.Keys) != len(values) {
		return nil, fmt.Errorf("read %s: %d keys for %d columns", path, len(h.Keys), len(values))
	}
	return &domain.WideTable{
		Variable: v,
		Year:     year,
		Month:    month,
		Index:    index,
		Columns:  h.Keys,
		Values:   values,
	}, nil
}

// SaveSummary writes a summary, replacing any previous file.
func (s *Store) SaveSummary(_ context.Context, sum *domain.Summary) error {
	if err := sum.Validate(); err != nil {
		return err
	}
	h := header{
		Kind:  kindSummary,
		Group: string(sum.Group),
		Label: sum.Label,
		Month: sum.Month,
		Rows:  len(sum.Index),
		Names: sum.Columns,
	}
	return writeFile(s.SummaryPath(sum.Group, sum.Label, sum.Month), h, sum.Index, sum.Values)
}

// LoadSummary reads a summary. A missing file yields
// domain.ErrMissingCategory.
func (s *Store) LoadSummary(_ context.Context, g domain.Group, label string, month int) (*domain.Summary, error) {
	path := s.SummaryPath(g, label, month)
	h, index, values, err := readFile(path, kindSummary)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %s-%d", domain.ErrMissingCategory, g, label, month)
	}
	if err != nil {
		return nil, err
	}
	if len(h.Names) != len(values) {
		return nil, fmt.Errorf("read %s: %d names for %d columns", path, len(h.Names), len(values))
	}
	return &domain.Summary{
		Group:   g,
		Label:   label,
		Month:   month,
		Index:   index,
		Columns: h.Names,
		Values:  values,
	}, nil
}

func writeFile(path string, h header, index []domain.Position, values [][]float64) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	enc, err := zstd.NewWriter(bw)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = encode(enc, h, index, values); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func encode(w io.Writer, h header, index []domain.Position, values [][]float64) error {
	meta, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(meta))); err != nil {
		return err
	}
	if _, err := w.Write(meta); err != nil {
		return err
	}
	lons := make([]float64, len(index))
	lats := make([]float64, len(index))
	for i, p := range index {
		lons[i], lats[i] = p.Lon, p.Lat
	}
	for _, col := range append([][]float64{lons, lats}, values...) {
		if err := binary.Write(w, binary.LittleEndian, col); err != nil {
			return err
		}
	}
	return nil
}

func readFile(path, kind string) (header, []domain.Position, [][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return header{}, nil, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return header{}, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer dec.Close()

	h, index, values, err := decode(dec)
	if err != nil {
		return header{}, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if h.Kind != kind {
		return header{}, nil, nil, fmt.Errorf("read %s: holds a %s table, want %s", path, h.Kind, kind)
	}
	return h, index, values, nil
}

func decode(r io.Reader) (header, []domain.Position, [][]float64, error) {
	var h header
	prefix := make([]byte, len(magic))
	if _, err := io.ReadFull(r, prefix); err != nil {
		return h, nil, nil, err
	}
	if string(prefix) != magic {
		return h, nil, nil, fmt.Errorf("bad magic %q", prefix)
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return h, nil, nil, err
	}
	meta := make([]byte, n)
	if _, err := io.ReadFull(r, meta); err != nil {
		return h, nil, nil, err
	}
	if err := json.Unmarshal(meta, &h); err != nil {
		return h, nil, nil, fmt.Errorf("header: %w", err)
	}

	ncols := len(h.Keys)
	if h.Kind == kindSummary {
		ncols = len(h.Names)
	}
	readCol := func() ([]float64, error) {
		col := make([]float64, h.Rows)
		err := binary.Read(r, binary.LittleEndian, col)
		return col, err
	}
	lons, err := readCol()
	if err != nil {
		return h, nil, nil, err
	}
	lats, err := readCol()
	if err != nil {
		return h, nil, nil, err
	}
	index := make([]domain.Position, h.Rows)
	for i := range index {
		index[i] = domain.Position{Lon: lons[i], Lat: lats[i]}
	}
	values := make([][]float64, ncols)
	for c := range values {
		if values[c], err = readCol(); err != nil {
			return h, nil, nil, err
		}
	}
	return h, index, values, nil
}
