package domain

import (
	"fmt"
	"math"
)

// ColumnKey identifies one raw time step inside a month: the day of month
// and the message ordinal within its stream.
type ColumnKey struct {
	Day int `json:"day"`
	Seq int `json:"seq"`
}

func (k ColumnKey) String() string {
	return fmt.Sprintf("%d-%d", k.Day, k.Seq)
}

// WideTable holds one variable for one (year, month): a row per position and
// a column per raw time step. Values[c][r] is column c at Index[r]; missing
// observations are NaN.
type WideTable struct {
	Variable Variable
	Year     int
	Month    int
	Index    []Position
	Columns  []ColumnKey
	Values   [][]float64
}

// Validate checks the table's shape.
func (t *WideTable) Validate() error {
	if len(t.Values) != len(t.Columns) {
		return fmt.Errorf("wide table %s %d-%d: %d value columns for %d keys", t.Variable, t.Year, t.Month, len(t.Values), len(t.Columns))
	}
	for i, col := range t.Values {
		if len(col) != len(t.Index) {
			return fmt.Errorf("wide table %s %d-%d: column %s has %d rows, index has %d", t.Variable, t.Year, t.Month, t.Columns[i], len(col), len(t.Index))
		}
	}
	return nil
}

// DayGroups returns column positions grouped by day of month, in order of
// first appearance.
func (t *WideTable) DayGroups() [][]int {
	byDay := make(map[int]int)
	var groups [][]int
	for i, k := range t.Columns {
		g, ok := byDay[k.Day]
		if !ok {
			g = len(groups)
			byDay[k.Day] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// AlignedWith reports whether other shares this table's columns and index.
func (t *WideTable) AlignedWith(other *WideTable) error {
	if len(t.Columns) != len(other.Columns) {
		return fmt.Errorf("%w: %s has %d columns, %s has %d", ErrIndexMismatch, t.Variable, len(t.Columns), other.Variable, len(other.Columns))
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return fmt.Errorf("%w: column %d is %s in %s and %s in %s", ErrIndexMismatch, i, t.Columns[i], t.Variable, other.Columns[i], other.Variable)
		}
	}
	if !IndexEqual(t.Index, other.Index) {
		return fmt.Errorf("%w: %s and %s index differ", ErrIndexMismatch, t.Variable, other.Variable)
	}
	return nil
}

// Summary is the aggregated table for one (group, time range, month).
// Values[c][r] is column Columns[c] at Index[r].
type Summary struct {
	Group   Group
	Label   string
	Month   int
	Index   []Position
	Columns []string
	Values  [][]float64
}

// NewSummary allocates a summary with zeroed columns.
func NewSummary(g Group, label string, month int, index []Position, columns []string) *Summary {
	values := make([][]float64, len(columns))
	for i := range values {
		values[i] = make([]float64, len(index))
	}
	return &Summary{Group: g, Label: label, Month: month, Index: index, Columns: columns, Values: values}
}

// Validate checks the summary's shape.
func (s *Summary) Validate() error {
	if len(s.Values) != len(s.Columns) {
		return fmt.Errorf("summary %s %s-%d: %d value columns for %d names", s.Group, s.Label, s.Month, len(s.Values), len(s.Columns))
	}
	for i, col := range s.Values {
		if len(col) != len(s.Index) {
			return fmt.Errorf("summary %s %s-%d: column %q has %d rows, index has %d", s.Group, s.Label, s.Month, s.Columns[i], len(col), len(s.Index))
		}
	}
	return nil
}

// Row returns the values at row r keyed by column name.
func (s *Summary) Row(r int) map[string]float64 {
	out := make(map[string]float64, len(s.Columns))
	for c, name := range s.Columns {
		out[name] = s.Values[c][r]
	}
	return out
}

// RowLookup maps each position to its row.
func (s *Summary) RowLookup() map[Position]int {
	out := make(map[Position]int, len(s.Index))
	for r, p := range s.Index {
		out[p] = r
	}
	return out
}

// RowHasNaN reports whether any column is NaN at row r.
func (s *Summary) RowHasNaN(r int) bool {
	for c := range s.Values {
		if math.IsNaN(s.Values[c][r]) {
			return true
		}
	}
	return false
}

// RowSum sums all non-NaN columns at row r.
func (s *Summary) RowSum(r int) float64 {
	var sum float64
	for c := range s.Values {
		if v := s.Values[c][r]; !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}
