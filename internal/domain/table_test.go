package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWideTable_DayGroups(t *testing.T) {
	tbl := &WideTable{
		Index:   []Position{{Lon: 0, Lat: 0}},
		Columns: []ColumnKey{{Day: 1, Seq: 0}, {Day: 1, Seq: 1}, {Day: 2, Seq: 2}, {Day: 1, Seq: 3}},
		Values:  [][]float64{{1}, {2}, {3}, {4}},
	}
	require.NoError(t, tbl.Validate())
	assert.Equal(t, [][]int{{0, 1, 3}, {2}}, tbl.DayGroups())
}

func TestWideTable_AlignedWith(t *testing.T) {
	u := &WideTable{Variable: WindU, Index: []Position{{Lon: 0, Lat: 0}}, Columns: []ColumnKey{{Day: 1}}}
	v := &WideTable{Variable: WindV, Index: []Position{{Lon: 0, Lat: 0}}, Columns: []ColumnKey{{Day: 1}}}
	require.NoError(t, u.AlignedWith(v))

	v.Index = []Position{{Lon: 0.25, Lat: 0}}
	assert.True(t, errors.Is(u.AlignedWith(v), ErrIndexMismatch))

	v.Index = u.Index
	v.Columns = []ColumnKey{{Day: 2}}
	assert.True(t, errors.Is(u.AlignedWith(v), ErrIndexMismatch))
}

func TestSummary_Rows(t *testing.T) {
	s := NewSummary(GroupSeaTemp, "2020", 1, []Position{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.25}}, []string{"a", "b"})
	require.NoError(t, s.Validate())
	s.Values[0][1] = math.NaN()
	s.Values[1][1] = 2
	s.Values[1][0] = 3

	assert.False(t, s.RowHasNaN(0))
	assert.True(t, s.RowHasNaN(1))
	assert.Equal(t, 2.0, s.RowSum(1))
	assert.Equal(t, map[string]float64{"a": 0, "b": 3}, s.Row(0))
	assert.Equal(t, 1, s.RowLookup()[Position{Lon: 0, Lat: 0.25}])
}
