package domain

import (
	"fmt"
	"math"
	"sort"
)

// NaNBin is the bin assigned to missing values. Callers skip it when counting.
const NaNBin = -1

// directionWrap is the helper sector just below 360° that folds back to North.
const directionWrap = 17

// Class is one entry of a binning table.
type Class struct {
	Index int     `json:"idx"`
	Label string  `json:"name"`
	Lower float64 `json:"from"`            // inclusive lower bound
	Extra *int    `json:"extra,omitempty"` // Beaufort number or Douglas degree
}

// BinTable is an ordered, immutable list of classes with strictly increasing
// lower bounds. Class indexes run 1..N in threshold order.
type BinTable struct {
	name       string
	classes    []Class
	thresholds []float64
}

// NewBinTable validates classes and builds a table.
func NewBinTable(name string, classes []Class) (BinTable, error) {
	if len(classes) == 0 {
		return BinTable{}, fmt.Errorf("bin table %s: no classes", name)
	}
	cs := make([]Class, len(classes))
	copy(cs, classes)
	thresholds := make([]float64, len(cs))
	for i, c := range cs {
		if c.Index != i+1 {
			return BinTable{}, fmt.Errorf("bin table %s: class %q has index %d, want %d", name, c.Label, c.Index, i+1)
		}
		if i > 0 && !(c.Lower > cs[i-1].Lower) {
			return BinTable{}, fmt.Errorf("bin table %s: threshold %g not above %g", name, c.Lower, cs[i-1].Lower)
		}
		thresholds[i] = c.Lower
	}
	return BinTable{name: name, classes: cs, thresholds: thresholds}, nil
}

// MustBinTable is NewBinTable for static tables; it panics on invalid input.
func MustBinTable(name string, classes []Class) BinTable {
	t, err := NewBinTable(name, classes)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name.
func (t BinTable) Name() string { return t.name }

// Len returns the number of classes.
func (t BinTable) Len() int { return len(t.classes) }

// Classes returns a copy of the classes.
func (t BinTable) Classes() []Class {
	out := make([]Class, len(t.classes))
	copy(out, t.classes)
	return out
}

// Indexes returns the class indexes in order.
func (t BinTable) Indexes() []int {
	out := make([]int, len(t.classes))
	for i, c := range t.classes {
		out[i] = c.Index
	}
	return out
}

// BinValue returns the index of the highest class whose lower bound is <= v,
// 0 when v is below the first threshold and NaNBin for NaN.
func (t BinTable) BinValue(v float64) int {
	if math.IsNaN(v) {
		return NaNBin
	}
	// first threshold strictly greater than v
	return sort.Search(len(t.thresholds), func(i int) bool { return t.thresholds[i] > v })
}

// Bin applies BinValue to every value.
func (t BinTable) Bin(values []float64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = t.BinValue(v)
	}
	return out
}

// BinDirection bins a compass bearing and folds the wrap-around sector
// onto North.
func BinDirection(deg float64) int {
	b := DirectionTable.BinValue(deg)
	if b == directionWrap {
		return 1
	}
	return b
}

// BinDirections applies BinDirection to every value.
func BinDirections(degs []float64) []int {
	out := make([]int, len(degs))
	for i, d := range degs {
		out[i] = BinDirection(d)
	}
	return out
}

// CompassIndexes are the direction classes left after folding.
func CompassIndexes() []int {
	return DirectionTable.Indexes()[:directionWrap-1]
}

func extra(n int) *int { return &n }

// DirectionTable holds 16 compass sectors of 22.5° centred on their bearing,
// plus the helper sector 17 for bearings in [348.75, 360).
var DirectionTable = MustBinTable("direction", []Class{
	{Index: 1, Label: "N", Lower: 0},
	{Index: 2, Label: "NNE", Lower: 11.25},
	{Index: 3, Label: "NE", Lower: 33.75},
	{Index: 4, Label: "ENE", Lower: 56.25},
	{Index: 5, Label: "E", Lower: 78.75},
	{Index: 6, Label: "ESE", Lower: 101.25},
	{Index: 7, Label: "SE", Lower: 123.75},
	{Index: 8, Label: "SSE", Lower: 146.25},
	{Index: 9, Label: "S", Lower: 168.75},
	{Index: 10, Label: "SSW", Lower: 191.25},
	{Index: 11, Label: "SW", Lower: 213.75},
	{Index: 12, Label: "WSW", Lower: 236.25},
	{Index: 13, Label: "W", Lower: 258.75},
	{Index: 14, Label: "WNW", Lower: 281.25},
	{Index: 15, Label: "NW", Lower: 303.75},
	{Index: 16, Label: "NNW", Lower: 326.25},
	{Index: 17, Label: "N", Lower: 348.75},
})

// WindSpeedTable is the Beaufort scale in knots.
var WindSpeedTable = MustBinTable("wind_speed", []Class{
	{Index: 1, Label: "Calm", Lower: 0, Extra: extra(0)},
	{Index: 2, Label: "Light air", Lower: 1, Extra: extra(1)},
	{Index: 3, Label: "Light breeze", Lower: 4, Extra: extra(2)},
	{Index: 4, Label: "Gentle breeze", Lower: 7, Extra: extra(3)},
	{Index: 5, Label: "Moderate breeze", Lower: 11, Extra: extra(4)},
	{Index: 6, Label: "Fresh breeze", Lower: 17, Extra: extra(5)},
	{Index: 7, Label: "Strong breeze", Lower: 22, Extra: extra(6)},
	{Index: 8, Label: "Near gale", Lower: 28, Extra: extra(7)},
	{Index: 9, Label: "Gale", Lower: 34, Extra: extra(8)},
	{Index: 10, Label: "Strong gale", Lower: 41, Extra: extra(9)},
	{Index: 11, Label: "Storm", Lower: 48, Extra: extra(10)},
	{Index: 12, Label: "Violent storm", Lower: 56, Extra: extra(11)},
	{Index: 13, Label: "Hurricane force", Lower: 64, Extra: extra(12)},
})

// CurrentSpeedTable classes ocean currents in half-knot steps.
var CurrentSpeedTable = MustBinTable("current_speed", []Class{
	{Index: 1, Label: "< 0.5 kt", Lower: 0},
	{Index: 2, Label: "0.5 to 1 kt", Lower: 0.5},
	{Index: 3, Label: "1 to 1.5 kt", Lower: 1},
	{Index: 4, Label: "1.5 to 2 kt", Lower: 1.5},
	{Index: 5, Label: "2 to 2.5 kt", Lower: 2},
	{Index: 6, Label: "2.5 to 3 kt", Lower: 2.5},
	{Index: 7, Label: "> 3 kt", Lower: 3},
})

// RainTable classes precipitation in mm.
var RainTable = MustBinTable("rain", []Class{
	{Index: 1, Label: "Dry", Lower: 0},
	{Index: 2, Label: "Light rain", Lower: 0.1},
	{Index: 3, Label: "Moderate rain", Lower: 2.5},
	{Index: 4, Label: "Heavy rain", Lower: 7.6},
	{Index: 5, Label: "Violent rain", Lower: 50},
})

// WaveTable is the Douglas sea scale on significant wave height in metres.
var WaveTable = MustBinTable("wave_height", []Class{
	{Index: 1, Label: "Calm (glassy)", Lower: 0, Extra: extra(0)},
	{Index: 2, Label: "Calm (rippled)", Lower: 0.01, Extra: extra(1)},
	{Index: 3, Label: "Smooth", Lower: 0.1, Extra: extra(2)},
	{Index: 4, Label: "Slight", Lower: 0.5, Extra: extra(3)},
	{Index: 5, Label: "Moderate", Lower: 1.25, Extra: extra(4)},
	{Index: 6, Label: "Rough", Lower: 2.5, Extra: extra(5)},
	{Index: 7, Label: "Very rough", Lower: 4, Extra: extra(6)},
	{Index: 8, Label: "High", Lower: 6, Extra: extra(7)},
	{Index: 9, Label: "Very high", Lower: 9, Extra: extra(8)},
	{Index: 10, Label: "Phenomenal", Lower: 14, Extra: extra(9)},
})
