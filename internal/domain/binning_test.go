package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinTable_Bin(t *testing.T) {
	t.Run("digitize semantics", func(t *testing.T) {
		table := MustBinTable("test", []Class{
			{Index: 1, Lower: 0}, {Index: 2, Lower: 1}, {Index: 3, Lower: 4},
			{Index: 4, Lower: 7}, {Index: 5, Lower: 11}, {Index: 6, Lower: 17},
			{Index: 7, Lower: 22}, {Index: 8, Lower: 28}, {Index: 9, Lower: 34},
		})
		got := table.Bin([]float64{0, 0.9, 1, 3.9, 4, 100})
		assert.Equal(t, []int{1, 1, 2, 2, 3, 9}, got)
	})

	t.Run("NaN maps to sentinel", func(t *testing.T) {
		assert.Equal(t, []int{NaNBin, 1}, WaveTable.Bin([]float64{math.NaN(), 0}))
	})

	t.Run("below first threshold maps to zero", func(t *testing.T) {
		assert.Equal(t, 0, RainTable.BinValue(-0.0001))
	})
}

func TestBinDirections(t *testing.T) {
	got := DirectionTable.Bin([]float64{0, 45, 90, 135, 180, 225, 270, 315, 360})
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 13, 15, 17}, got)

	got = DirectionTable.Bin([]float64{20, 65, 110, 155, 200, 245, 290, 335, 380})
	assert.Equal(t, []int{2, 4, 6, 8, 10, 12, 14, 16, 17}, got)

	t.Run("wrap sector folds onto north", func(t *testing.T) {
		assert.Equal(t, 17, DirectionTable.BinValue(350))
		assert.Equal(t, 1, BinDirection(350))
		assert.Equal(t, BinDirection(0), BinDirection(350))
		for _, b := range BinDirections([]float64{348.75, 355, 359.999, 360}) {
			assert.Equal(t, 1, b)
		}
	})

	t.Run("folded output never holds the helper sector", func(t *testing.T) {
		for deg := 0.0; deg < 360; deg += 0.5 {
			b := BinDirection(deg)
			assert.GreaterOrEqual(t, b, 1)
			assert.LessOrEqual(t, b, 16)
		}
	})

	assert.Len(t, CompassIndexes(), 16)
}

func TestWindSpeedTable(t *testing.T) {
	got := WindSpeedTable.Bin([]float64{0, 1, 4, 7, 11, 17, 22, 28, 34})
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	got = WindSpeedTable.Bin([]float64{41, 48, 56, 64, 100, 0.5, 1.5, 4.5, 7.5})
	assert.Equal(t, []int{10, 11, 12, 13, 13, 1, 2, 3, 4}, got)
	require.NotNil(t, WindSpeedTable.Classes()[12].Extra)
	assert.Equal(t, 12, *WindSpeedTable.Classes()[12].Extra)
}

func TestCurrentSpeedTable(t *testing.T) {
	got := CurrentSpeedTable.Bin([]float64{0, 0.4, 0.6, 1.0, 1.4, 1.6})
	assert.Equal(t, []int{1, 1, 2, 3, 3, 4}, got)
	got = CurrentSpeedTable.Bin([]float64{1.8, 2.0, 2.2, 2.6, 3.0, 3.5})
	assert.Equal(t, []int{4, 5, 5, 6, 7, 7}, got)
}

func TestWaveTable(t *testing.T) {
	got := WaveTable.Bin([]float64{0, 0.01, 0.1, 0.5, 1.25})
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	got = WaveTable.Bin([]float64{2.5, 4, 6, 9, 14})
	assert.Equal(t, []int{6, 7, 8, 9, 10}, got)
}

func TestNewBinTable_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		classes []Class
	}{
		{name: "empty"},
		{name: "not increasing", classes: []Class{{Index: 1, Lower: 1}, {Index: 2, Lower: 1}}},
		{name: "index gap", classes: []Class{{Index: 1, Lower: 0}, {Index: 3, Lower: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBinTable(tt.name, tt.classes)
			assert.Error(t, err)
		})
	}
}
