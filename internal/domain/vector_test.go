package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirection(t *testing.T) {
	t.Run("east and west winds differ by 180", func(t *testing.T) {
		fromWest := Direction(1, 0, true)
		fromEast := Direction(-1, 0, true)
		assert.InDelta(t, 180, math.Abs(fromWest-fromEast), 1e-9)
		assert.InDelta(t, 270, fromWest, 1e-9)
		assert.InDelta(t, 90, fromEast, 1e-9)
	})

	t.Run("winds report origin, currents report heading", func(t *testing.T) {
		// northward flow
		assert.InDelta(t, 0, angleBetween(180, Direction(0, 1, true)), 0.1)
		assert.InDelta(t, 0, angleBetween(0, Direction(0, 1, false)), 0.1)
		// southward flow
		assert.InDelta(t, 0, angleBetween(0, Direction(0, -1, true)), 0.1)
		assert.InDelta(t, 0, angleBetween(180, Direction(0, -1, false)), 0.1)
	})

	t.Run("zero u stays finite", func(t *testing.T) {
		d := Direction(0, 5, true)
		assert.False(t, math.IsNaN(d) || math.IsInf(d, 0))
	})

	t.Run("range", func(t *testing.T) {
		for _, uv := range [][2]float64{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}, {3, -0.2}} {
			for _, wind := range []bool{true, false} {
				d := Direction(uv[0], uv[1], wind)
				assert.GreaterOrEqual(t, d, 0.0)
				assert.Less(t, d, 360.0)
			}
		}
	})

	t.Run("NaN propagates", func(t *testing.T) {
		assert.True(t, math.IsNaN(Direction(math.NaN(), 1, true)))
		assert.True(t, math.IsNaN(Velocity(1, math.NaN())))
	})
}

func TestVelocity(t *testing.T) {
	assert.Equal(t, 5*KnotsPerMeterPerSecond, Velocity(3, 4))
	assert.Equal(t, []float64{0, 5 * KnotsPerMeterPerSecond}, Velocities([]float64{0, -3}, []float64{0, -4}))
}

func angleBetween(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	return math.Min(d, 360-d)
}
