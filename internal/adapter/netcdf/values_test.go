package netcdf

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attrs map[string]any

func (a attrs) Keys() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	return out
}

func (a attrs) Get(key string) (any, bool) {
	v, ok := a[key]
	return v, ok
}

func (a attrs) GetType(key string) (string, bool) {
	v, ok := a[key]
	return fmt.Sprintf("%T", v), ok
}

func (a attrs) GetGoType(key string) (string, bool) {
	v, ok := a[key]
	return fmt.Sprintf("%T", v), ok
}

func TestFlatten(t *testing.T) {
	got, err := flatten([][][]int16{{{1, 2}, {3, 4}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, got)

	got, err = flatten([][]float32{{0.5}, {1.5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, got)

	got, err = flatten(float64(7))
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, got)

	_, err = flatten([]string{"a"})
	assert.Error(t, err)
}

func TestPacking(t *testing.T) {
	p := readPacking(attrs{
		"scale_factor":  float64(0.5),
		"add_offset":    float64(270),
		"_FillValue":    int16(-32767),
		"missing_value": []int16{-32766},
	})
	values := []float64{0, 10, -32767, -32766, math.NaN()}
	p.unpack(values)
	assert.Equal(t, 270.0, values[0])
	assert.Equal(t, 275.0, values[1])
	for _, v := range values[2:] {
		assert.True(t, math.IsNaN(v))
	}

	plain := readPacking(nil)
	values = []float64{1.25}
	plain.unpack(values)
	assert.Equal(t, []float64{1.25}, values)
}

func TestDecodeTimes(t *testing.T) {
	got, err := decodeTimes([]float64{1052064, 1052067}, "hours since 1900-01-01 00:00:00.0")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.January, 8, 0, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, 3*time.Hour, got[1].Sub(got[0]))

	got, err = decodeTimes([]float64{1577836800}, "seconds since 1970-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), got[0])

	for _, bad := range []string{"", "hours", "fortnights since 1900-01-01", "hours since yesterday"} {
		_, err := decodeTimes(nil, bad)
		assert.Error(t, err, bad)
	}
}
