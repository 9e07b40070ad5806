package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange(t *testing.T) {
	tr := NewTimeRange(2016, 2020)
	assert.Equal(t, "2016-2020", tr.Label)
	assert.Equal(t, []int{2016, 2017, 2018, 2019, 2020}, tr.Years)
	assert.Equal(t, "2020", NewTimeRange(2020, 2020).Label)

	parsed, err := ParseTimeRange("2016-2020")
	require.NoError(t, err)
	assert.Equal(t, tr, parsed)

	for _, bad := range []string{"", "abc", "2020-2019", "2020-x"} {
		_, err := ParseTimeRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultTimeRanges(t *testing.T) {
	got := DefaultTimeRanges([]int{2018, 2016, 2020, 2017, 2019})
	require.Len(t, got, 2)
	assert.Equal(t, "2020", got[0].Label)
	assert.Equal(t, "2016-2020", got[1].Label)

	assert.Len(t, DefaultTimeRanges([]int{2020}), 1)
	assert.Nil(t, DefaultTimeRanges(nil))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("v1", "2016-2020", 7, Cell{Lat: -12, Lon: 44})
	assert.Equal(t, "v1/2016-2020/7/-12/44/data", key)

	version, label, month, cell, err := ParseObjectKey(key)
	require.NoError(t, err)
	assert.Equal(t, "v1", version)
	assert.Equal(t, "2016-2020", label)
	assert.Equal(t, 7, month)
	assert.Equal(t, Cell{Lat: -12, Lon: 44}, cell)

	_, _, _, _, err = ParseObjectKey("v1/2020/7/data")
	assert.Error(t, err)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "extracted_2m_temperature_2020-1.cz", ExtractedFile(Temperature, 2020, 1, "cz"))
	assert.Equal(t, "aggregated_wind_2016-2020-12.cz", AggregatedFile(GroupWind, "2016-2020", 12, "cz"))
}
