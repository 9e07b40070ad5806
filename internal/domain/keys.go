package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// TimeRange is a labelled set of years pooled in one aggregation.
type TimeRange struct {
	Label string
	Years []int
}

// NewTimeRange builds a range covering every year from first to last.
// A single year is labelled "2020", a span "2016-2020".
func NewTimeRange(first, last int) TimeRange {
	if last < first {
		first, last = last, first
	}
	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	label := strconv.Itoa(first)
	if last != first {
		label = fmt.Sprintf("%d-%d", first, last)
	}
	return TimeRange{Label: label, Years: years}
}

// ParseTimeRange parses a label produced by NewTimeRange.
func ParseTimeRange(label string) (TimeRange, error) {
	lo, hi, span := strings.Cut(label, "-")
	first, err := strconv.Atoi(lo)
	if err != nil {
		return TimeRange{}, fmt.Errorf("parse time range %q: %w", label, err)
	}
	last := first
	if span {
		if last, err = strconv.Atoi(hi); err != nil {
			return TimeRange{}, fmt.Errorf("parse time range %q: %w", label, err)
		}
		if last <= first {
			return TimeRange{}, fmt.Errorf("parse time range %q: years not increasing", label)
		}
	}
	return NewTimeRange(first, last), nil
}

// DefaultTimeRanges returns the latest single year and the span of all years.
func DefaultTimeRanges(years []int) []TimeRange {
	if len(years) == 0 {
		return nil
	}
	first, last := slices.Min(years), slices.Max(years)
	latest := NewTimeRange(last, last)
	if first == last {
		return []TimeRange{latest}
	}
	return []TimeRange{latest, NewTimeRange(first, last)}
}

// ObjectKey builds the storage key of the object for one cell.
func ObjectKey(version, label string, month int, c Cell) string {
	return fmt.Sprintf("%s/%s/%d/%d/%d/data", version, label, month, c.Lat, c.Lon)
}

// ObjectPrefix is the key prefix shared by all objects of a version.
func ObjectPrefix(version string) string {
	return version + "/"
}

// ParseObjectKey splits a storage key into its parts.
func ParseObjectKey(key string) (version, label string, month int, c Cell, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 6 || parts[5] != "data" {
		return "", "", 0, Cell{}, fmt.Errorf("parse object key %q: unexpected layout", key)
	}
	if month, err = strconv.Atoi(parts[2]); err != nil {
		return "", "", 0, Cell{}, fmt.Errorf("parse object key %q: %w", key, err)
	}
	if c.Lat, err = strconv.Atoi(parts[3]); err != nil {
		return "", "", 0, Cell{}, fmt.Errorf("parse object key %q: %w", key, err)
	}
	if c.Lon, err = strconv.Atoi(parts[4]); err != nil {
		return "", "", 0, Cell{}, fmt.Errorf("parse object key %q: %w", key, err)
	}
	return parts[0], parts[1], month, c, nil
}

// ExtractedFile is the file name of a wide table.
func ExtractedFile(v Variable, year, month int, ext string) string {
	return fmt.Sprintf("extracted_%s_%d-%d.%s", v, year, month, ext)
}

// AggregatedFile is the file name of a summary.
func AggregatedFile(g Group, label string, month int, ext string) string {
	return fmt.Sprintf("aggregated_%s_%s-%d.%s", g, label, month, ext)
}
