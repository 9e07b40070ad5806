package netcdf

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// flatten converts a (possibly nested) slice of numbers as returned by the
// netCDF decoder into a row-major []float64.
func flatten(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []float32:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out, nil
	}
	var out []float64
	if err := appendFlat(&out, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

func appendFlat(out *[]float64, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := appendFlat(out, rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Float64:
		*out = append(*out, rv.Float())
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		*out = append(*out, float64(rv.Int()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		*out = append(*out, float64(rv.Uint()))
	default:
		return fmt.Errorf("unsupported netCDF value type %s", rv.Type())
	}
	return nil
}

// packing holds the CF attributes that turn stored values into physical ones.
type packing struct {
	scale  float64
	offset float64
	fills  []float64
}

func readPacking(attrs api.AttributeMap) packing {
	p := packing{scale: 1}
	if attrs == nil {
		return p
	}
	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		p.offset = v
	}
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(attrs, name); ok {
			p.fills = append(p.fills, v)
		}
	}
	return p
}

// unpack applies the packing in place; fill values become NaN.
func (p packing) unpack(values []float64) {
	for i, raw := range values {
		if p.isFill(raw) {
			values[i] = math.NaN()
			continue
		}
		values[i] = raw*p.scale + p.offset
	}
}

func (p packing) isFill(raw float64) bool {
	for _, f := range p.fills {
		if raw == f {
			return true
		}
	}
	return math.IsNaN(raw)
}

func attrFloat(attrs api.AttributeMap, name string) (float64, bool) {
	v, ok := attrs.Get(name)
	if !ok {
		return 0, false
	}
	fs, err := flatten(v)
	if err != nil || len(fs) == 0 {
		return 0, false
	}
	return fs[0], true
}

func attrString(attrs api.AttributeMap, name string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimeUnits parses CF units such as "hours since 1900-01-01 00:00:00.0".
func parseTimeUnits(units string) (step time.Duration, epoch time.Time, err error) {
	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q: missing \"since\"", units)
	}
	switch strings.ToLower(unit) {
	case "seconds", "second", "s":
		step = time.Second
	case "minutes", "minute":
		step = time.Minute
	case "hours", "hour", "h":
		step = time.Hour
	case "days", "day", "d":
		step = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unknown unit %q", units, unit)
	}
	since = strings.TrimSpace(since)
	for _, layout := range timeLayouts {
		if epoch, err = time.ParseInLocation(layout, since, time.UTC); err == nil {
			return step, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparsable epoch %q", units, since)
}

// decodeTimes converts raw time offsets into UTC timestamps.
func decodeTimes(raw []float64, units string) ([]time.Time, error) {
	step, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, r := range raw {
		out[i] = epoch.Add(time.Duration(r * float64(step)))
	}
	return out, nil
}
