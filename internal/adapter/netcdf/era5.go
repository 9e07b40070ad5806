// Package netcdf reads raw reanalysis grids: ERA5 single-level netCDF files
// and ORAS5 ocean tarballs.
package netcdf

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/extract"
)

var (
	timeNames = []string{"valid_time", "time"}
	latNames  = []string{"latitude", "lat"}
	lonNames  = []string{"longitude", "lon"}
)

// ERA5Reader yields one message per time step of a single-level variable
// stored as (time, latitude, longitude).
type ERA5Reader struct {
	nc    api.Group
	vg    api.VarGetter
	pack  packing
	times []time.Time
	lons  []float64 // per grid point
	lats  []float64 // per grid point
	pos   int
}

// OpenERA5 opens the file at path and prepares to read variable v.
func OpenERA5(path string, v domain.Variable) (*ERA5Reader, error) {
	name := v.ShortName()
	if name == "" {
		return nil, fmt.Errorf("open %s: %s is not an ERA5 variable", path, v)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := newERA5Reader(nc, name)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

func newERA5Reader(nc api.Group, name string) (*ERA5Reader, error) {
	times, err := readTimes(nc)
	if err != nil {
		return nil, err
	}
	lats, err := readAxis(nc, latNames)
	if err != nil {
		return nil, err
	}
	lons, err := readAxis(nc, lonNames)
	if err != nil {
		return nil, err
	}
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	if dims := vg.Dimensions(); len(dims) != 3 {
		return nil, fmt.Errorf("variable %s: dimensions %v, want (time, latitude, longitude)", name, dims)
	}

	r := &ERA5Reader{
		nc:    nc,
		vg:    vg,
		pack:  readPacking(vg.Attributes()),
		times: times,
		lons:  make([]float64, 0, len(lats)*len(lons)),
		lats:  make([]float64, 0, len(lats)*len(lons)),
	}
	for _, la := range lats {
		for _, lo := range lons {
			r.lats = append(r.lats, la)
			r.lons = append(r.lons, lo)
		}
	}
	return r, nil
}

func readTimes(nc api.Group) ([]time.Time, error) {
	for _, name := range timeNames {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		raw, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		offsets, err := flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		return decodeTimes(offsets, attrString(vg.Attributes(), "units"))
	}
	return nil, fmt.Errorf("no time variable among %v", timeNames)
}

func readAxis(nc api.Group, names []string) ([]float64, error) {
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			continue
		}
		raw, err := vg.Values()
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		return flatten(raw)
	}
	return nil, fmt.Errorf("no coordinate variable among %v", names)
}

// Next implements extract.MessageReader. Seq is the time step ordinal.
func (r *ERA5Reader) Next(ctx context.Context) (extract.Message, error) {
	if err := ctx.Err(); err != nil {
		return extract.Message{}, err
	}
	if r.pos >= len(r.times) {
		return extract.Message{}, io.EOF
	}
	raw, err := r.vg.GetSlice(int64(r.pos), int64(r.pos+1))
	if err != nil {
		return extract.Message{}, fmt.Errorf("read time step %d: %w", r.pos, err)
	}
	values, err := flatten(raw)
	if err != nil {
		return extract.Message{}, fmt.Errorf("read time step %d: %w", r.pos, err)
	}
	if len(values) != len(r.lons) {
		return extract.Message{}, fmt.Errorf("read time step %d: %d values for %d grid points", r.pos, len(values), len(r.lons))
	}
	r.pack.unpack(values)

	t := r.times[r.pos]
	msg := extract.Message{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Seq:    r.pos,
		Lons:   r.lons,
		Lats:   r.lats,
		Values: values,
	}
	r.pos++
	return msg, nil
}

// Close releases the file.
func (r *ERA5Reader) Close() error {
	r.nc.Close()
	return nil
}
