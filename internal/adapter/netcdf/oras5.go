package netcdf

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/extract"
	"github.com/klauspost/compress/gzip"
)

// SurfaceDepth is the depth in metres above which ocean layers are read.
const SurfaceDepth = 5.0

// ErrMemberNotFound is returned when an archive lacks the requested month.
var ErrMemberNotFound = errors.New("archive member not found")

// oceanVelocityNames are the rotated current components in ORAS5 files.
var oceanVelocityNames = []string{"vozocrte", "vomecrtn"}

// MonthToken is the part of an ORAS5 member name identifying its month.
func MonthToken(year, month int) string {
	return fmt.Sprintf("_3D_%04d%02d_", year, month)
}

// ExtractMember copies the first .nc member of the gzipped tar archive whose
// name contains token to dest.
func ExtractMember(archive, token, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", archive, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %q in %s", ErrMemberNotFound, token, filepath.Base(archive))
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", archive, err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, ".nc") || !strings.Contains(hdr.Name, token) {
			continue
		}
		return copyTo(dest, tr)
	}
}

func copyTo(dest string, r io.Reader) (err error) {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
	}()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

// ORAS5Reader yields one message per surface layer of a monthly ocean file.
// Every message is dated on the first of the month; Seq is the layer index.
type ORAS5Reader struct {
	nc     api.Group
	vg     api.VarGetter
	pack   packing
	year   int
	month  int
	layers []int
	lons   []float64
	lats   []float64
	step   []float64 // first time step, all depths
	pos    int
}

// OpenORAS5 opens a monthly ORAS5 velocity file.
func OpenORAS5(path string, year, month int) (*ORAS5Reader, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := newORAS5Reader(nc, year, month)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

func newORAS5Reader(nc api.Group, year, month int) (*ORAS5Reader, error) {
	var vg api.VarGetter
	for _, name := range oceanVelocityNames {
		if g, err := nc.GetVarGetter(name); err == nil {
			vg = g
			break
		}
	}
	if vg == nil {
		return nil, fmt.Errorf("no velocity variable among %v", oceanVelocityNames)
	}
	if dims := vg.Dimensions(); len(dims) != 4 {
		return nil, fmt.Errorf("velocity dimensions %v, want (time, depth, y, x)", dims)
	}

	depths, err := readAxis(nc, []string{"deptht"})
	if err != nil {
		return nil, err
	}
	lats, err := readAxis(nc, []string{"nav_lat"})
	if err != nil {
		return nil, err
	}
	lons, err := readAxis(nc, []string{"nav_lon"})
	if err != nil {
		return nil, err
	}
	if len(lats) != len(lons) {
		return nil, fmt.Errorf("nav_lat has %d points, nav_lon %d", len(lats), len(lons))
	}

	r := &ORAS5Reader{
		nc:    nc,
		vg:    vg,
		pack:  readPacking(vg.Attributes()),
		year:  year,
		month: month,
		lons:  lons,
		lats:  lats,
	}
	for i, d := range depths {
		if d < SurfaceDepth {
			r.layers = append(r.layers, i)
		}
	}
	return r, nil
}

// Next implements extract.MessageReader.
func (r *ORAS5Reader) Next(ctx context.Context) (extract.Message, error) {
	if err := ctx.Err(); err != nil {
		return extract.Message{}, err
	}
	if r.pos >= len(r.layers) {
		return extract.Message{}, io.EOF
	}
	layer := r.layers[r.pos]
	values, err := r.readLayer(layer)
	if err != nil {
		return extract.Message{}, err
	}
	r.pack.unpack(values)
	r.pos++
	return extract.Message{
		Year:   r.year,
		Month:  r.month,
		Day:    1,
		Seq:    layer,
		Lons:   r.lons,
		Lats:   r.lats,
		Values: values,
	}, nil
}

// readLayer returns the first time step's values at one depth layer.
func (r *ORAS5Reader) readLayer(layer int) ([]float64, error) {
	if r.step == nil {
		raw, err := r.vg.GetSlice(0, 1)
		if err != nil {
			return nil, fmt.Errorf("read layer %d: %w", layer, err)
		}
		if r.step, err = flatten(raw); err != nil {
			return nil, fmt.Errorf("read layer %d: %w", layer, err)
		}
	}
	n := len(r.lons)
	if (layer+1)*n > len(r.step) {
		return nil, fmt.Errorf("read layer %d: %d values for %d grid points", layer, len(r.step), n)
	}
	return r.step[layer*n : (layer+1)*n], nil
}

// Close releases the file.
func (r *ORAS5Reader) Close() error {
	r.nc.Close()
	return nil
}
