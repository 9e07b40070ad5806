package netcdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/reanalysis-climate-etl/internal/domain"
	"github.com/couchcryptid/reanalysis-climate-etl/internal/extract"
)

// Source opens the raw files of a data directory. ERA5 variables live in
// raw_{variable}_{year}.nc, ORAS5 variables in raw_{variable}_{year}.tar.gz.
type Source struct {
	dir string
}

// NewSource reads raw files from dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// RawPath returns the raw file of a variable and year.
func (s *Source) RawPath(v domain.Variable, year int) string {
	ext := "nc"
	if v.IsOcean() {
		ext = "tar.gz"
	}
	return filepath.Join(s.dir, fmt.Sprintf("raw_%s_%d.%s", v, year, ext))
}

// Open returns a message stream of variable v for (year, month).
func (s *Source) Open(_ context.Context, v domain.Variable, year, month int) (extract.Stream, error) {
	if !v.IsOcean() {
		r, err := OpenERA5(s.RawPath(v, year), v)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	tmp := filepath.Join(s.dir, fmt.Sprintf("%s_%d_%d.nc", v, year, month))
	if err := ExtractMember(s.RawPath(v, year), MonthToken(year, month), tmp); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	r, err := OpenORAS5(tmp, year, month)
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return &scratchStream{ORAS5Reader: r, path: tmp}, nil
}

// scratchStream removes its extracted member on Close.
type scratchStream struct {
	*ORAS5Reader
	path string
}

func (s *scratchStream) Close() error {
	err := s.ORAS5Reader.Close()
	if rerr := os.Remove(s.path); err == nil {
		err = rerr
	}
	return err
}
