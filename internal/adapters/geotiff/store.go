// Package geotiff reads and writes GeoTIFF rasters through GDAL.
package geotiff

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/jobrunner/landsatlook/internal/domain"
)

var registerOnce sync.Once

// Store implements RasterStore on the local filesystem.
type Store struct{}

// NewStore creates a new GeoTIFF store and registers the GDAL drivers.
func NewStore() *Store {
	registerOnce.Do(godal.RegisterAll)
	return &Store{}
}

// Read opens the GeoTIFF at path and reads every band into memory.
func (s *Store) Read(path string) (*domain.Raster, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.RasterError{Op: "open", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}

	ds, err := godal.Open(path, godal.RasterOnly(), godal.Drivers("GTiff"))
	if err != nil {
		return nil, &domain.RasterError{Op: "open", Path: path, Kind: domain.ErrRasterDecode, Err: err}
	}
	defer func() { _ = ds.Close() }()

	p, err := profileOf(ds)
	if err != nil {
		return nil, &domain.RasterError{Op: "decode", Path: path, Kind: domain.ErrRasterDecode, Err: err}
	}
	// checked before allocating: a corrupt header can claim any size
	if err := p.Validate(); err != nil {
		return nil, &domain.RasterError{Op: "decode", Path: path, Kind: domain.ErrRasterDecode, Err: err}
	}

	r := domain.NewRaster(p)
	for i, band := range ds.Bands() {
		if err := band.Read(0, 0, r.Bands[i], p.Width, p.Height); err != nil {
			return nil, &domain.RasterError{Op: "read", Path: path, Kind: domain.ErrRasterDecode, Err: fmt.Errorf("band %d: %w", i+1, err)}
		}
	}
	return r, nil
}

// Write creates path, truncating any existing file, and writes every band.
// Nothing is left behind when the write fails.
func (s *Store) Write(path string, r *domain.Raster) error {
	if err := r.Validate(); err != nil {
		return &domain.RasterError{Op: "encode", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}
	p := r.Profile

	dt, opts, err := createOptions(p)
	if err != nil {
		return &domain.RasterError{Op: "encode", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}

	ds, err := godal.Create(godal.GTiff, path, p.Count, dt, p.Width, p.Height, godal.CreationOption(opts...))
	if err != nil {
		return &domain.RasterError{Op: "create", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}

	err = writeBands(ds, r)
	if cerr := ds.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return &domain.RasterError{Op: "write", Path: path, Kind: domain.ErrRasterIO, Err: err}
	}
	return nil
}

func writeBands(ds *godal.Dataset, r *domain.Raster) error {
	p := r.Profile

	if p.Transform != (domain.GeoTransform{}) {
		if err := ds.SetGeoTransform([6]float64(p.Transform)); err != nil {
			return fmt.Errorf("geotransform: %w", err)
		}
	}
	if err := setCRS(ds, p.CRS); err != nil {
		return fmt.Errorf("crs %s: %w", p.CRS, err)
	}

	for i, band := range ds.Bands() {
		if p.NoData != nil {
			if err := band.SetNoData(*p.NoData); err != nil {
				return fmt.Errorf("band %d nodata: %w", i+1, err)
			}
		}
		if err := band.Write(0, 0, r.Bands[i], p.Width, p.Height); err != nil {
			return fmt.Errorf("band %d: %w", i+1, err)
		}
	}
	return nil
}

func setCRS(ds *godal.Dataset, crs domain.CRS) error {
	switch {
	case crs.WKT != "":
		return ds.SetProjection(crs.WKT)
	case crs.EPSG != 0:
		sr, err := godal.NewSpatialRefFromEPSG(crs.EPSG)
		if err != nil {
			return err
		}
		defer sr.Close()
		return ds.SetSpatialRef(sr)
	default:
		return nil
	}
}

func profileOf(ds *godal.Dataset) (domain.Profile, error) {
	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return domain.Profile{}, errors.New("no raster bands")
	}

	dt, err := dataTypeOf(st.DataType, bands[0])
	if err != nil {
		return domain.Profile{}, err
	}

	p := domain.Profile{
		Width:       st.SizeX,
		Height:      st.SizeY,
		Count:       st.NBands,
		DataType:    dt,
		CRS:         crsOf(ds),
		Compression: compressionOf(ds),
	}

	// a missing geotransform leaves the raster ungeoreferenced
	if gt, err := ds.GeoTransform(); err == nil {
		p.Transform = domain.GeoTransform(gt)
	}

	if st.BlockSizeX != st.SizeX {
		p.Tiled = true
		p.BlockWidth, p.BlockHeight = st.BlockSizeX, st.BlockSizeY
	}

	if nd, ok := bands[0].NoData(); ok {
		p.NoData = &nd
	}
	return p, nil
}

func crsOf(ds *godal.Dataset) domain.CRS {
	wkt := ds.Projection()
	if wkt == "" {
		return domain.CRS{}
	}
	crs := domain.CRS{WKT: wkt}

	sr := ds.SpatialRef()
	if sr == nil {
		return crs
	}
	defer sr.Close()
	_ = sr.AutoIdentifyEPSG()
	if strings.EqualFold(sr.AuthorityName(""), "EPSG") {
		crs.EPSG = sr.AuthorityCode("")
	}
	return crs
}

func compressionOf(ds *godal.Dataset) domain.Compression {
	c, err := domain.ParseCompression(ds.Metadata("COMPRESSION", godal.Domain("IMAGE_STRUCTURE")))
	if err != nil {
		return domain.CompressionNone
	}
	return c
}
