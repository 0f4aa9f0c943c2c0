package raster

import (
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/vector"
)

var registerOnce sync.Once

// GeoTIFF is a Store backed by GDAL. Only the first band is read.
type GeoTIFF struct {
	// MaxCells rejects rasters with more cells than this. Zero disables
	// the check.
	MaxCells int
}

// NewGeoTIFF registers the GDAL drivers and returns a store.
func NewGeoTIFF(maxCells int) *GeoTIFF {
	registerOnce.Do(godal.RegisterAll)
	return &GeoTIFF{MaxCells: maxCells}
}

// Exists reports whether a raster file is present at path.
func (s *GeoTIFF) Exists(path string) bool {
	return artifact.Exists(path)
}

// Read loads band 1 of the raster at path.
func (s *GeoTIFF) Read(path string) (*Grid, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = ds.Close() }()

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, eris.Errorf("raster: %s has no bands", path)
	}
	cells := st.SizeX * st.SizeY
	if s.MaxCells > 0 && cells > s.MaxCells {
		return nil, eris.Errorf("raster: %s has %d cells, limit is %d", path, cells, s.MaxCells)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "raster: %s has no geotransform", path)
	}

	band := ds.Bands()[0]
	g := &Grid{
		Rows:      st.SizeY,
		Cols:      st.SizeX,
		Values:    make([]float64, cells),
		Transform: Transform(gt),
		CRS:       vector.IdentifyCRS(ds.Projection()),
		DataType:  fromGDALType(band.Structure().DataType),
	}
	if nd, ok := band.NoData(); ok {
		g.NoData, g.HasNoData = nd, true
	}
	if err := band.Read(0, 0, g.Values, st.SizeX, st.SizeY); err != nil {
		return nil, eris.Wrapf(err, "raster: read %s", path)
	}
	return g, nil
}

// Write publishes g as a single-band GeoTIFF at path. The file appears
// only once it is complete.
func (s *GeoTIFF) Write(path string, g *Grid) error {
	if err := g.check(); err != nil {
		return err
	}
	var wkt string
	if g.CRS != "" {
		var err error
		if wkt, err = vector.CRSToWKT(g.CRS); err != nil {
			return err
		}
	}

	return artifact.WriteAtomic(path, func(tmp string) error {
		ds, err := godal.Create(godal.GTiff, tmp, 1, toGDALType(g.DataType), g.Cols, g.Rows,
			godal.CreationOption("COMPRESS=DEFLATE"))
		if err != nil {
			return eris.Wrapf(err, "raster: create %s", path)
		}

		if err := writeDataset(ds, g, wkt); err != nil {
			_ = ds.Close()
			return eris.Wrapf(err, "raster: write %s", path)
		}
		if err := ds.Close(); err != nil {
			return eris.Wrapf(err, "raster: flush %s", path)
		}
		return nil
	})
}

func writeDataset(ds *godal.Dataset, g *Grid, wkt string) error {
	if err := ds.SetGeoTransform([6]float64(g.Transform)); err != nil {
		return err
	}
	if wkt != "" {
		if err := ds.SetProjection(wkt); err != nil {
			return err
		}
	}
	band := ds.Bands()[0]
	if g.HasNoData {
		if err := band.SetNoData(g.NoData); err != nil {
			return err
		}
	}
	return band.Write(0, 0, g.Values, g.Cols, g.Rows)
}

func toGDALType(d DataType) godal.DataType {
	switch d {
	case Byte:
		return godal.Byte
	case Float32:
		return godal.Float32
	default:
		return godal.Float64
	}
}

func fromGDALType(d godal.DataType) DataType {
	switch d {
	case godal.Byte:
		return Byte
	case godal.Float32:
		return Float32
	default:
		return Float64
	}
}
