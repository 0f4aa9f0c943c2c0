package vector

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadFile loads a feature collection from a GeoJSON (.geojson, .json),
// ESRI Shapefile (.shp) or zipped shapefile (.zip) path.
func ReadFile(path string) (*FeatureCollection, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: read %s", path)
		}
		fc, err := ParseGeoJSON(data)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: parse %s", path)
		}
		return fc, nil
	case ".shp":
		return ReadShapefile(path)
	case ".zip":
		return ReadZippedShapefile(path)
	default:
		return nil, eris.Errorf("vector: unsupported vector format %q", filepath.Ext(path))
	}
}
