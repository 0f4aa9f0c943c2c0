package boundary

import (
	"context"
	"path/filepath"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/vector"
)

// ShapefileSource looks up {key}.shp, then {key}.zip, in a local
// directory, where key is the lower-cased region name.
type ShapefileSource struct {
	Dir string
}

// Name implements Source.
func (s *ShapefileSource) Name() string { return "shapefile" }

// Available implements Source.
func (s *ShapefileSource) Available() bool { return s.Dir != "" }

// Fetch implements Source.
func (s *ShapefileSource) Fetch(_ context.Context, name string) (*vector.FeatureCollection, error) {
	key := artifact.CacheKey(name)
	for _, ext := range []string{".shp", ".zip"} {
		path := filepath.Join(s.Dir, key+ext)
		if artifact.Exists(path) {
			return vector.ReadFile(path)
		}
	}
	return nil, ErrNotFound
}
