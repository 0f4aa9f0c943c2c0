// Package artifact owns the on-disk naming of region-scoped inputs and
// outputs and publishes files atomically.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Output suffixes. Other components locate artifacts by these names, so
// they are part of the on-disk contract.
const (
	SuffixBoundary           = "boundary"
	SuffixLowElevationMask   = "low_elevation_mask"
	SuffixLowElevationAreas  = "low_elevation_areas"
	SuffixHighElevationMask  = "high_elevation_mask"
	SuffixHighElevationAreas = "high_elevation_areas"
	SuffixBuffered           = "buffered"
	SuffixSuitability        = "suitability"
	SuffixSafeZones          = "safe_zones"
)

// File extensions.
const (
	ExtGeoJSON = "geojson"
	ExtTIFF    = "tif"
)

var separators = regexp.MustCompile(`[\s,]+`)

// NormalizeRegion turns a place name into a display key: trimmed, runs
// of whitespace and commas replaced by "_". Case is preserved.
func NormalizeRegion(name string) string {
	name = strings.Trim(name, " \t\r\n,")
	return separators.ReplaceAllString(name, "_")
}

// CacheKey is the case-insensitive identity of a region and the prefix of
// all of its artifact file names.
func CacheKey(name string) string {
	return strings.ToLower(NormalizeRegion(name))
}

// Layout resolves artifact paths under a data directory.
type Layout struct {
	Dir string
}

// NewLayout returns a Layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{Dir: dir}
}

// Path returns {dir}/{key}_{suffix}.{ext} where key is the region's
// CacheKey, so every artifact of a region is found whatever the case of
// the name it was queried by.
func (l Layout) Path(region, suffix, ext string) string {
	return filepath.Join(l.Dir, fmt.Sprintf("%s_%s.%s", CacheKey(region), suffix, ext))
}

// Boundary returns the cached boundary path for a region.
func (l Layout) Boundary(region string) string {
	return l.Path(region, SuffixBoundary, ExtGeoJSON)
}

// DEM returns the cached elevation raster path for a region.
func (l Layout) DEM(region string) string {
	return filepath.Join(l.Dir, fmt.Sprintf("srtm_%s.%s", CacheKey(region), ExtTIFF))
}

// Suitability returns the suitability raster path for a region.
func (l Layout) Suitability(region string) string {
	return l.Path(region, SuffixSuitability, ExtTIFF)
}

// TopLocations returns the ranking output path for a region and count.
func (l Layout) TopLocations(region string, n int) string {
	return l.Path(region, fmt.Sprintf("top_%d_locations", n), ExtGeoJSON)
}

// Resolve maps a bare artifact file name to its path under the data
// directory, rejecting anything that would escape it.
func (l Layout) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", eris.Errorf("artifact: invalid name %q", name)
	}
	return filepath.Join(l.Dir, name), nil
}

// Exists reports whether a non-empty file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// WriteAtomic creates path by letting write fill a temporary file in the
// same directory and renaming it into place once write succeeds. Readers
// never observe a partially written artifact.
func WriteAtomic(path string, write func(tmpPath string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create dir %s", dir)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "artifact: create temp file")
	}
	tmp := f.Name()
	_ = f.Close()

	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "artifact: publish %s", path)
	}
	return nil
}
