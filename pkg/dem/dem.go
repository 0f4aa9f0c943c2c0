// Package dem downloads digital elevation rasters for region boundaries
// and caches them under the data directory.
package dem

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/vector"
)

// SourceCache labels resolutions served from disk.
const SourceCache = "cache"

// Bounds is a WGS84 bounding box.
type Bounds struct {
	West, South, East, North float64
}

// Provider downloads an elevation GeoTIFF covering bounds into dst.
type Provider interface {
	Name() string
	Download(ctx context.Context, b Bounds, dst string) error
}

// Resolution is where a region DEM lives on disk.
type Resolution struct {
	Path   string
	Cached bool
	Source string
}

// Fetcher caches one DEM per region. Concurrent first-time fetches of one
// region share a single download.
type Fetcher struct {
	layout   artifact.Layout
	provider Provider
	metrics  *monitoring.Metrics
	group    singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMetrics records fetches in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a Fetcher writing into layout.
func NewFetcher(layout artifact.Layout, provider Provider, opts ...Option) *Fetcher {
	f := &Fetcher{layout: layout, provider: provider}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns where the DEM of region is cached.
func (f *Fetcher) Path(region string) string {
	return f.layout.DEM(region)
}

// Fetch returns the cached DEM for region, downloading the extent of the
// boundary at boundaryPath on first use.
func (f *Fetcher) Fetch(ctx context.Context, region, boundaryPath string) (Resolution, error) {
	key := artifact.CacheKey(region)
	if key == "" {
		return Resolution{}, eris.New("dem: empty region name")
	}
	path := f.layout.DEM(region)
	if artifact.Exists(path) {
		f.metrics.ObserveFetch("dem", SourceCache)
		return Resolution{Path: path, Cached: true, Source: SourceCache}, nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		if artifact.Exists(path) {
			return Resolution{Path: path, Cached: true, Source: SourceCache}, nil
		}
		return f.download(context.WithoutCancel(ctx), region, boundaryPath, path)
	})
	var out singleflight.Result
	select {
	case <-ctx.Done():
		return Resolution{}, eris.Wrapf(ctx.Err(), "dem: fetch %s", region)
	case out = <-ch:
	}
	if out.Err != nil {
		return Resolution{}, out.Err
	}
	res := out.Val.(Resolution)
	f.metrics.ObserveFetch("dem", res.Source)
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, region, boundaryPath, path string) (Resolution, error) {
	b, err := BoundsOf(boundaryPath)
	if err != nil {
		return Resolution{}, err
	}

	err = artifact.WriteAtomic(path, func(tmp string) error {
		return f.provider.Download(ctx, b, tmp)
	})
	if err != nil {
		return Resolution{}, eris.Wrapf(err, "dem: fetch %s", region)
	}

	zap.L().Info("dem: downloaded",
		zap.String("region", region),
		zap.String("provider", f.provider.Name()),
		zap.String("path", path),
	)
	return Resolution{Path: path, Source: f.provider.Name()}, nil
}

// BoundsOf returns the WGS84 extent of the features in a vector file.
func BoundsOf(path string) (Bounds, error) {
	fc, err := vector.ReadFile(path)
	if err != nil {
		return Bounds{}, eris.Wrap(err, "dem: read boundary")
	}
	if c := vector.NormalizeCRS(fc.CRS); c != "" && c != vector.CRSWGS84 {
		if fc, err = vector.Reproject(fc, vector.CRSWGS84); err != nil {
			return Bounds{}, err
		}
	}
	bb := fc.Bounds()
	if bb == nil {
		return Bounds{}, eris.Errorf("dem: boundary %s has no coordinates", path)
	}
	return Bounds{West: bb.Min(0), South: bb.Min(1), East: bb.Max(0), North: bb.Max(1)}, nil
}
