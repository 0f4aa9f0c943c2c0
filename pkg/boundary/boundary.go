// Package boundary resolves place names to polygon boundaries and caches
// them as GeoJSON under the data directory.
package boundary

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/vector"
)

// ErrNotFound is returned by a Source that has no boundary for a name.
var ErrNotFound = errors.New("boundary: not found")

// SourceCache labels resolutions served from disk.
const SourceCache = "cache"

// Source is a single boundary backend.
type Source interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context, name string) (*vector.FeatureCollection, error)
}

// Resolution is where a region boundary lives on disk.
type Resolution struct {
	Path   string
	Cached bool
	Source string
}

// Resolver tries sources in order and caches the first polygonal match.
// Concurrent first-time resolutions of one region share a single fetch.
type Resolver struct {
	layout  artifact.Layout
	sources []Source
	metrics *monitoring.Metrics
	group   singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics records resolutions in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a Resolver writing into layout.
func NewResolver(layout artifact.Layout, sources []Source, opts ...Option) *Resolver {
	r := &Resolver{layout: layout, sources: sources}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns where the boundary of name is cached, whether or not it
// exists yet.
func (r *Resolver) Path(name string) string {
	return r.layout.Boundary(name)
}

// Resolve returns the cached boundary for name, fetching it on first use.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	key := artifact.CacheKey(name)
	if key == "" {
		return Resolution{}, eris.New("boundary: empty region name")
	}
	path := r.layout.Boundary(name)
	if artifact.Exists(path) {
		r.metrics.ObserveFetch("boundary", SourceCache)
		return Resolution{Path: path, Cached: true, Source: SourceCache}, nil
	}

	// The shared fetch outlives any one caller; each caller stops waiting
	// when its own context ends.
	ch := r.group.DoChan(key, func() (any, error) {
		if artifact.Exists(path) {
			return Resolution{Path: path, Cached: true, Source: SourceCache}, nil
		}
		return r.fetch(context.WithoutCancel(ctx), name, path)
	})
	var out singleflight.Result
	select {
	case <-ctx.Done():
		return Resolution{}, eris.Wrapf(ctx.Err(), "boundary: resolve %s", name)
	case out = <-ch:
	}
	if out.Err != nil {
		return Resolution{}, out.Err
	}
	res := out.Val.(Resolution)
	r.metrics.ObserveFetch("boundary", res.Source)
	return res, nil
}

func (r *Resolver) fetch(ctx context.Context, name, path string) (Resolution, error) {
	log := zap.L().With(zap.String("region", name))

	var lastErr error
	for _, src := range r.sources {
		if !src.Available() {
			continue
		}
		fc, err := src.Fetch(ctx, name)
		if errors.Is(err, ErrNotFound) {
			log.Debug("boundary: source has no match", zap.String("source", src.Name()))
			continue
		}
		if err != nil {
			log.Warn("boundary: source failed", zap.String("source", src.Name()), zap.Error(err))
			lastErr = err
			continue
		}

		polys := Polygonal(fc)
		if polys.Len() == 0 {
			log.Debug("boundary: source returned no polygons", zap.String("source", src.Name()))
			continue
		}
		if err := vector.WriteGeoJSON(path, polys); err != nil {
			return Resolution{}, eris.Wrapf(err, "boundary: save %s", name)
		}

		log.Info("boundary: resolved",
			zap.String("source", src.Name()),
			zap.Int("features", polys.Len()),
			zap.String("path", path),
		)
		return Resolution{Path: path, Source: src.Name()}, nil
	}

	if lastErr != nil {
		return Resolution{}, eris.Wrapf(lastErr, "boundary: resolve %q", name)
	}
	return Resolution{}, eris.Wrapf(ErrNotFound, "boundary: resolve %q", name)
}

// Polygonal keeps only the features with non-empty polygon or
// multipolygon geometry.
func Polygonal(fc *vector.FeatureCollection) *vector.FeatureCollection {
	out := &vector.FeatureCollection{CRS: fc.CRS}
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case *geom.Polygon, *geom.MultiPolygon:
			if len(g.FlatCoords()) > 0 {
				out.Features = append(out.Features, f)
			}
		}
	}
	return out
}
