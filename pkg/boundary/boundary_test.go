package boundary

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/resilience"
	"github.com/sells-group/geoquery/internal/vector"
)

const polygonGeoJSON = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"display_name": "Gujarat, India"},
		"geometry": {"type": "Polygon", "coordinates": [[[68,20],[75,20],[75,25],[68,25],[68,20]]]}
	}]
}`

type fakeSource struct {
	name  string
	fc    *vector.FeatureCollection
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeSource) Name() string    { return f.name }
func (f *fakeSource) Available() bool { return true }

func (f *fakeSource) Fetch(context.Context, string) (*vector.FeatureCollection, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.fc, f.err
}

func square() *vector.FeatureCollection {
	return &vector.FeatureCollection{Features: []vector.Feature{{
		Geometry: geom.NewPolygonFlat(geom.XY, []float64{68, 20, 75, 20, 75, 25, 68, 25, 68, 20}, []int{10}),
	}}}
}

func TestResolveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{name: "fake", fc: square()}
	r := NewResolver(artifact.NewLayout(dir), []Source{src})

	first, err := r.Resolve(context.Background(), "Gujarat")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "fake", first.Source)
	assert.Equal(t, filepath.Join(dir, "gujarat_boundary.geojson"), first.Path)

	second, err := r.Resolve(context.Background(), " gujarat,")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveConcurrentFirstUseFetchesOnce(t *testing.T) {
	src := &fakeSource{name: "fake", fc: square(), delay: 20 * time.Millisecond}
	r := NewResolver(artifact.NewLayout(t.TempDir()), []Source{src})

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), "Tamil Nadu")
			assert.NoError(t, err)
			paths[i] = res.Path
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}
	fc, err := vector.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
}

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedSource) Name() string    { return "gated" }
func (g *gatedSource) Available() bool { return true }

func (g *gatedSource) Fetch(ctx context.Context, _ string) (*vector.FeatureCollection, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return square(), nil
}

func TestResolveSurvivesCancelledCaller(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	r := NewResolver(artifact.NewLayout(t.TempDir()), []Source{src})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "Kerala")
		firstErr <- err
	}()
	<-src.started

	type outcome struct {
		res Resolution
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := r.Resolve(context.Background(), "kerala")
		second <- outcome{res, err}
	}()

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(src.release)
	got := <-second
	require.NoError(t, got.err)
	assert.True(t, artifact.Exists(got.res.Path))
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestResolveCascade(t *testing.T) {
	missing := &fakeSource{name: "first", err: ErrNotFound}
	broken := &fakeSource{name: "second", err: errors.New("boom")}
	points := &fakeSource{name: "third", fc: &vector.FeatureCollection{Features: []vector.Feature{
		{Geometry: geom.NewPointFlat(geom.XY, []float64{72, 23})},
	}}}
	good := &fakeSource{name: "fourth", fc: square()}

	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg)
	r := NewResolver(artifact.NewLayout(t.TempDir()), []Source{missing, broken, points, good}, WithMetrics(m))

	res, err := r.Resolve(context.Background(), "Kerala")
	require.NoError(t, err)
	assert.Equal(t, "fourth", res.Source)
	for _, s := range []*fakeSource{missing, broken, points, good} {
		assert.Equal(t, int32(1), s.calls.Load(), s.name)
	}

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ProviderFetches)
}

func TestResolveAllSourcesFail(t *testing.T) {
	r := NewResolver(artifact.NewLayout(t.TempDir()), []Source{&fakeSource{name: "a", err: ErrNotFound}})
	_, err := r.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	r = NewResolver(artifact.NewLayout(t.TempDir()), []Source{&fakeSource{name: "a", err: errors.New("boom")}})
	_, err = r.Resolve(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = r.Resolve(context.Background(), " , ")
	assert.Error(t, err)
}

func TestPolygonal(t *testing.T) {
	fc := square()
	fc.Features = append(fc.Features,
		vector.Feature{Geometry: geom.NewPointFlat(geom.XY, []float64{1, 2})},
		vector.Feature{Geometry: geom.NewMultiPolygon(geom.XY)},
		vector.Feature{},
	)
	assert.Equal(t, 1, Polygonal(fc).Len())
}

func TestShapefileSource(t *testing.T) {
	dir := t.TempDir()
	w, err := shp.Create(filepath.Join(dir, "punjab.shp"), shp.POLYGON)
	require.NoError(t, err)
	ring := []shp.Point{{X: 74, Y: 30}, {X: 74, Y: 32}, {X: 76, Y: 32}, {X: 76, Y: 30}, {X: 74, Y: 30}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
	w.Write(&poly)
	w.Close()

	src := &ShapefileSource{Dir: dir}
	assert.True(t, src.Available())
	assert.False(t, (&ShapefileSource{}).Available())

	fc, err := src.Fetch(context.Background(), "Punjab")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.IsType(t, &geom.Polygon{}, fc.Features[0].Geometry)

	_, err = src.Fetch(context.Background(), "Goa")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}

func TestNominatimFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Gujarat", r.URL.Query().Get("q"))
		assert.Equal(t, "geojson", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("polygon_geojson"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "geoquery-test", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, polygonGeoJSON)
	}))
	defer srv.Close()

	n := NewNominatim(WithBaseURL(srv.URL+"/"), WithUserAgent("geoquery-test"), WithRateLimit(1000), WithRetry(testRetry()))
	fc, err := n.Fetch(context.Background(), " Gujarat ")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Gujarat, India", fc.Features[0].Properties["display_name"])
}

func TestNominatimNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"type":"FeatureCollection","features":[]}`)
	}))
	defer srv.Close()

	n := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(testRetry()))
	_, err := n.Fetch(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNominatimRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, polygonGeoJSON)
	}))
	defer srv.Close()

	n := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(testRetry()))
	fc, err := n.Fetch(context.Background(), "Gujarat")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.Len())
	assert.Equal(t, int32(2), hits.Load())
}

func TestNominatimPermanentStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewNominatim(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(testRetry()))
	_, err := n.Fetch(context.Background(), "Gujarat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolverWithNominatim(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, polygonGeoJSON)
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(artifact.NewLayout(dir), []Source{
		&ShapefileSource{},
		NewNominatim(WithBaseURL(srv.URL), WithRateLimit(1000), WithRetry(testRetry())),
	})

	for range 3 {
		res, err := r.Resolve(context.Background(), "Gujarat")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "gujarat_boundary.geojson"), res.Path)
	}
	assert.Equal(t, int32(1), hits.Load())
}
