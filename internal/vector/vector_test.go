package vector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x0, y0, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x0, y0, x0 + size, y0, x0 + size, y0 + size, x0, y0 + size, x0, y0,
	}, []int{10})
}

// bowtie is a self-intersecting ring, which GEOS reports as invalid.
func bowtie() *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 1, 1, 1, 0, 0, 1, 0, 0,
	}, []int{10})
}

func TestNormalizeCRS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"EPSG:4326", CRSWGS84},
		{"epsg:4326", CRSWGS84},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", CRSWGS84},
		{"urn:ogc:def:crs:EPSG::3857", CRSWebMercator},
		{"EPSG:900913", CRSWebMercator},
		{"EPSG:32643", "EPSG:32643"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCRS(tt.in))
		})
	}
}

func TestReprojectWebMercator(t *testing.T) {
	fc := &FeatureCollection{Features: []Feature{
		{Geometry: geom.NewPointFlat(geom.XY, []float64{72, 23})},
		{Geometry: geom.NewPointFlat(geom.XY, []float64{180, 0})},
	}}

	out, err := Reproject(fc, "epsg:3857")
	require.NoError(t, err)
	assert.Equal(t, CRSWebMercator, out.CRS)
	assert.InDeltaSlice(t, []float64{8015003.337115697, 2632018.637586423}, out.Features[0].Geometry.FlatCoords(), 1e-3)
	assert.InDelta(t, 20037508.342789244, out.Features[1].Geometry.FlatCoords()[0], 1e-3)
}

func TestReprojectUTM(t *testing.T) {
	// 75°E is the central meridian of UTM zone 43N.
	fc := &FeatureCollection{Features: []Feature{{Geometry: geom.NewPointFlat(geom.XY, []float64{75, 0})}}}

	utm, err := Reproject(fc, "EPSG:32643")
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32643", utm.CRS)
	assert.InDeltaSlice(t, []float64{500000, 0}, utm.Features[0].Geometry.FlatCoords(), 1e-3)

	back, err := Reproject(utm, CRSWGS84)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{75, 0}, back.Features[0].Geometry.FlatCoords(), 1e-9)
}

func TestReprojectDoesNotMutateInput(t *testing.T) {
	fc := &FeatureCollection{Features: []Feature{{Geometry: square(10, 10, 1)}}}

	out, err := Reproject(fc, CRSWebMercator)
	require.NoError(t, err)
	assert.Equal(t, CRSWebMercator, out.CRS)
	assert.Equal(t, 10.0, fc.Features[0].Geometry.FlatCoords()[0])
	assert.Greater(t, out.Features[0].Geometry.FlatCoords()[0], 1e6)

	back, err := Reproject(out, "EPSG:4326")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, back.Features[0].Geometry.FlatCoords()[0], 1e-8)
}

func TestReprojectUnknownCRS(t *testing.T) {
	fc := &FeatureCollection{CRS: "EPSG:999999", Features: []Feature{{Geometry: square(0, 0, 1)}}}
	_, err := Reproject(fc, CRSWGS84)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EPSG:999999")
}

func TestTransformGeometryCollection(t *testing.T) {
	gc := geom.NewGeometryCollection()
	require.NoError(t, gc.Push(geom.NewPointFlat(geom.XY, []float64{1, 2}), square(0, 0, 1)))

	out, err := TransformGeometry(gc, func(xs, _ []float64) error {
		for i := range xs {
			xs[i] += 10
		}
		return nil
	})
	require.NoError(t, err)

	got := out.(*geom.GeometryCollection).Geoms()
	require.Len(t, got, 2)
	assert.Equal(t, []float64{11, 2}, got[0].FlatCoords())
	assert.Equal(t, 10.0, got[1].FlatCoords()[0])
}

func TestParseGeoJSONFeatureCollection(t *testing.T) {
	doc := `{
		"type": "FeatureCollection",
		"crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}},
		"features": [
			{"type": "Feature", "id": 7, "properties": {"name": "a"},
			 "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
			{"type": "Feature", "properties": {}, "geometry": null}
		]
	}`

	fc, err := ParseGeoJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, CRSWebMercator, fc.CRS)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "7", fc.Features[0].ID)
	assert.Equal(t, "a", fc.Features[0].Properties["name"])
	assert.IsType(t, &geom.Polygon{}, fc.Features[0].Geometry)
	assert.Nil(t, fc.Features[1].Geometry)
}

func TestParseGeoJSONSingleFeatureAndGeometry(t *testing.T) {
	fc, err := ParseGeoJSON([]byte(`{"type":"Feature","properties":{"k":1},"geometry":{"type":"Point","coordinates":[3,4]}}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{3, 4}, fc.Features[0].Geometry.FlatCoords())

	fc, err = ParseGeoJSON([]byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}`))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.IsType(t, &geom.MultiPolygon{}, fc.Features[0].Geometry)
}

func TestParseGeoJSONErrors(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseGeoJSON([]byte(`{"features": []}`))
	assert.Error(t, err)
}

func TestWriteGeoJSONReprojectsToWGS84(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.geojson")

	x, y := 8015003.337115697, 2632018.637586423
	fc := &FeatureCollection{
		CRS: CRSWebMercator,
		Features: []Feature{{
			ID:         "p1",
			Geometry:   geom.NewPointFlat(geom.XY, []float64{x, y}),
			Properties: map[string]any{"rank": 1},
		}},
	}
	require.NoError(t, WriteGeoJSON(path, fc))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, back.CRS)
	require.Len(t, back.Features, 1)
	assert.Equal(t, "p1", back.Features[0].ID)
	assert.InDelta(t, 72, back.Features[0].Geometry.FlatCoords()[0], 1e-7)
	assert.InDelta(t, 23, back.Features[0].Geometry.FlatCoords()[1], 1e-7)
	assert.EqualValues(t, 1, back.Features[0].Properties["rank"])
}

func TestMarshalEmptyCollection(t *testing.T) {
	data, err := MarshalGeoJSON(&FeatureCollection{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}

func TestReadFileUnsupportedExtension(t *testing.T) {
	_, err := ReadFile("boundary.kml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported vector format")
}

func TestPolygonsAndBounds(t *testing.T) {
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(5, 5, 1)))
	require.NoError(t, mp.Push(square(8, 8, 2)))

	fc := &FeatureCollection{Features: []Feature{
		{Geometry: square(0, 0, 1)},
		{Geometry: mp},
		{Geometry: geom.NewPointFlat(geom.XY, []float64{-3, 20})},
		{Geometry: nil},
	}}

	assert.Len(t, fc.Polygons(), 3)

	b := fc.Bounds()
	require.NotNil(t, b)
	assert.Equal(t, -3.0, b.Min(0))
	assert.Equal(t, 0.0, b.Min(1))
	assert.Equal(t, 10.0, b.Max(0))
	assert.Equal(t, 20.0, b.Max(1))

	assert.Nil(t, (&FeatureCollection{}).Bounds())
}

func TestValidateDropsInvalidAndEmpty(t *testing.T) {
	fc := &FeatureCollection{Features: []Feature{
		{ID: "bad", Geometry: bowtie()},
		{ID: "good", Geometry: square(0, 0, 1)},
		{ID: "empty", Geometry: geom.NewPolygon(geom.XY)},
		{ID: "missing"},
	}}

	valid, dropped := Validate(fc)
	assert.Equal(t, 3, dropped)
	require.Len(t, valid.Features, 1)
	assert.Equal(t, "good", valid.Features[0].ID)
}

func TestBufferGrowsArea(t *testing.T) {
	poly := square(0, 0, 100)
	before, err := Area(poly)
	require.NoError(t, err)
	assert.InDelta(t, 10000, before, 1e-9)

	fc, err := Buffer(&FeatureCollection{CRS: CRSWebMercator, Features: []Feature{{Geometry: poly}}}, 10)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, CRSWebMercator, fc.CRS)

	after, err := Area(fc.Features[0].Geometry)
	require.NoError(t, err)
	// 100x100 square + four 100x10 strips + rounded corners of radius 10.
	assert.Greater(t, after, 14000.0)
	assert.Less(t, after, 14000.0+3.15*100)
}

func writeTestShapefile(t *testing.T, dir string, prj string) string {
	t.Helper()
	path := filepath.Join(dir, "gujarat.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 32)}))

	// Clockwise shell with a counter-clockwise hole.
	shell := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shell, hole}))
	n := w.Write(&poly)
	require.NoError(t, w.WriteAttribute(int(n), 0, "Gujarat"))
	w.Close()

	if prj != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gujarat.prj"), []byte(prj), 0o644))
	}
	return path
}

func TestReadShapefilePolygonWithHole(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir(), "")

	fc, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Empty(t, fc.CRS)
	assert.Equal(t, "Gujarat", fc.Features[0].Properties["NAME"])

	poly, ok := fc.Features[0].Geometry.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 2, poly.NumLinearRings())

	area, err := Area(poly)
	require.NoError(t, err)
	assert.InDelta(t, 96, area, 1e-9)
}

func TestReadShapefileCRSFromPrj(t *testing.T) {
	path := writeTestShapefile(t, t.TempDir(), "EPSG:4326")

	fc, err := ReadShapefile(path)
	require.NoError(t, err)
	assert.Equal(t, CRSWGS84, fc.CRS)
}

func TestSignedAreaOrientation(t *testing.T) {
	ccw := []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}
	cw := []float64{0, 0, 0, 1, 1, 1, 1, 0, 0, 0}
	assert.InDelta(t, 1, signedArea(ccw), 1e-12)
	assert.InDelta(t, -1, signedArea(cw), 1e-12)
	assert.True(t, ringContains(ccw, 0.5, 0.5))
	assert.False(t, ringContains(ccw, 1.5, 0.5))
}
