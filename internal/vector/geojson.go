package vector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geoquery/internal/artifact"
)

type crsMember struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type featureDoc struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type collectionDoc struct {
	Type     string          `json:"type"`
	CRS      *crsMember      `json:"crs,omitempty"`
	Features []featureDoc    `json:"features,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
	ID       any             `json:"id,omitempty"`
	Props    map[string]any  `json:"properties,omitempty"`
}

type collectionOut struct {
	Type     string       `json:"type"`
	Features []featureDoc `json:"features"`
}

// ParseGeoJSON decodes a FeatureCollection, a single Feature, or a bare
// geometry. The legacy "crs" member is honoured. Geometries that fail to
// decode are kept as nil so callers can count them as invalid.
func ParseGeoJSON(data []byte) (*FeatureCollection, error) {
	var doc collectionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "vector: decode geojson")
	}

	fc := &FeatureCollection{}
	if doc.CRS != nil {
		fc.CRS = NormalizeCRS(doc.CRS.Properties.Name)
	}

	switch doc.Type {
	case "FeatureCollection":
		for _, f := range doc.Features {
			fc.Features = append(fc.Features, decodeFeature(f))
		}
	case "Feature":
		fc.Features = append(fc.Features, decodeFeature(featureDoc{
			ID:         doc.ID,
			Geometry:   doc.Geometry,
			Properties: doc.Props,
		}))
	case "":
		return nil, eris.New("vector: geojson document has no type")
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrapf(err, "vector: decode %s geometry", doc.Type)
		}
		fc.Features = append(fc.Features, Feature{Geometry: g})
	}
	return fc, nil
}

func decodeFeature(f featureDoc) Feature {
	out := Feature{Properties: f.Properties}
	if f.ID != nil {
		out.ID = fmt.Sprint(f.ID)
	}
	raw := bytes.TrimSpace(f.Geometry)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err == nil {
		out.Geometry = g
	}
	return out
}

// MarshalGeoJSON encodes fc as an RFC 7946 FeatureCollection. The
// collection must already be in WGS84.
func MarshalGeoJSON(fc *FeatureCollection) ([]byte, error) {
	if crs := NormalizeCRS(fc.CRS); crs != "" && crs != CRSWGS84 {
		return nil, eris.Errorf("vector: geojson output must be %s, got %s", CRSWGS84, crs)
	}

	doc := collectionOut{Type: "FeatureCollection", Features: make([]featureDoc, 0, len(fc.Features))}
	for _, f := range fc.Features {
		fd := featureDoc{Type: "Feature", Properties: f.Properties, Geometry: json.RawMessage("null")}
		if f.ID != "" {
			fd.ID = f.ID
		}
		if fd.Properties == nil {
			fd.Properties = map[string]any{}
		}
		if f.Geometry != nil {
			raw, err := geojson.Marshal(f.Geometry)
			if err != nil {
				return nil, eris.Wrap(err, "vector: encode geometry")
			}
			fd.Geometry = raw
		}
		doc.Features = append(doc.Features, fd)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "vector: encode geojson")
	}
	return data, nil
}

// WriteGeoJSON reprojects fc to WGS84 when needed and publishes it at path
// atomically.
func WriteGeoJSON(path string, fc *FeatureCollection) error {
	out := fc
	if crs := NormalizeCRS(fc.CRS); crs != "" && crs != CRSWGS84 {
		var err error
		out, err = Reproject(fc, CRSWGS84)
		if err != nil {
			return err
		}
	}

	data, err := MarshalGeoJSON(out)
	if err != nil {
		return err
	}

	return artifact.WriteAtomic(path, func(tmp string) error {
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return eris.Wrapf(err, "vector: write %s", path)
		}
		return nil
	})
}
