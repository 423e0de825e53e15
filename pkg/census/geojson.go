package census

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSON decode failures.
var (
	// ErrGeometryType indicates a feature whose geometry is neither a
	// polygon nor a multipolygon.
	ErrGeometryType = errors.New("census: feature geometry is not polygonal")

	// ErrMissingID indicates a feature without a usable GEOID.
	ErrMissingID = errors.New("census: feature has no GEOID")
)

// PropertyMapping names the feature properties unit attributes are read
// from. Zero values select the defaults.
type PropertyMapping struct {
	ID         string // GEOID property, default "GEOID"
	Population string // default "pop"
	Lean       string // default "lean"
	COI        string // default "coi"

	// DemographicPrefix marks group-count properties: a property "dem_white"
	// becomes group "white". Default "dem_".
	DemographicPrefix string
}

func (m *PropertyMapping) setDefaults() {
	if m.ID == "" {
		m.ID = "GEOID"
	}
	if m.Population == "" {
		m.Population = "pop"
	}
	if m.Lean == "" {
		m.Lean = "lean"
	}
	if m.COI == "" {
		m.COI = "coi"
	}
	if m.DemographicPrefix == "" {
		m.DemographicPrefix = "dem_"
	}
}

// FromGeoJSON decodes a FeatureCollection into a table.
func FromGeoJSON(data []byte, mapping PropertyMapping) (*Table, error) {
	mapping.setDefaults()
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("census: decode geojson: %w", err)
	}
	units := make([]Unit, 0, len(fc.Features))
	for i, f := range fc.Features {
		u, err := unitFromFeature(f, mapping)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		units = append(units, u)
	}
	return NewTable(units)
}

// LoadGeoJSON reads a FeatureCollection file into a table.
func LoadGeoJSON(path string, mapping PropertyMapping) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("census: read %s: %w", path, err)
	}
	return FromGeoJSON(data, mapping)
}

func unitFromFeature(f *geojson.Feature, m PropertyMapping) (Unit, error) {
	var u Unit

	switch g := f.Geometry.(type) {
	case orb.Polygon:
		u.Geometry = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		u.Geometry = g
	default:
		return u, ErrGeometryType
	}

	if s, ok := propString(f.Properties, m.ID); ok && s != "" {
		u.GEOID = s
	} else if f.ID != nil {
		u.GEOID = fmt.Sprint(f.ID)
	}
	if u.GEOID == "" {
		return u, ErrMissingID
	}

	if v, ok := propFloat(f.Properties, m.Population); ok {
		u.Population = int64(v)
	}
	if v, ok := propFloat(f.Properties, m.Lean); ok {
		u.PartisanLean = v
		u.HasLean = true
	}
	if s, ok := propString(f.Properties, m.COI); ok {
		u.COI = s
	}

	for key, val := range f.Properties {
		if !strings.HasPrefix(key, m.DemographicPrefix) {
			continue
		}
		group := strings.TrimPrefix(key, m.DemographicPrefix)
		if group == "" {
			continue
		}
		if v, ok := coerceFloat(val); ok {
			if u.Demographics == nil {
				u.Demographics = map[string]int64{}
			}
			u.Demographics[group] = int64(v)
		}
	}
	return u, nil
}

func propString(props geojson.Properties, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		// Numeric GEOIDs survive JSON decoding as floats.
		return fmt.Sprintf("%.0f", s), true
	default:
		return "", false
	}
}

func propFloat(props geojson.Properties, key string) (float64, bool) {
	v, ok := props[key]
	if !ok {
		return 0, false
	}
	return coerceFloat(v)
}

func coerceFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
