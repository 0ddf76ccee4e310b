package geo

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrLakeNotFound is returned when a Hylak_id has no feature in the source.
var ErrLakeNotFound = fmt.Errorf("lake not found")

// Lake is one polygon from the HydroLAKES dataset.
type Lake struct {
	Id       int64
	Name     string
	Country  string
	AreaKm2  float64
	Geometry orb.Geometry
}

func (l *Lake) Bound() orb.Bound {
	return l.Geometry.Bound()
}

// MaxLat returns the northernmost latitude of the lake, used to warn when the
// global water mask is requested above 70N where the JRC layer is unreliable.
func (l *Lake) MaxLat() float64 {
	return l.Bound().Max[1]
}

// LakeSource indexes a HydroLAKES GeoJSON export by Hylak_id.
type LakeSource struct {
	byId map[int64]*Lake
}

// LoadLakes parses a GeoJSON feature collection with HydroLAKES properties.
func LoadLakes(r io.Reader) (*LakeSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read lake collection: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lake collection: %w", err)
	}

	src := &LakeSource{byId: make(map[int64]*Lake, len(fc.Features))}
	for _, f := range fc.Features {
		id, ok := featureId(f)
		if !ok {
			continue
		}
		src.byId[id] = &Lake{
			Id:       id,
			Name:     stringProp(f, "Lake_name"),
			Country:  stringProp(f, "Country"),
			AreaKm2:  floatProp(f, "Lake_area"),
			Geometry: f.Geometry,
		}
	}
	return src, nil
}

// LoadLakesFile is a convenience wrapper for local deployments.
func LoadLakesFile(path string) (*LakeSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lake collection %s: %w", path, err)
	}
	defer f.Close()
	return LoadLakes(f)
}

func (s *LakeSource) Lake(id int64) (*Lake, error) {
	lake, ok := s.byId[id]
	if !ok {
		return nil, fmt.Errorf("%w: Hylak_id %d", ErrLakeNotFound, id)
	}
	return lake, nil
}

func (s *LakeSource) Len() int { return len(s.byId) }

func featureId(f *geojson.Feature) (int64, bool) {
	switch v := f.Properties["Hylak_id"].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func stringProp(f *geojson.Feature, key string) string {
	if v, ok := f.Properties[key].(string); ok {
		return v
	}
	return ""
}

func floatProp(f *geojson.Feature, key string) float64 {
	if v, ok := f.Properties[key].(float64); ok {
		return v
	}
	return 0
}
