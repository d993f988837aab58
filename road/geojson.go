package road

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"kuanb/gosm-matcher/geom"
)

// DecodeGeoJSON reads road records from a FeatureCollection of LineStrings
// carrying id, source, target, oneway, maxspeed_forward,
// maxspeed_backward and priority properties.
func DecodeGeoJSON(data []byte) ([]Record, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decoding roads: %w", err)
	}

	records := make([]Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: feature %d has no geometry", ErrInvalidRecord, i)
		}
		line, ok := f.Geometry.(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("%w: feature %d is a %s", ErrInvalidRecord, i, f.Geometry.GeoJSONType())
		}

		id, source, target := geom.OptionalFloat(f.Properties, "id"), geom.OptionalFloat(f.Properties, "source"), geom.OptionalFloat(f.Properties, "target")
		if math.IsNaN(id) || math.IsNaN(source) || math.IsNaN(target) {
			return nil, fmt.Errorf("%w: feature %d lacks id, source or target", ErrInvalidRecord, i)
		}

		records = append(records, Record{
			ID:               int64(id),
			Source:           int64(source),
			Target:           int64(target),
			OneWay:           f.Properties.MustBool("oneway", false),
			Class:            f.Properties.MustString("class", ""),
			Priority:         orDefault(geom.OptionalFloat(f.Properties, "priority"), 1),
			MaxSpeedForward:  orDefault(geom.OptionalFloat(f.Properties, "maxspeed_forward"), 50),
			MaxSpeedBackward: orDefault(geom.OptionalFloat(f.Properties, "maxspeed_backward"), 50),
			Length:           orDefault(geom.OptionalFloat(f.Properties, "length"), 0),
			Geometry:         line,
		})
	}
	return records, nil
}

func orDefault(v, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return v
}
