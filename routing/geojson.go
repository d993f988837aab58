package routing

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"kuanb/gosm-matcher/geom"
)

// DecodeSamples reads a trace from GeoJSON. Point features carry id, time
// and an optional azimuth in their properties. A LineString feature is a
// whole trace whose vertex times are in the "times" property; without it
// vertices are taken one second apart.
func DecodeSamples(data []byte) ([]Sample, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding samples: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	if head.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("decoding samples: %w", err)
		}
		fc.Append(f)
	} else {
		var err error
		if fc, err = geojson.UnmarshalFeatureCollection(data); err != nil {
			return nil, fmt.Errorf("decoding samples: %w", err)
		}
	}

	var samples []Sample
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d: missing geometry", i)
		}
		switch g := f.Geometry.(type) {
		case orb.Point:
			ts, err := geom.Time(f.Properties, "time")
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			samples = append(samples, NewSample(sampleID(f.Properties, len(samples)), ts, g, geom.OptionalFloat(f.Properties, "azimuth")))

		case orb.LineString:
			_, timed := f.Properties["times"]
			for j, p := range g {
				ts := time.Unix(int64(j), 0).UTC()
				if timed {
					var err error
					if ts, err = geom.TimeAt(f.Properties, "times", j); err != nil {
						return nil, fmt.Errorf("feature %d: %w", i, err)
					}
				}
				samples = append(samples, NewSample(strconv.Itoa(len(samples)), ts, p, math.NaN()))
			}

		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %s", i, f.Geometry.GeoJSONType())
		}
	}

	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	return samples, nil
}

func sampleID(props geojson.Properties, fallback int) string {
	switch v := props["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strconv.Itoa(fallback)
	}
}

// Geometry joins the routes of consecutive matches into lines. A match
// without a route starts a new line; lines of a single point are dropped.
func Geometry(matches []Match, op geom.Operator) orb.MultiLineString {
	var (
		out     orb.MultiLineString
		current orb.LineString
	)
	flush := func() {
		if len(current) > 1 {
			out = append(out, current)
		}
		current = nil
	}

	for _, m := range matches {
		if m.Route == nil || len(current) == 0 {
			flush()
			current = orb.LineString{m.Point}
			continue
		}
		for _, p := range m.Route.Geometry(op) {
			if len(current) > 0 && current[len(current)-1].Equal(p) {
				continue
			}
			current = append(current, p)
		}
	}
	flush()
	return out
}

// EncodeResult renders matches as Point features and the matched route as
// LineString features.
func EncodeResult(res *Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range res.Matches {
		fc.Append(EncodeMatch(m))
	}
	for _, l := range res.Geometry {
		f := geojson.NewFeature(l)
		f.Properties["matched"] = true
		f.Properties["stroke"] = randomColor()
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{"confidence": res.Confidence}
	return fc
}

// EncodeMatch renders one match as a Point feature.
func EncodeMatch(m Match) *geojson.Feature {
	f := geojson.NewFeature(m.Point)
	f.Properties["sample"] = m.SampleID
	f.Properties["time"] = m.Time.Format(time.RFC3339Nano)
	f.Properties["road_id"] = m.RoadID
	f.Properties["segment_id"] = m.SegmentID
	f.Properties["fraction"] = m.Fraction
	f.Properties["heading"] = m.Heading.String()
	f.Properties["filtprob"] = m.Filtprob
	f.Properties["seqprob"] = finite(m.Seqprob)
	return f
}

// finite keeps JSON encodable values; -Inf becomes the lowest float.
func finite(v float64) float64 {
	switch {
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}

// randomColor generates a random hex color string
func randomColor() string {
	const letters = "0123456789ABCDEF"
	b := make([]byte, 7)
	b[0] = '#'
	for i := 1; i < 7; i++ {
		b[i] = letters[rand.Intn(16)]
	}
	return string(b)
}
