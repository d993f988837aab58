package geom

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"
)

// OptionalFloat reads a numeric property, returning NaN when it is absent or
// not a number.
func OptionalFloat(props geojson.Properties, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// Time reads a timestamp property given either as unix seconds or as an
// RFC 3339 string.
func Time(props geojson.Properties, key string) (time.Time, error) {
	switch v := props[key].(type) {
	case float64:
		return unixSeconds(v), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return unixSeconds(f), nil
		}
		return time.Time{}, fmt.Errorf("property %q: unparsable time %q", key, v)
	case nil:
		return time.Time{}, fmt.Errorf("property %q: missing", key)
	default:
		return time.Time{}, fmt.Errorf("property %q: unsupported type %T", key, v)
	}
}

// TimeAt reads element i of an array property of timestamps.
func TimeAt(props geojson.Properties, key string, i int) (time.Time, error) {
	arr, ok := props[key].([]interface{})
	if !ok {
		return time.Time{}, fmt.Errorf("property %q: not an array", key)
	}
	if i >= len(arr) {
		return time.Time{}, fmt.Errorf("property %q: %d values for coordinate %d", key, len(arr), i)
	}
	return Time(geojson.Properties{key: arr[i]}, key)
}

func unixSeconds(v float64) time.Time {
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
