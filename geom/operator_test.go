package geom

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartesianInterceptRoundTrip(t *testing.T) {
	op := Cartesian{}

	cases := []struct {
		name    string
		line    orb.LineString
		p       orb.Point
		nearest orb.Point
		f       float64
	}{
		{"straight", orb.LineString{{0, 0}, {10, 0}}, orb.Point{4, 3}, orb.Point{4, 0}, 0.4},
		{"corner", orb.LineString{{0, 0}, {10, 0}, {10, 10}}, orb.Point{12, 5}, orb.Point{10, 5}, 0.75},
		{"before start", orb.LineString{{0, 0}, {10, 0}}, orb.Point{-5, 1}, orb.Point{0, 0}, 0},
		{"after end", orb.LineString{{0, 0}, {0, 8}}, orb.Point{1, 20}, orb.Point{0, 8}, 1},
		{"diagonal", orb.LineString{{0, 0}, {4, 4}}, orb.Point{4, 0}, orb.Point{2, 2}, 0.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := op.Intercept(tc.line, tc.p)
			assert.InDelta(t, tc.f, f, 1e-9)

			got := op.Interpolate(tc.line, f)
			assert.InDelta(t, tc.nearest[0], got[0], 1e-6)
			assert.InDelta(t, tc.nearest[1], got[1], 1e-6)
		})
	}
}

func TestGeographyInterceptRoundTrip(t *testing.T) {
	op := Geography{}

	line := orb.LineString{{0, 0}, {0.01, 0}}
	f := op.Intercept(line, orb.Point{0.005, 0.001})
	assert.InDelta(t, 0.5, f, 1e-9)

	got := op.Interpolate(line, f)
	assert.InDelta(t, 0.005, got[0], 1e-6)
	assert.InDelta(t, 0.0, got[1], 1e-6)

	bent := orb.LineString{{11.000, 48.000}, {11.010, 48.000}, {11.010, 48.010}}
	f = op.Intercept(bent, orb.Point{11.012, 48.005})
	got = op.Interpolate(bent, f)
	assert.InDelta(t, 11.010, got[0], 1e-6)
	assert.InDelta(t, 48.005, got[1], 1e-6)
}

func TestGeographyDistanceAndLength(t *testing.T) {
	op := Geography{}

	// one degree of latitude on the WGS84 equatorial radius sphere
	d := op.Distance(orb.Point{11, 48}, orb.Point{11, 49})
	assert.InDelta(t, 111319.49, d, 1)

	line := orb.LineString{{11, 48}, {11, 48.5}, {11, 49}}
	assert.InDelta(t, d, op.Length(line), 1e-6)
}

func TestAzimuth(t *testing.T) {
	t.Run("cartesian", func(t *testing.T) {
		op := Cartesian{}
		line := orb.LineString{{0, 0}, {0, 10}, {10, 10}}
		assert.InDelta(t, 0, op.Azimuth(line, 0.25), 1e-9)
		assert.InDelta(t, 90, op.Azimuth(line, 0.75), 1e-9)
		assert.InDelta(t, 270, op.Azimuth(orb.LineString{{10, 0}, {0, 0}}, 0.5), 1e-9)
	})

	t.Run("geography", func(t *testing.T) {
		op := Geography{}
		assert.InDelta(t, 90, op.Azimuth(orb.LineString{{11.000, 48}, {11.010, 48}}, 0.5), 0.01)
		assert.InDelta(t, 180, op.Azimuth(orb.LineString{{11, 48.01}, {11, 48}}, 0.5), 0.01)
	})
}

func TestEnvelopeContainsRadius(t *testing.T) {
	op := Geography{}
	c := orb.Point{11.0, 48.0}
	b := op.Envelope(c, 100)

	north := orb.Point{11.0, 48.0 + 99/111319.49}
	assert.True(t, b.Contains(c))
	assert.True(t, b.Contains(north))
	assert.False(t, b.Contains(orb.Point{11.0, 48.01}))
}

func TestNormalizeAzimuth(t *testing.T) {
	assert.InDelta(t, 10, NormalizeAzimuth(370), 1e-9)
	assert.InDelta(t, 350, NormalizeAzimuth(-10), 1e-9)
	assert.InDelta(t, 0, NormalizeAzimuth(720), 1e-9)
	assert.True(t, math.IsNaN(NormalizeAzimuth(math.NaN())))

	assert.InDelta(t, 20, AzimuthDelta(350, 10), 1e-9)
	assert.InDelta(t, 180, AzimuthDelta(90, 270), 1e-9)
}

func TestTimeProperty(t *testing.T) {
	props := geojson.Properties{
		"unix":  float64(60),
		"rfc":   "2024-01-02T03:04:05Z",
		"bad":   "yesterday",
		"times": []interface{}{float64(1), "2024-01-02T03:04:06Z"},
	}

	got, err := Time(props, "unix")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(60, 0).UTC(), got)

	got, err = Time(props, "rfc")
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())

	_, err = Time(props, "bad")
	assert.Error(t, err)
	_, err = Time(props, "missing")
	assert.Error(t, err)

	got, err = TimeAt(props, "times", 1)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Second())
	_, err = TimeAt(props, "times", 2)
	assert.Error(t, err)

	assert.True(t, math.IsNaN(OptionalFloat(props, "azimuth")))
	assert.Equal(t, 60.0, OptionalFloat(props, "unix"))
}
