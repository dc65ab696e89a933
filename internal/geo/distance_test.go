package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baltimore  = Point(39.2904, -76.6122)
	washington = Point(38.9072, -77.0369)
)

func TestHaversineMiles_KnownDistance(t *testing.T) {
	d := HaversineMiles(baltimore, washington)
	assert.GreaterOrEqual(t, d, 30.0)
	assert.LessOrEqual(t, d, 45.0)
}

func TestHaversineMiles_Zero(t *testing.T) {
	assert.Less(t, HaversineMiles(baltimore, baltimore), 0.01)
}

func TestHaversineMiles_Symmetric(t *testing.T) {
	points := [][2]float64{
		{39.2904, -76.6122},
		{38.9072, -77.0369},
		{-33.8688, 151.2093},
		{51.5074, -0.1278},
		{0, 179.9},
		{0, -179.9},
		{89.9, 0},
	}
	for _, a := range points {
		for _, b := range points {
			pa, pb := Point(a[0], a[1]), Point(b[0], b[1])
			assert.InDelta(t, HaversineMiles(pa, pb), HaversineMiles(pb, pa), 1e-9)
		}
	}
}

func TestPoint_Axes(t *testing.T) {
	p := Point(39.29, -76.61)
	assert.Equal(t, -76.61, p.X())
	assert.Equal(t, 39.29, p.Y())
	assert.Equal(t, 4326, p.SRID())
}

func TestDistancesMiles(t *testing.T) {
	lat, lon := 38.9072, -77.0369
	other := 39.0
	lats := []*float64{&lat, nil, &other}
	lons := []*float64{&lon, &lon, nil}

	got := DistancesMiles(baltimore, lats, lons)
	require.Len(t, got, 3)
	assert.InDelta(t, HaversineMiles(baltimore, washington), got[0], 1e-9)
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
}
