package clean

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"dashed", "410-555-1234", "(410) 555-1234", true},
		{"dotted with spaces", " 410.555.1234 ", "(410) 555-1234", true},
		{"numeric cell", 4105551234.0, "(410) 555-1234", true},
		{"extension kept raw", "410-555-1234 x12", "410-555-1234 x12", true},
		{"short", "555-1234", "555-1234", true},
		{"empty", "  ", "", false},
		{"nil", nil, "", false},
		{"nan", math.NaN(), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Phone(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"empty segment", "1 Main St, , Towson, MD", "1 Main St, Towson, MD", true},
		{"double comma", "1 Main St,, Towson", "1 Main St, Towson", true},
		{"double spaces", "  1  Main   St  ", "1 Main St", true},
		{"trailing commas", "1 Main St, ,", "1 Main St", true},
		{"only commas", " , , ", "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Address(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeocode(t *testing.T) {
	assert.InDelta(t, -76.6122, Geocode("--76.6122"), 1e-9)
	assert.InDelta(t, 39.29, Geocode(39.29), 1e-9)
	assert.InDelta(t, 39.29, Geocode(" 39.29 "), 1e-9)
	assert.True(t, math.IsNaN(Geocode("181")))
	assert.True(t, math.IsNaN(Geocode("abc")))
	assert.True(t, math.IsNaN(Geocode(nil)))

	assert.InDelta(t, 120.0, Longitude("120"), 1e-9)
	assert.True(t, math.IsNaN(Latitude("120")))
	assert.InDelta(t, -89.5, Latitude("-89.5"), 1e-9)
}

func TestFloatPtr(t *testing.T) {
	assert.Nil(t, FloatPtr(math.NaN()))
	p := FloatPtr(1.5)
	require.NotNil(t, p)
	assert.Equal(t, 1.5, *p)
}

func TestNameAndKey(t *testing.T) {
	assert.Equal(t, "Clinic A", Name("  Clinic   A "))
	assert.Equal(t, "", Name(nil))
	// Decomposed e + combining acute folds to the same key as the precomposed form.
	assert.Equal(t, NameKey("Jose\u0301 Ruiz"), NameKey("Jos\u00e9  RUIZ"))
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"iso", "2024-03-15", ptr(date(2024, 3, 15))},
		{"us", "3/15/2024", ptr(date(2024, 3, 15))},
		{"with time", "2024-03-15 13:45:00", ptr(date(2024, 3, 15))},
		{"serial float", 45366.0, ptr(date(2024, 3, 15))},
		{"serial string", "45366", ptr(date(2024, 3, 15))},
		{"serial with time fraction", "45366.75", ptr(date(2024, 3, 15))},
		{"time value", date(2023, 1, 2), ptr(date(2023, 1, 2))},
		{"before 1990", "1985-01-01", nil},
		{"tiny serial", 12.0, nil},
		{"far future", "2030-01-01", nil},
		{"garbage", "not a date", nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.in, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s want %s", got, tt.want)
		})
	}
}

func TestSerialEpoch(t *testing.T) {
	// Serial 1 is 1899-12-31 and serial 61 is 1900-03-01.
	assert.Equal(t, date(1899, 12, 31), SerialEpoch.AddDate(0, 0, 1))
	assert.Equal(t, date(1900, 3, 1), SerialEpoch.AddDate(0, 0, 61))
}

func ptr(t time.Time) *time.Time { return &t }
