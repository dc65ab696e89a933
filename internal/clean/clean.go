// Package clean holds the pure field normalizers applied to extracted
// referral rows. None of them return errors: bad input maps to a missing value.
package clean

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/referral-cli/internal/table"
)

var (
	nonDigit      = regexp.MustCompile(`\D`)
	emptyCommaRun = regexp.MustCompile(`,(\s*,)+`)
	spaceRun      = regexp.MustCompile(`\s+`)
	spaceBefore   = regexp.MustCompile(`\s+,`)
)

// Phone formats a 10-digit number as (XXX) XXX-XXXX. Any other digit count
// returns the trimmed input unchanged. The bool is false for missing input.
func Phone(v any) (string, bool) {
	s := table.AsString(v)
	if s == "" {
		return "", false
	}
	digits := nonDigit.ReplaceAllString(s, "")
	if len(digits) == 10 {
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:]), true
	}
	return s, true
}

// Address trims an address and collapses the empty segments and doubled
// whitespace that exports leave behind ("1 Main St, , Towson" -> "1 Main St, Towson").
func Address(v any) (string, bool) {
	s := table.AsString(v)
	if s == "" {
		return "", false
	}
	s = spaceRun.ReplaceAllString(s, " ")
	s = emptyCommaRun.ReplaceAllString(s, ",")
	s = spaceBefore.ReplaceAllString(s, ",")
	s = strings.Trim(s, ", ")
	if s == "" {
		return "", false
	}
	return s, true
}

// Geocode coerces a coordinate to float64, tolerating the "--" artifact some
// exports emit for negative values. Values outside [-180, 180] become NaN.
func Geocode(v any) float64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for strings.Contains(s, "--") {
			s = strings.ReplaceAll(s, "--", "-")
		}
		v = s
	}
	f, ok := table.AsFloat(v)
	if !ok || math.IsInf(f, 0) || f < -180 || f > 180 {
		return math.NaN()
	}
	return f
}

// Latitude is Geocode restricted to [-90, 90].
func Latitude(v any) float64 {
	f := Geocode(v)
	if f < -90 || f > 90 {
		return math.NaN()
	}
	return f
}

// Longitude is an alias of Geocode, kept for symmetry at call sites.
func Longitude(v any) float64 {
	return Geocode(v)
}

// FloatPtr returns nil for NaN, else a pointer to f.
func FloatPtr(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Name normalizes a person or practice name: NFC form, single spaces.
func Name(v any) string {
	s := table.AsString(v)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// NameKey folds a name for identity comparisons.
func NameKey(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(spaceRun.ReplaceAllString(s, " "))
	return strings.TrimSpace(s)
}
