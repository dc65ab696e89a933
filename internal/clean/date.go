package clean

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/referral-cli/internal/table"
)

// SerialEpoch is day zero of spreadsheet serial dates. Serial 1 is
// 1899-12-31; the extra day absorbs the format's 1900 leap-year bug.
var SerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// MinReferralDate is the earliest date accepted as a real referral.
var MinReferralDate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// maxFutureDays bounds how far past "now" a date may fall.
const maxFutureDays = 365

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04",
	"1/2/2006 15:04",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"2006/01/02",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-06",
}

// NormalizeDate converts a cell to a calendar date (UTC midnight). Calendar
// strings are tried first; numeric values are read as spreadsheet serials.
// Dates before 1990-01-01 or more than a year after now are discarded.
func NormalizeDate(v any, now time.Time) *time.Time {
	if table.IsMissing(v) {
		return nil
	}
	var d time.Time
	var ok bool
	switch x := v.(type) {
	case time.Time:
		d, ok = x, true
	case string:
		d, ok = parseCalendar(strings.TrimSpace(x))
		if !ok {
			d, ok = fromSerial(x)
		}
	default:
		d, ok = fromSerial(v)
	}
	if !ok {
		return nil
	}
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(MinReferralDate) || d.After(now.AddDate(0, 0, maxFutureDays)) {
		return nil
	}
	return &d
}

func parseCalendar(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromSerial(v any) (time.Time, bool) {
	f, ok := table.AsFloat(v)
	if !ok || math.IsInf(f, 0) || f < 0 || f > 2958465 {
		return time.Time{}, false
	}
	days := math.Floor(f)
	return SerialEpoch.AddDate(0, 0, int(days)), true
}
