package audit

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// MissingCategory is the single category every missing value collapses into.
const MissingCategory = "N/A"

// IsMissing reports whether v is absent in any of its representations:
// nil, NaN, zero time, invalid sql.Null*, or blank text.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []byte:
		return strings.TrimSpace(string(x)) == ""
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return true
		}
		return IsMissing(inner)
	}
	return false
}

// Category renders a value as a cross-tab category. Raw text is kept as-is:
// no case folding and no trimming.
func Category(v any) string {
	if IsMissing(v) {
		return MissingCategory
	}
	switch x := v.(type) {
	case time.Time:
		return formatDate(x)
	case []byte:
		return string(x)
	case driver.Valuer:
		inner, err := x.Value()
		if err == nil {
			return Category(inner)
		}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// DefaultDateLayouts are tried in order when a date arrives as text.
var DefaultDateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
	"20060102150405",
	"200601021504",
	"20060102",
}

// excelEpoch is serial day 0 of the spreadsheet 1900 date system. Counting
// from 1899-12-30 absorbs the nonexistent 1900-02-29.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxExcelSerial is 9999-12-31.
const maxExcelSerial = 2958465

// FromExcelSerial converts a spreadsheet serial date (whole days since the
// epoch, fraction for time of day) to a time.Time.
func FromExcelSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second), true
}

// ParseDate converts v into a time.Time using layouts, then spreadsheet
// serial numbers, falling back to cast.
func ParseDate(v any, layouts []string) (time.Time, bool) {
	if IsMissing(v) {
		return time.Time{}, false
	}
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		return *x, true
	case []byte:
		return ParseDate(string(x), layouts)
	case string:
		s := strings.TrimSpace(x)
		for _, l := range layouts {
			if t, err := time.Parse(l, s); err == nil {
				return t, true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FromExcelSerial(f)
		}
		if t, err := cast.ToTimeE(s); err == nil && !t.IsZero() {
			return t, true
		}
		return time.Time{}, false
	case float64:
		return FromExcelSerial(x)
	case float32:
		return FromExcelSerial(float64(x))
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return time.Time{}, false
		}
		return ParseDate(inner, layouts)
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
