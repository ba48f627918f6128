package csvconv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

func isNull(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "null" || v == "na" || v == "n/a"
}

func parseInt32(s string) (int32, error) {
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid int32 value: %s", s)
	}
	return int32(i64), nil
}

func parseInt64(s string) (int64, error) {
	i64, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid int64 value: %s", s)
	}
	return i64, nil
}

func parseFloat64(s string) (float64, error) {
	f64, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float64 value: %s", s)
	}
	return f64, nil
}

func parseBoolean(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "t", "yes", "y":
		return true, nil
	case "false", "f", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC1123,
	time.RFC822,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	if t, err := parseDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s)
}

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02-Jan-2006",
	"January 2, 2006",
}

// parseDate accepts calendar dates only; values carrying a time of day are
// rejected.
func parseDate(s string) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %s", s)
}

// daysSinceEpoch converts a date to days since 1970-01-01.
func daysSinceEpoch(t time.Time) (int32, error) {
	days := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400
	if days < math.MinInt32 || days > math.MaxInt32 {
		return 0, fmt.Errorf("date %s out of range", t.Format("2006-01-02"))
	}
	return int32(days), nil
}
