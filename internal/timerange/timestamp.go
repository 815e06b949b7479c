package timerange

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agleyzer/dvrarchive/internal/timefmt"
)

var timestampRegex = regexp.MustCompile(`(?i)^(?:(\d{4})-(\d{1,2})-(\d{1,2})|(\d{4})(\d{2})(\d{2}))(?:T|\s+)` +
	`(?:(\d{1,2}):(\d{1,2}):(\d{1,2})|(\d{2})(\d{2})(\d{2}))(?:[.,](\d+))?` +
	`(Z|[+-]\d{2}:?\d{2})?$`)

var durationRegex = regexp.MustCompile(`(?i)^P?T?(?:(\d{1,2})H)?\s*(?:(\d{1,2})M)?\s*(?:(\d{1,2})(?:[.,](\d+))?S)?$`)

// ParseTimestamp parses an ISO 8601 style date and time. Without an explicit
// UTC offset the time is taken to be +09:00. Fractional seconds are kept to
// millisecond precision.
func ParseTimestamp(s string) (time.Time, error) {
	m := timestampRegex.FindStringSubmatch(strings.ReplaceAll(strings.TrimSpace(s), ";", ":"))
	if m == nil {
		return time.Time{}, &MalformedTimestampError{Input: s}
	}

	year := atoi(either(m[1], m[4]))
	month := atoi(either(m[2], m[5]))
	day := atoi(either(m[3], m[6]))
	hour := atoi(either(m[7], m[10]))
	minute := atoi(either(m[8], m[11]))
	second := atoi(either(m[9], m[12]))
	millis := fractionMillis(m[13])

	loc, ok := parseOffset(m[14])
	if !ok {
		return time.Time{}, &MalformedTimestampError{Input: s}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, millis*int(time.Millisecond), loc)

	// time.Date normalizes out-of-range fields; reject those instead.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, &MalformedTimestampError{Input: s}
	}

	return t, nil
}

// ParseDuration parses a compact duration such as "1h2m3.456s", "90s" or
// "PT10M". Each component is optional but at least one must be present.
func ParseDuration(s string) (time.Duration, error) {
	m := durationRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, &MalformedDurationError{Input: s}
	}

	hours := atoi(m[1])
	minutes := atoi(m[2])
	seconds := atoi(m[3])
	millis := fractionMillis(m[4])

	d := time.Duration((hours*60+minutes)*60+seconds)*time.Second + time.Duration(millis)*time.Millisecond
	return d, nil
}

func parseOffset(s string) (*time.Location, bool) {
	switch {
	case s == "":
		return timefmt.JST, true
	case strings.EqualFold(s, "Z"):
		return time.UTC, true
	}

	digits := strings.ReplaceAll(s[1:], ":", "")
	hours := atoi(digits[:2])
	minutes := atoi(digits[2:])
	if hours > 23 || minutes > 59 {
		return nil, false
	}

	offset := hours*60*60 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone("", offset), true
}

// fractionMillis converts the digits after a decimal mark to milliseconds,
// truncating anything below a millisecond.
func fractionMillis(digits string) int {
	if digits == "" {
		return 0
	}
	if len(digits) > 3 {
		digits = digits[:3]
	}
	for len(digits) < 3 {
		digits += "0"
	}
	return atoi(digits)
}

func either(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// atoi is only called on regex-validated digit strings.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, _ := strconv.Atoi(s)
	return n
}
