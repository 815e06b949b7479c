// Package timefmt formats and parses the +09:00 wall-clock timestamps used in
// log lines and archive file names.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// JST is the fixed +09:00 zone the stream schedule is published in.
var JST = time.FixedZone("JST", 9*60*60)

// Layout is the timestamp layout used for display and file names.
const Layout = "2006-01-02T15:04:05.000"

// Format renders t as yyyy-mm-ddThh:mm:ss.mmm in JST.
func Format(t time.Time) string {
	return t.In(JST).Format(Layout)
}

// FormatFile renders t like Format, with ';' in place of ':' so the result is
// safe to embed in a file name.
func FormatFile(t time.Time) string {
	return strings.ReplaceAll(Format(t), ":", ";")
}

// ParseFile is the inverse of FormatFile.
func ParseFile(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, strings.ReplaceAll(s, ";", ":"), JST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid file timestamp %q: %w", s, err)
	}
	return t, nil
}
