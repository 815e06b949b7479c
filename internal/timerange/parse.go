package timerange

import (
	"regexp"
	"strings"
	"time"
)

var separatorRegex = regexp.MustCompile(`\s*(?:/|--)\s*`)

// alternative is one accepted shape of a range expression. It reports false
// when any of its tokens does not parse.
type alternative func(tokens []string, now time.Time) (Window, bool)

// Alternatives are tried in order and the first match wins. Inputs that fit
// more than one shape resolve to the earlier one.
var (
	oneTokenAlternatives = []alternative{
		startUntilLatest,
		trailingDuration,
	}
	twoTokenAlternatives = []alternative{
		startThenEnd,
		startThenDuration,
		durationThenEnd,
	}
)

// Parse resolves a range expression relative to the current time.
func Parse(s string) (Window, error) {
	return ParseAt(s, time.Now())
}

// ParseAt resolves a range expression; durations without an anchor are
// measured back from now.
func ParseAt(s string, now time.Time) (Window, error) {
	tokens := separatorRegex.Split(strings.ToUpper(strings.TrimSpace(s)), -1)

	var alternatives []alternative
	switch len(tokens) {
	case 1:
		alternatives = oneTokenAlternatives
	case 2:
		alternatives = twoTokenAlternatives
	}

	for _, alt := range alternatives {
		if w, ok := alt(tokens, now); ok {
			return w, nil
		}
	}
	return Window{}, &MalformedRangeError{Input: s}
}

// "<start>": from start until the end of the playlist.
func startUntilLatest(tokens []string, _ time.Time) (Window, bool) {
	start, ok := parseStart(tokens[0])
	if !ok {
		return Window{}, false
	}
	return Window{Start: start, End: Bound{Kind: Latest}}, true
}

// "<duration>": the trailing window of that length ending now.
func trailingDuration(tokens []string, now time.Time) (Window, bool) {
	d, err := ParseDuration(tokens[0])
	if err != nil {
		return Window{}, false
	}
	return Window{Start: At(now.Add(-d)), End: At(now)}, true
}

// "<start>/<end>"
func startThenEnd(tokens []string, _ time.Time) (Window, bool) {
	start, ok := parseStart(tokens[0])
	if !ok {
		return Window{}, false
	}
	end, ok := parseEnd(tokens[1])
	if !ok {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// "<start>/<duration>"
func startThenDuration(tokens []string, _ time.Time) (Window, bool) {
	start, ok := parseStart(tokens[0])
	if !ok {
		return Window{}, false
	}
	d, err := ParseDuration(tokens[1])
	if err != nil {
		return Window{}, false
	}
	if start.IsSentinel() {
		return Window{Start: start, Duration: d}, true
	}
	return Window{Start: start, End: At(start.At.Add(d))}, true
}

// "<duration>/<end>"
func durationThenEnd(tokens []string, _ time.Time) (Window, bool) {
	d, err := ParseDuration(tokens[0])
	if err != nil {
		return Window{}, false
	}
	end, ok := parseEnd(tokens[1])
	if !ok {
		return Window{}, false
	}
	if end.IsSentinel() {
		return Window{End: end, Duration: d}, true
	}
	return Window{Start: At(end.At.Add(-d)), End: end}, true
}

func parseStart(token string) (Bound, bool) {
	switch token {
	case "PREV":
		return Bound{Kind: Prev}, true
	case "EARLIEST":
		return Bound{Kind: Earliest}, true
	}
	t, err := ParseTimestamp(token)
	if err != nil {
		return Bound{}, false
	}
	return At(t), true
}

func parseEnd(token string) (Bound, bool) {
	if token == "LATEST" {
		return Bound{Kind: Latest}, true
	}
	t, err := ParseTimestamp(token)
	if err != nil {
		return Bound{}, false
	}
	return At(t), true
}
