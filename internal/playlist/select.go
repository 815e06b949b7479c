// Package playlist maps a requested time window onto the segments of a DVR
// playlist.
package playlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/agleyzer/dvrarchive/internal/segment"
	"github.com/agleyzer/dvrarchive/internal/timerange"
)

// ErrUnresolvedBound is returned when a window bound cannot be turned into an
// instant, e.g. PREV without a previous archive end.
var ErrUnresolvedBound = errors.New("unresolved window bound")

// Selection is the concrete part of a playlist covered by a window.
type Selection struct {
	// StartAt and EndAt are the requested instants after sentinel resolution.
	// They are zero when the playlist was needed to resolve them but is empty.
	StartAt time.Time
	EndAt   time.Time

	// Start and End are the selected segment indices, End exclusive.
	Start int
	End   int

	// LatestEnd is the end of the last available segment, zero for an empty playlist.
	LatestEnd time.Time
}

// Empty reports whether there is nothing to download.
func (s Selection) Empty() bool {
	return s.Start >= s.End
}

// Len returns the number of selected segments.
func (s Selection) Len() int {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start
}

// Select resolves w against segs and returns the covered index range.
// prevEnd is the end of the previously archived file and is only consulted
// for a PREV start. segs must be ordered by start time.
//
// A segment ending exactly at the requested start is excluded, as is a
// segment beginning exactly at the requested end.
func Select(w timerange.Window, segs []segment.Segment, prevEnd time.Time) (Selection, error) {
	var sel Selection
	if len(segs) > 0 {
		sel.LatestEnd = segs[len(segs)-1].End()
	}

	startAt, startOK, err := resolve(w.Start, segs, prevEnd)
	if err != nil {
		return Selection{}, err
	}
	endAt, endOK, err := resolve(w.End, segs, prevEnd)
	if err != nil {
		return Selection{}, err
	}

	switch {
	case w.Start.Kind == timerange.Unset && endOK:
		startAt, startOK = endAt.Add(-w.Duration), true
	case w.End.Kind == timerange.Unset && startOK:
		endAt, endOK = startAt.Add(w.Duration), true
	}

	if !startOK || !endOK {
		// Only an empty playlist leaves a sentinel unresolved.
		sel.StartAt, sel.EndAt = startAt, endAt
		return sel, nil
	}

	sel.StartAt, sel.EndAt = startAt, endAt
	sel.Start, sel.End = indexRange(segs, startAt, endAt)
	return sel, nil
}

// resolve returns the instant for b. ok is false when b is Unset or needs a
// playlist that has no segments.
func resolve(b timerange.Bound, segs []segment.Segment, prevEnd time.Time) (t time.Time, ok bool, err error) {
	switch b.Kind {
	case timerange.Instant:
		return b.At, true, nil
	case timerange.Prev:
		if prevEnd.IsZero() {
			return time.Time{}, false, fmt.Errorf("%w: PREV without a previous archive", ErrUnresolvedBound)
		}
		return prevEnd, true, nil
	case timerange.Earliest:
		if len(segs) == 0 {
			return time.Time{}, false, nil
		}
		return segs[0].Start, true, nil
	case timerange.Latest:
		if len(segs) == 0 {
			return time.Time{}, false, nil
		}
		return segs[len(segs)-1].End(), true, nil
	case timerange.Unset:
		return time.Time{}, false, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: unknown bound kind %v", ErrUnresolvedBound, b.Kind)
	}
}

// indexRange returns the first segment ending after startAt and the first
// segment at or after it that starts at or after endAt.
func indexRange(segs []segment.Segment, startAt, endAt time.Time) (start, end int) {
	for start < len(segs) && !segs[start].End().After(startAt) {
		start++
	}

	end = len(segs) - 1
	for end >= start && !segs[end].Start.Before(endAt) {
		end--
	}
	end++

	return start, end
}
