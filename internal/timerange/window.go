// Package timerange resolves compact time-range expressions such as
// "2023-11-10T12:30:00/10m" or "PREV/LATEST" into a Window.
package timerange

import (
	"fmt"
	"time"

	"github.com/agleyzer/dvrarchive/internal/timefmt"
)

// BoundKind tells whether a Bound is a concrete instant or a sentinel that is
// resolved later against playlist or archive data.
type BoundKind uint8

const (
	// Unset means the bound is derived from the opposite bound and Window.Duration.
	Unset BoundKind = iota
	// Instant is a concrete point in time.
	Instant
	// Prev is the end of the most recently archived file for a position.
	Prev
	// Earliest is the start of the first segment in the playlist.
	Earliest
	// Latest is the end of the last segment in the playlist.
	Latest
)

func (k BoundKind) String() string {
	switch k {
	case Unset:
		return "unset"
	case Instant:
		return "instant"
	case Prev:
		return "PREV"
	case Earliest:
		return "EARLIEST"
	case Latest:
		return "LATEST"
	default:
		return fmt.Sprintf("BoundKind(%d)", uint8(k))
	}
}

// Bound is one edge of a Window.
type Bound struct {
	Kind BoundKind
	// At is only meaningful when Kind is Instant.
	At time.Time
}

// At returns a concrete bound at t.
func At(t time.Time) Bound {
	return Bound{Kind: Instant, At: t}
}

// IsSentinel reports whether b needs to be resolved against external data.
func (b Bound) IsSentinel() bool {
	return b.Kind == Prev || b.Kind == Earliest || b.Kind == Latest
}

func (b Bound) String() string {
	if b.Kind == Instant {
		return timefmt.Format(b.At)
	}
	return b.Kind.String()
}

// Window is a parsed time range. Duration is non-zero only when one bound is
// Unset and has to be computed from the other once that one is resolved.
type Window struct {
	Start    Bound
	End      Bound
	Duration time.Duration
}

func (w Window) String() string {
	switch {
	case w.End.Kind == Unset:
		return fmt.Sprintf("%s + %s", w.Start, w.Duration)
	case w.Start.Kind == Unset:
		return fmt.Sprintf("%s - %s", w.End, w.Duration)
	default:
		return fmt.Sprintf("%s / %s", w.Start, w.End)
	}
}

// UsesPrev reports whether resolving w requires the previous archive end.
func (w Window) UsesPrev() bool {
	return w.Start.Kind == Prev
}
