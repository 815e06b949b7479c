// Package segment defines data structures for DVR playlist segments.
package segment

import "time"

// Nominal is the segment length the origin is expected to produce.
const Nominal = 6 * time.Second

// Segment represents a single media segment listed in a DVR playlist.
type Segment struct {
	// Start is the program date-time of the first frame in the segment
	Start time.Time

	// Duration is the EXTINF duration, rounded to milliseconds
	Duration time.Duration

	// Path is the media URI as written in the playlist, relative to the playlist base
	Path string
}

// End returns the instant the segment's media ends.
func (s Segment) End() time.Time {
	return s.Start.Add(s.Duration)
}
