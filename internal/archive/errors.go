package archive

import "fmt"

// SegmentFetchError reports one failed attempt at downloading a segment.
type SegmentFetchError struct {
	Position string
	Path     string
	Attempt  int
	Err      error
}

func (e *SegmentFetchError) Error() string {
	return fmt.Sprintf("position %s: attempt %d at segment %s failed: %v", e.Position, e.Attempt, e.Path, e.Err)
}

func (e *SegmentFetchError) Unwrap() error {
	return e.Err
}
