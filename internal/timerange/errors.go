package timerange

import "fmt"

// MalformedRangeError is returned when no range grammar accepts the input.
type MalformedRangeError struct {
	Input string
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed time range: %q", e.Input)
}

// MalformedTimestampError is returned by ParseTimestamp.
type MalformedTimestampError struct {
	Input string
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("malformed date or time: %q", e.Input)
}

// MalformedDurationError is returned by ParseDuration.
type MalformedDurationError struct {
	Input string
}

func (e *MalformedDurationError) Error() string {
	return fmt.Sprintf("malformed duration: %q", e.Input)
}
