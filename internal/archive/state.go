package archive

// State is the stage a position's archive run is in.
type State string

const (
	// StateFetchingPlaylist means the DVR playlist is being downloaded
	StateFetchingPlaylist State = "fetching_playlist"

	// StateSelecting means the window is being mapped onto playlist segments
	StateSelecting State = "selecting"

	// StateEmpty means the window covers no available segment
	StateEmpty State = "empty"

	// StateWriting means segments are being fetched into the provisional file
	StateWriting State = "writing"

	// StateCancelling means the halt signal was seen while writing
	StateCancelling State = "cancelling"

	// StateFinalizing means the provisional file is being renamed
	StateFinalizing State = "finalizing"

	// StateDone means the permanent file is in place
	StateDone State = "done"

	// StateFailed means the run stopped on an error
	StateFailed State = "failed"
)

// String returns the string representation of State
func (s State) String() string {
	return string(s)
}

// IsFinished returns true if no further transitions can happen
func (s State) IsFinished() bool {
	return s == StateEmpty || s == StateDone || s == StateFailed
}
