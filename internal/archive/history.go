package archive

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agleyzer/dvrarchive/internal/timefmt"
)

// Extension is the file extension of archived MPEG-TS files.
const Extension = ".mts"

// archiveEndRegex captures the end timestamp of a permanent file name.
var archiveEndRegex = regexp.MustCompile(`--(\d{4}-[^_]*)_`)

// NoPriorFileError is returned when PREV is requested but the output
// directory holds no finished archive for a position.
type NoPriorFileError struct {
	Dir      string
	Position string
}

func (e *NoPriorFileError) Error() string {
	return fmt.Sprintf("there are no files in %s for the %s position", e.Dir, e.Position)
}

// ProvisionalName is the file name used while a position is still writing.
func ProvisionalName(start time.Time, position string) string {
	return "PARTIAL_" + timefmt.FormatFile(start) + "_" + position + Extension
}

// PermanentName is the file name of a finished archive covering [start, end).
// Later runs read the end instant back from it to resolve PREV.
func PermanentName(start, end time.Time, position string) string {
	return timefmt.FormatFile(start) + "--" + timefmt.FormatFile(end) + "_" + position + Extension
}

// LastArchivedEnd returns the end instant embedded in the lexicographically
// last finished archive for position in dir.
func LastArchivedEnd(dir, position string) (time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read output directory: %w", err)
	}

	suffix := "_" + position + Extension
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) || !archiveEndRegex.MatchString(name) {
			continue
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return time.Time{}, &NoPriorFileError{Dir: dir, Position: position}
	}

	sort.Strings(names)
	last := names[len(names)-1]

	end, err := timefmt.ParseFile(archiveEndRegex.FindStringSubmatch(last)[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse archive file name %q: %w", last, err)
	}

	return end, nil
}
