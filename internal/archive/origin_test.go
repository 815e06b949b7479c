package archive

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agleyzer/dvrarchive/internal/config"
	"github.com/agleyzer/dvrarchive/internal/logging"
	"github.com/agleyzer/dvrarchive/internal/metrics"
	"github.com/agleyzer/dvrarchive/internal/parser"
	"github.com/agleyzer/dvrarchive/internal/segment"
)

// t0 is 2023-11-10 12:30:00 JST.
var t0 = time.Date(2023, 11, 10, 3, 30, 0, 0, time.UTC)

// testOrigin serves a DVR playlist of n nominal segments starting at start
// under any path prefix. Segment i is named media_<i>.ts and its body is
// "segment-<i>;".
type testOrigin struct {
	start time.Time
	n     int

	// onSegment, if set, runs before a segment is served and may replace
	// the response status.
	onSegment func(i, attempt int) int

	mu       sync.Mutex
	requests []string
	attempts map[int]int

	server *httptest.Server
}

func newTestOrigin(t *testing.T, start time.Time, n int) *testOrigin {
	t.Helper()

	o := &testOrigin{start: start, n: n, attempts: make(map[int]int)}
	o.server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.server.Close)

	return o
}

func (o *testOrigin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.requests = append(o.requests, r.URL.Path)
	o.mu.Unlock()

	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	if name == parser.PlaylistName {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(dvrPlaylist(o.start, o.n)))
		return
	}

	i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "media_"), ".ts"))
	if err != nil || i < 0 || i >= o.n {
		http.NotFound(w, r)
		return
	}

	o.mu.Lock()
	o.attempts[i]++
	attempt := o.attempts[i]
	o.mu.Unlock()

	status := http.StatusOK
	if o.onSegment != nil {
		status = o.onSegment(i, attempt)
	}
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Write([]byte(payload(i)))
}

func (o *testOrigin) stream(code string) config.Stream {
	return config.Stream{
		Position: config.Position{Code: code, Hash: code},
		BaseURL:  o.server.URL + "/" + code + "/profile_0/",
	}
}

func (o *testOrigin) requestCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

func (o *testOrigin) attemptsFor(i int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts[i]
}

func dvrPlaylist(start time.Time, n int) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:0\n")
	for i := 0; i < n; i++ {
		at := start.Add(time.Duration(i) * segment.Nominal).UTC()
		fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n#EXTINF:6.0,\nmedia_%d.ts\n", at.Format("2006-01-02T15:04:05.000Z"), i)
	}
	return b.String()
}

func payload(i int) string {
	return fmt.Sprintf("segment-%d;", i)
}

func newTestArchiver(t *testing.T, o *testOrigin, halt *Halt) (*Archiver, string) {
	t.Helper()

	dir := t.TempDir()
	logger, progress := logging.Discard()
	a := New(Config{
		OutputDir:  dir,
		RetryDelay: time.Millisecond,
		QueueDepth: 2,
		Client:     o.server.Client(),
		Metrics:    metrics.New(),
	}, halt, logger, progress)

	return a, dir
}
