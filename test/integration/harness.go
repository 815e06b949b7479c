// Package integration provides integration testing utilities for dvrarchive.
package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// SegmentDuration is the length of every segment served by the fake origin.
const SegmentDuration = 6 * time.Second

// FakeStream describes the DVR window served for one position hash.
type FakeStream struct {
	// Start is the program date-time of the first segment.
	Start time.Time
	// Count is the number of segments in the window.
	Count int
	// SegmentDelay is applied before every segment response.
	SegmentDelay time.Duration
	// FailFirst makes the first attempts at every segment return 503.
	FailFirst int
}

// TestHarness manages a fake DVR origin and, optionally, a dvrarchive process
// archiving from it.
type TestHarness struct {
	t         *testing.T
	origin    *httptest.Server
	outputDir string

	mu       sync.Mutex
	streams  map[string]FakeStream
	requests map[string]int
	attempts map[string]int

	cmd        *exec.Cmd
	cmdDone    chan error
	statusPort int
	cancel     context.CancelFunc
}

// NewTestHarness creates a new test harness with an empty output directory.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	return &TestHarness{
		t:         t,
		outputDir: t.TempDir(),
		streams:   make(map[string]FakeStream),
		requests:  make(map[string]int),
		attempts:  make(map[string]int),
	}
}

// AddStream serves s under /<hash>/profile_0/.
func (h *TestHarness) AddStream(hash string, s FakeStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.streams[hash] = s
}

// StartOrigin starts the fake origin.
func (h *TestHarness) StartOrigin() {
	h.t.Helper()

	h.origin = httptest.NewServer(http.HandlerFunc(h.serve))
	h.t.Logf("fake origin started at %s", h.origin.URL)
}

// BaseURL returns the stream URL template for the fake origin.
func (h *TestHarness) BaseURL() string {
	return h.origin.URL + "/{hash}/profile_0/"
}

// Client returns an HTTP client for the fake origin.
func (h *TestHarness) Client() *http.Client {
	return h.origin.Client()
}

// OutputDir returns the directory archives are written to.
func (h *TestHarness) OutputDir() string {
	return h.outputDir
}

// Requests returns the number of requests made for hash so far.
func (h *TestHarness) Requests(hash string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[hash]
}

func (h *TestHarness) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[1] != "profile_0" {
		http.NotFound(w, r)
		return
	}
	hash, name := parts[0], parts[2]

	h.mu.Lock()
	s, ok := h.streams[hash]
	h.requests[hash]++
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if name == "chunklist_dvr.m3u8" {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(BuildPlaylist(s.Start, s.Count)))
		return
	}

	i, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "media_"), ".ts"))
	if err != nil || i < 0 || i >= s.Count {
		http.NotFound(w, r)
		return
	}

	key := hash + "/" + name
	h.mu.Lock()
	h.attempts[key]++
	attempt := h.attempts[key]
	h.mu.Unlock()

	if attempt <= s.FailFirst {
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}

	if s.SegmentDelay > 0 {
		select {
		case <-time.After(s.SegmentDelay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.Write([]byte(SegmentPayload(hash, i)))
}

// BuildPlaylist renders a DVR chunklist of count segments starting at start.
func BuildPlaylist(start time.Time, count int) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:0\n")
	for i := 0; i < count; i++ {
		at := start.Add(time.Duration(i) * SegmentDuration).UTC()
		fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n", at.Format("2006-01-02T15:04:05.000Z"))
		fmt.Fprintf(&b, "#EXTINF:6.000,\nmedia_%d.ts\n", i)
	}
	return b.String()
}

// SegmentPayload is the body served for segment i of hash.
func SegmentPayload(hash string, i int) string {
	return fmt.Sprintf("%s-%03d;", hash, i)
}

// Archives returns the content of every file in the output directory by name.
func (h *TestHarness) Archives() map[string]string {
	h.t.Helper()

	entries, err := os.ReadDir(h.outputDir)
	if err != nil {
		h.t.Fatalf("failed to read output directory: %v", err)
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(h.outputDir, e.Name()))
		if err != nil {
			h.t.Fatalf("failed to read %s: %v", e.Name(), err)
		}
		files[e.Name()] = string(data)
	}
	return files
}

// ArchivesFor returns the names of the files for position, sorted.
func (h *TestHarness) ArchivesFor(position string) []string {
	h.t.Helper()

	var names []string
	for name := range h.Archives() {
		if strings.HasSuffix(name, "_"+position+".mts") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StartDVRArchive runs the dvrarchive binary against the fake origin. The
// binary is looked up like the one built by
// 'go build -o dvrarchive ./cmd/dvrarchive'; the test is skipped without it.
func (h *TestHarness) StartDVRArchive(args ...string) {
	h.t.Helper()

	binaryPath := h.findDVRArchiveBinary()
	h.statusPort = findAvailablePort(h.t)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.cmd = exec.CommandContext(ctx, binaryPath, args...)
	h.cmd.Dir = h.t.TempDir()
	h.cmd.Env = append(os.Environ(),
		"DVRARCHIVE_BASE_URL="+h.BaseURL(),
		"DVRARCHIVE_RETRY_DELAY=50ms",
		"DVRARCHIVE_HTTP_TIMEOUT=5s",
		fmt.Sprintf("DVRARCHIVE_STATUS_ADDR=localhost:%d", h.statusPort),
	)

	// Capture output for debugging
	h.cmd.Stdout = os.Stdout
	h.cmd.Stderr = os.Stderr

	if err := h.cmd.Start(); err != nil {
		h.t.Fatalf("failed to start dvrarchive: %v", err)
	}

	h.cmdDone = make(chan error, 1)
	go func() { h.cmdDone <- h.cmd.Wait() }()
}

// WaitForStatusServer waits until the status server of the running binary answers.
func (h *TestHarness) WaitForStatusServer(timeout time.Duration) {
	h.t.Helper()
	h.waitForServer(h.StatusURL("/health"), timeout)
}

// StatusURL returns the URL of path on the running binary's status server.
func (h *TestHarness) StatusURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", h.statusPort, path)
}

// FetchStatus fetches path from the status server and returns the body.
func (h *TestHarness) FetchStatus(path string) string {
	h.t.Helper()

	resp, err := http.Get(h.StatusURL(path))
	if err != nil {
		h.t.Fatalf("failed to fetch %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("failed to read %s body: %v", path, err)
	}

	return string(body)
}

// Interrupt sends SIGINT to the running binary.
func (h *TestHarness) Interrupt() {
	h.t.Helper()

	if err := h.cmd.Process.Signal(syscall.SIGINT); err != nil {
		h.t.Fatalf("failed to interrupt dvrarchive: %v", err)
	}
}

// WaitForExit waits for the binary to exit and returns its exit code.
func (h *TestHarness) WaitForExit(timeout time.Duration) int {
	h.t.Helper()

	select {
	case err := <-h.cmdDone:
		h.cmdDone = nil
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			return 0
		case errors.As(err, &exitErr):
			return exitErr.ExitCode()
		default:
			h.t.Fatalf("dvrarchive failed: %v", err)
		}
	case <-time.After(timeout):
		h.t.Fatalf("dvrarchive did not exit within %v", timeout)
	}
	return -1
}

// Cleanup stops all running services.
func (h *TestHarness) Cleanup() {
	h.t.Helper()

	if h.cancel != nil {
		h.cancel()
	}
	if h.cmdDone != nil {
		<-h.cmdDone
	}

	if h.origin != nil {
		h.origin.Close()
	}
}

// findDVRArchiveBinary locates the dvrarchive binary.
func (h *TestHarness) findDVRArchiveBinary() string {
	h.t.Helper()

	candidates := []string{
		"../../dvrarchive",            // From test/integration
		"./dvrarchive",                // From project root
		"../dvrarchive",               // From test directory
		"./cmd/dvrarchive/dvrarchive", // Built in place
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, _ := filepath.Abs(path)
			h.t.Logf("Found dvrarchive binary at: %s", absPath)
			return absPath
		}
	}

	h.t.Skip("dvrarchive binary not found. Run 'go build -o dvrarchive ./cmd/dvrarchive' first")
	return ""
}

// waitForServer waits for a server to become available.
func (h *TestHarness) waitForServer(url string, timeout time.Duration) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	h.t.Fatalf("server at %s did not become available within %v", url, timeout)
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// WaitForCondition polls until a condition is met or timeout occurs.
func (h *TestHarness) WaitForCondition(condition func() bool, timeout time.Duration, description string) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}

		<-ticker.C
		if time.Now().After(deadline) {
			h.t.Fatalf("timeout waiting for condition: %s", description)
		}
	}
}
