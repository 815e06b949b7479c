package archive

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// gatedWriter blocks every Write until release is closed.
type gatedWriter struct {
	release chan struct{}
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestSink_BlocksWhenQueueFull(t *testing.T) {
	w := &gatedWriter{release: make(chan struct{})}
	s := newSink(w, 1)

	// The writer takes the first segment and stalls on it, the second fills
	// the queue.
	if err := s.Write([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write([]byte("b")); err != nil {
		t.Fatal(err)
	}
	if !s.Full() {
		t.Fatal("expected queue to be full")
	}

	written := make(chan error, 1)
	go func() { written <- s.Write([]byte("c")) }()

	select {
	case err := <-written:
		t.Fatalf("Write returned while the queue was full: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(w.release)
	if err := <-written; err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if got := w.buf.String(); got != "abc" {
		t.Errorf("written = %q, want abc", got)
	}
}

func TestSink_ReportsWriterError(t *testing.T) {
	s := newSink(failingWriter{}, 1)

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = s.Write([]byte("x"))
		time.Sleep(time.Millisecond)
	}
	if err == nil {
		t.Fatal("expected Write to report the writer error")
	}

	if err := s.Close(); err == nil || err.Error() != "disk full" {
		t.Errorf("Close error = %v, want disk full", err)
	}
}
