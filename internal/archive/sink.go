package archive

import "io"

// sink hands complete segments to a writer goroutine through a bounded
// queue. Write blocks while the queue is full, so fetching can never run
// more than the queue depth ahead of the disk.
type sink struct {
	w      io.Writer
	queue  chan []byte
	failed chan struct{}
	done   chan struct{}
	// err is written only by run, and read only after failed or done is closed.
	err error
}

func newSink(w io.Writer, depth int) *sink {
	s := &sink{
		w:      w,
		queue:  make(chan []byte, depth),
		failed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)

	for p := range s.queue {
		if s.err != nil {
			continue
		}
		if _, err := s.w.Write(p); err != nil {
			s.err = err
			close(s.failed)
		}
	}
}

// Full reports whether the next Write has to wait for the writer to drain.
func (s *sink) Full() bool {
	return len(s.queue) == cap(s.queue)
}

// Write queues p, waiting for room if the writer is behind. It returns the
// writer's error once one has occurred.
func (s *sink) Write(p []byte) error {
	select {
	case <-s.failed:
		return s.err
	default:
	}

	select {
	case s.queue <- p:
		return nil
	case <-s.failed:
		return s.err
	}
}

// Close waits until every queued segment has been written.
func (s *sink) Close() error {
	close(s.queue)
	<-s.done
	return s.err
}
