package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agleyzer/dvrarchive/internal/config"
	"github.com/agleyzer/dvrarchive/internal/timerange"
)

// Coordinator runs one Archiver pipeline per stream, all in parallel.
type Coordinator struct {
	archiver *Archiver
	streams  []config.Stream
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator for streams.
func NewCoordinator(archiver *Archiver, streams []config.Stream, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		archiver: archiver,
		streams:  streams,
		logger:   logger,
	}
}

// ResolvePrev looks up the last archived end of every stream in dir. It fails
// with a *NoPriorFileError as soon as one stream has no finished archive.
func ResolvePrev(dir string, streams []config.Stream) (map[string]time.Time, error) {
	prev := make(map[string]time.Time, len(streams))
	for _, s := range streams {
		end, err := LastArchivedEnd(dir, s.Code)
		if err != nil {
			return nil, err
		}
		prev[s.Code] = end
	}
	return prev, nil
}

// Run archives w for every stream and waits for all of them. PREV is
// resolved up front, so a missing archive fails the run before any network
// activity. Results are in stream order; the error joins every failed
// position.
func (c *Coordinator) Run(ctx context.Context, w timerange.Window) ([]Result, error) {
	var prev map[string]time.Time
	if w.UsesPrev() {
		var err error
		prev, err = ResolvePrev(c.archiver.cfg.OutputDir, c.streams)
		if err != nil {
			return nil, err
		}
	}

	c.logger.Info("archiving", "window", w, "positions", len(c.streams))

	results := make([]Result, len(c.streams))
	errs := make([]error, len(c.streams))

	var wg sync.WaitGroup
	for i, s := range c.streams {
		wg.Add(1)
		go func(i int, s config.Stream) {
			defer wg.Done()
			results[i], errs[i] = c.archiver.Run(ctx, s, w, prev[s.Code])
		}(i, s)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Error("archiving finished with errors", "error", err)
	} else {
		c.logger.Info("archiving finished")
	}

	return results, err
}
