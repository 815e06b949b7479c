// Package archive downloads the part of each position's DVR playlist that
// falls in a requested window and stores it as one MPEG-TS file per position.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/agleyzer/dvrarchive/internal/config"
	"github.com/agleyzer/dvrarchive/internal/metrics"
	"github.com/agleyzer/dvrarchive/internal/parser"
	"github.com/agleyzer/dvrarchive/internal/playlist"
	"github.com/agleyzer/dvrarchive/internal/segment"
	"github.com/agleyzer/dvrarchive/internal/timefmt"
	"github.com/agleyzer/dvrarchive/internal/timerange"
	"github.com/hashicorp/go-hclog"
)

// errHalted is returned by the retry loop when the halt flag was raised
// between attempts.
var errHalted = errors.New("halted")

// Config holds the settings shared by all positions.
type Config struct {
	// OutputDir receives provisional and permanent files.
	OutputDir string

	// RetryDelay is the pause between failed segment downloads.
	RetryDelay time.Duration

	// QueueDepth is the number of fetched segments allowed to wait for the disk.
	QueueDepth int

	Client  *http.Client
	Metrics *metrics.Metrics
}

// Result describes how a position's run ended.
type Result struct {
	Position  string
	State     State
	Selection playlist.Selection

	// Path is the permanent file, empty when nothing was written.
	Path string

	// Start and End bound the written segments.
	Start time.Time
	End   time.Time

	Segments int
	Bytes    int64

	// Halted is set when the halt flag stopped the run before the end of
	// the selection.
	Halted bool
}

// Archiver runs the per-position pipeline: fetch the playlist, select the
// window, download segments in order into a provisional file and rename it
// once the last segment is known.
type Archiver struct {
	cfg      Config
	halt     *Halt
	logger   *slog.Logger
	progress hclog.Logger
}

// New creates an Archiver. progress receives one line per written segment.
func New(cfg Config, halt *Halt, logger *slog.Logger, progress hclog.Logger) *Archiver {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 1
	}

	return &Archiver{
		cfg:      cfg,
		halt:     halt,
		logger:   logger,
		progress: progress,
	}
}

// Run archives w for one stream. prevEnd is only used when w starts at PREV.
// The context aborts the run outright; the halt flag stops it after the
// segment in flight and still produces a permanent file.
func (a *Archiver) Run(ctx context.Context, stream config.Stream, w timerange.Window, prevEnd time.Time) (Result, error) {
	r := &positionRun{
		Archiver: a,
		stream:   stream,
		logger:   a.logger.With("position", stream.Code),
		progress: a.progress.Named(stream.Code),
		result:   Result{Position: stream.Code},
	}

	if err := r.execute(ctx, w, prevEnd); err != nil {
		r.transition(StateFailed)
		return r.result, fmt.Errorf("position %s: %w", stream.Code, err)
	}

	return r.result, nil
}

// positionRun is the state of a single Run call.
type positionRun struct {
	*Archiver
	stream   config.Stream
	logger   *slog.Logger
	progress hclog.Logger
	result   Result
}

func (r *positionRun) transition(s State) {
	prev := r.result.State
	r.result.State = s
	r.cfg.Metrics.SetState(r.stream.Code, prev.String(), s.String())
	r.logger.Debug("state change", "from", prev, "to", s)
}

func (r *positionRun) execute(ctx context.Context, w timerange.Window, prevEnd time.Time) error {
	r.transition(StateFetchingPlaylist)
	segs, err := parser.FetchPlaylist(ctx, r.cfg.Client, r.stream.BaseURL, r.logger)
	if err != nil {
		return err
	}

	r.transition(StateSelecting)
	sel, err := playlist.Select(w, segs, prevEnd)
	if err != nil {
		return err
	}
	r.result.Selection = sel

	if sel.Empty() {
		r.transition(StateEmpty)
		r.logger.Info("nothing to download",
			"window", w,
			"requested_start", formatInstant(sel.StartAt),
			"latest_available", formatInstant(sel.LatestEnd),
		)
		return nil
	}

	selected := segs[sel.Start:sel.End]
	r.logStart(w, segs[0], selected[0], prevEnd)

	return r.write(ctx, selected)
}

func (r *positionRun) logStart(w timerange.Window, earliest, first segment.Segment, prevEnd time.Time) {
	attrs := []any{
		"earliest_available", timefmt.Format(earliest.Start),
		"start", timefmt.Format(first.Start),
		"segments", r.result.Selection.Len(),
	}
	if w.UsesPrev() {
		attrs = append(attrs, "previous_end", timefmt.Format(prevEnd))
	}
	r.logger.Info("archive started", attrs...)

	if w.UsesPrev() && !first.Start.Equal(prevEnd) {
		r.logger.Warn("gap between previous file and this one",
			"previous_end", timefmt.Format(prevEnd),
			"start", timefmt.Format(first.Start),
		)
	}
}

func (r *positionRun) write(ctx context.Context, segs []segment.Segment) error {
	r.transition(StateWriting)

	first := segs[0]
	partial := filepath.Join(r.cfg.OutputDir, ProvisionalName(first.Start, r.stream.Code))
	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create provisional file: %w", err)
	}

	out := newSink(f, r.cfg.QueueDepth)

	var (
		last    segment.Segment
		loopErr error
	)
	for _, seg := range segs {
		if r.halt.Raised() {
			r.result.Halted = true
			break
		}

		data, err := r.fetchSegment(ctx, seg)
		if errors.Is(err, errHalted) {
			r.result.Halted = true
			break
		}
		if err != nil {
			loopErr = err
			break
		}

		if out.Full() {
			r.cfg.Metrics.IncSinkWaits(r.stream.Code)
			r.progress.Debug("waiting for writer to drain", "queue_depth", r.cfg.QueueDepth)
		}
		if err := out.Write(data); err != nil {
			loopErr = fmt.Errorf("failed to write %s: %w", partial, err)
			break
		}

		last = seg
		r.result.Segments++
		r.result.Bytes += int64(len(data))
		r.cfg.Metrics.AddSegmentWritten(r.stream.Code, len(data))
		r.progress.Info("segment", "start", timefmt.Format(seg.Start), "path", seg.Path)
	}

	// Drain the queue before touching the file name.
	if err := out.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("failed to write %s: %w", partial, err)
	}
	if err := f.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("failed to close %s: %w", partial, err)
	}
	if loopErr != nil {
		return loopErr
	}

	if r.result.Halted {
		r.transition(StateCancelling)
		r.logger.Info("halt requested, finishing early", "written", r.result.Segments, "selected", len(segs))
	}

	return r.finish(partial, first, last)
}

func (r *positionRun) finish(partial string, first, last segment.Segment) error {
	r.transition(StateFinalizing)

	if r.result.Segments == 0 {
		if err := os.Remove(partial); err != nil {
			return fmt.Errorf("failed to remove empty provisional file: %w", err)
		}
		r.logger.Info("no segments written, provisional file removed")
		r.transition(StateDone)
		return nil
	}

	final := filepath.Join(r.cfg.OutputDir, PermanentName(first.Start, last.End(), r.stream.Code))
	existed, err := finalize(partial, final)
	if err != nil {
		return err
	}
	if existed {
		r.logger.Warn("archive already exists, keeping it and discarding the new copy", "file", final)
	}

	r.result.Path = final
	r.result.Start = first.Start
	r.result.End = last.End()
	r.cfg.Metrics.IncFilesFinalized(r.stream.Code)

	r.logger.Info("archive finished",
		"start", timefmt.Format(r.result.Start),
		"end", timefmt.Format(r.result.End),
		"segments", r.result.Segments,
		"bytes", r.result.Bytes,
		"file", final,
	)
	r.transition(StateDone)

	return nil
}

// fetchSegment downloads seg, retrying with a fixed delay until it succeeds,
// the halt flag is raised between attempts, or ctx is done.
func (r *positionRun) fetchSegment(ctx context.Context, seg segment.Segment) ([]byte, error) {
	segURL, err := parser.SegmentURL(r.stream.BaseURL, seg.Path)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		data, err := r.download(ctx, segURL)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.logger.Error("segment fetch failed, retrying",
			"error", &SegmentFetchError{Position: r.stream.Code, Path: seg.Path, Attempt: attempt, Err: err},
			"retry_in", r.cfg.RetryDelay,
		)
		r.cfg.Metrics.IncFetchRetries(r.stream.Code)

		timer := time.NewTimer(r.cfg.RetryDelay)
		select {
		case <-timer.C:
		case <-r.halt.Done():
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}

		if r.halt.Raised() {
			return nil, errHalted
		}
	}
}

func (r *positionRun) download(ctx context.Context, segURL string) ([]byte, error) {
	body, err := parser.Fetch(ctx, r.cfg.Client, segURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &parser.FetchError{URL: segURL, Err: err}
	}

	return data, nil
}

// finalize renames partial to final without replacing an existing file. If
// final is already there, partial is a duplicate and is removed.
func finalize(partial, final string) (existed bool, err error) {
	_, err = os.Stat(final)
	switch {
	case err == nil:
		if err := os.Remove(partial); err != nil {
			return true, fmt.Errorf("failed to remove duplicate provisional file: %w", err)
		}
		return true, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("failed to check %s: %w", final, err)
	}

	if err := os.Rename(partial, final); err != nil {
		return false, fmt.Errorf("failed to rename provisional file: %w", err)
	}

	return false, nil
}

func formatInstant(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return timefmt.Format(t)
}
