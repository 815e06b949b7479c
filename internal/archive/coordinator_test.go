package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agleyzer/dvrarchive/internal/config"
	"github.com/agleyzer/dvrarchive/internal/logging"
	"github.com/agleyzer/dvrarchive/internal/timerange"
)

func TestCoordinator_RunsEveryPosition(t *testing.T) {
	origin := newTestOrigin(t, t0, 3)
	a, dir := newTestArchiver(t, origin, NewHalt())
	logger, _ := logging.Discard()

	streams := []config.Stream{origin.stream("tl"), origin.stream("bl"), origin.stream("ce")}
	c := NewCoordinator(a, streams, logger)

	results, err := c.Run(context.Background(), window(t0, t0.Add(18*time.Second)))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != len(streams) {
		t.Fatalf("results = %d, want %d", len(results), len(streams))
	}
	for i, res := range results {
		if res.Position != streams[i].Code {
			t.Errorf("result %d position = %s, want %s", i, res.Position, streams[i].Code)
		}
		want := filepath.Join(dir, PermanentName(t0, t0.Add(18*time.Second), streams[i].Code))
		if res.Path != want {
			t.Errorf("result %d path = %s, want %s", i, res.Path, want)
		}
	}
}

func TestCoordinator_PrevWithoutArchive(t *testing.T) {
	origin := newTestOrigin(t, t0, 3)
	a, dir := newTestArchiver(t, origin, NewHalt())
	logger, _ := logging.Discard()

	// Only one of the two positions has history.
	touch(t, dir, PermanentName(t0.Add(-time.Minute), t0, "tl"))

	c := NewCoordinator(a, []config.Stream{origin.stream("tl"), origin.stream("bl")}, logger)

	w := timerange.Window{Start: timerange.Bound{Kind: timerange.Prev}, End: timerange.Bound{Kind: timerange.Latest}}
	_, err := c.Run(context.Background(), w)

	var noPrior *NoPriorFileError
	if !errors.As(err, &noPrior) {
		t.Fatalf("expected *NoPriorFileError, got %v", err)
	}
	if noPrior.Position != "bl" {
		t.Errorf("position = %s, want bl", noPrior.Position)
	}
	if n := origin.requestCount(); n != 0 {
		t.Errorf("requests = %d, want none before PREV is resolved", n)
	}
}

func TestCoordinator_ContinuesFromPrev(t *testing.T) {
	origin := newTestOrigin(t, t0, 5)
	a, dir := newTestArchiver(t, origin, NewHalt())
	logger, _ := logging.Discard()

	prevEnd := t0.Add(12 * time.Second)
	touch(t, dir, PermanentName(t0, prevEnd, "tl"))

	c := NewCoordinator(a, []config.Stream{origin.stream("tl")}, logger)

	w := timerange.Window{Start: timerange.Bound{Kind: timerange.Prev}, End: timerange.Bound{Kind: timerange.Latest}}
	results, err := c.Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res := results[0]
	if !res.Start.Equal(prevEnd) || !res.End.Equal(t0.Add(30*time.Second)) {
		t.Errorf("covered [%v, %v), want [%v, %v)", res.Start, res.End, prevEnd, t0.Add(30*time.Second))
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), payload(2)+payload(3)+payload(4); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestCoordinator_JoinsErrors(t *testing.T) {
	origin := newTestOrigin(t, t0, 2)
	a, _ := newTestArchiver(t, origin, NewHalt())
	logger, _ := logging.Discard()

	broken := origin.stream("bl")
	broken.BaseURL = "http://%zz/"

	c := NewCoordinator(a, []config.Stream{origin.stream("tl"), broken}, logger)

	results, err := c.Run(context.Background(), window(t0, t0.Add(12*time.Second)))
	if err == nil {
		t.Fatal("expected error from the broken position")
	}

	if results[0].State != StateDone {
		t.Errorf("tl state = %s, want %s", results[0].State, StateDone)
	}
	if results[1].State != StateFailed {
		t.Errorf("bl state = %s, want %s", results[1].State, StateFailed)
	}
}
