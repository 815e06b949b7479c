// Package parser provides DVR playlist fetching and parsing.
package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agleyzer/dvrarchive/internal/segment"
	"github.com/grafov/m3u8"
)

// PlaylistName is the DVR chunklist served under every stream base URL.
const PlaylistName = "chunklist_dvr.m3u8"

// FetchError reports a failed HTTP fetch of a playlist or segment.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchPlaylist fetches the DVR playlist under baseURL and parses it.
// Failures are not retried.
func FetchPlaylist(ctx context.Context, client *http.Client, baseURL string, logger *slog.Logger) ([]segment.Segment, error) {
	playlistURL, err := SegmentURL(baseURL, PlaylistName)
	if err != nil {
		return nil, err
	}

	body, err := Fetch(ctx, client, playlistURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	segments, err := Parse(body, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist %s: %w", playlistURL, err)
	}

	return segments, nil
}

// Parse decodes a DVR media playlist. A program date-time applies to the next
// media line and carries over to following lines that have none of their own.
// Deviations from the nominal 6 second cadence are logged, not rejected.
func Parse(r io.Reader, logger *slog.Logger) ([]segment.Segment, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected media playlist, got master playlist")
	}

	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, fmt.Errorf("unexpected playlist type")
	}

	var (
		segments  []segment.Segment
		timestamp time.Time
	)
	for _, seg := range mediaPlaylist.Segments {
		if seg == nil {
			break
		}

		if !seg.ProgramDateTime.IsZero() {
			timestamp = seg.ProgramDateTime
			if n := len(segments); n > 0 {
				if gap := timestamp.Sub(segments[n-1].Start); gap != segment.Nominal {
					logger.Warn("segment timestamp difference isn't 6 seconds",
						"gap", gap,
						"previous", segments[n-1].Path,
						"path", seg.URI,
					)
				}
			}
		}

		if timestamp.IsZero() {
			return nil, fmt.Errorf("segment %q has no program date-time", seg.URI)
		}

		s := segment.Segment{
			Start:    timestamp,
			Duration: secondsToDuration(seg.Duration),
			Path:     seg.URI,
		}
		if s.Duration != segment.Nominal {
			logger.Warn("segment length isn't 6 seconds",
				"duration", s.Duration,
				"path", s.Path,
			)
		}

		segments = append(segments, s)
	}

	return segments, nil
}

// Fetch issues a GET for rawURL and returns the body of a 200 response.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	return resp.Body, nil
}

// SegmentURL resolves a playlist-relative path against the stream base URL.
func SegmentURL(baseURL, path string) (string, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return resolveURL(baseURL, path)
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	resolved := base.ResolveReference(rel)
	return resolved.String(), nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
