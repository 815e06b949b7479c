package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/dvrarchive/internal/archive"
	"github.com/agleyzer/dvrarchive/internal/metrics"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func createTestServer() (*Server, *archive.Halt, *metrics.Metrics) {
	halt := archive.NewHalt()
	m := metrics.New()
	return New(":0", "run-1", halt, m, createTestLogger()), halt, m
}

func TestNew(t *testing.T) {
	srv, halt, m := createTestServer()

	if srv.halt != halt {
		t.Error("Halt not set correctly")
	}
	if srv.metrics != m {
		t.Error("Metrics not set correctly")
	}
	if srv.addr != ":0" {
		t.Error("Address not set correctly")
	}
	if srv.runID != "run-1" {
		t.Error("Run ID not set correctly")
	}
}

func TestHandleHealth(t *testing.T) {
	srv, halt, _ := createTestServer()

	tests := []struct {
		name       string
		raise      bool
		wantStatus string
	}{
		{name: "running", raise: false, wantStatus: "ok"},
		{name: "halting", raise: true, wantStatus: "halting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.raise {
				halt.Raise()
			}

			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			srv.Router().ServeHTTP(w, req)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Expected status 200, got %d", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			var health map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				t.Fatalf("Failed to parse JSON response: %v", err)
			}

			if health["status"] != tt.wantStatus {
				t.Errorf("Expected status '%s', got '%v'", tt.wantStatus, health["status"])
			}
			if health["halted"] != tt.raise {
				t.Errorf("Expected halted %v, got %v", tt.raise, health["halted"])
			}
			if health["run_id"] != "run-1" {
				t.Errorf("Expected run_id 'run-1', got '%v'", health["run_id"])
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _, m := createTestServer()
	m.AddSegmentWritten("tl", 188)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `dvrarchive_bytes_written_total{position="tl"} 188`) {
		t.Errorf("Metrics output missing bytes counter:\n%s", w.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := createTestServer()

	req := httptest.NewRequest("GET", "/playlist.m3u8", nil)
	w := httptest.NewRecorder()

	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	srv, _, _ := createTestServer()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test"))
	})

	wrapped := srv.loggingMiddleware(handler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	wrapped.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "test" {
		t.Errorf("Expected body 'test', got '%s'", w.Body.String())
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	wrapped := &responseWriter{
		ResponseWriter: httptest.NewRecorder(),
		statusCode:     http.StatusOK,
	}

	wrapped.WriteHeader(http.StatusNotFound)

	if wrapped.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", wrapped.statusCode)
	}
}

func TestServer_Integration(t *testing.T) {
	srv, _, _ := createTestServer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			t.Errorf("Expected nil or ErrServerClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Server did not stop within timeout")
	}
}

func TestHandleHealth_ConcurrentRequests(t *testing.T) {
	srv, halt, _ := createTestServer()
	router := srv.Router()

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(i int) {
			if i == 5 {
				halt.Raise()
			}

			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
