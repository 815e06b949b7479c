// The dvrarchive command saves a time range of every camera position's live
// DVR stream into one MPEG-TS file per position.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/agleyzer/dvrarchive/internal/archive"
	"github.com/agleyzer/dvrarchive/internal/config"
	"github.com/agleyzer/dvrarchive/internal/logging"
	"github.com/agleyzer/dvrarchive/internal/metrics"
	"github.com/agleyzer/dvrarchive/internal/server"
	"github.com/agleyzer/dvrarchive/internal/timerange"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
)

const longUsage = `Save a time range of every camera position's DVR stream into one
MPEG-TS file per position.

Input time in JST unless otherwise specified.

<time range> examples:
    Download from 2023-11-10 12:30:00 JST to 2023-11-10 12:40:00 JST:
        2023-11-10T12:30:00/2023-11-10T12:40:00
    Download 10 minutes starting from 2023-11-10 12:30:00 JST (same as above):
        2023-11-10T12:30:00/10m
    Download 1 hour ending at 2023-11-10 12:30:00 JST:
        1h/2023-11-10T12:30:00
    Download from 2023-11-10 12:30:00 JST until now:
        2023-11-10T12:30:00
    Download the latest 1 hour, 2 minutes and 3.456 seconds:
        1h2m3.456s
    Download from 2023-11-10 12:30:00 UTC until now:
        2023-11-10T12:30:00+00:00
    Download from where the previous files in the directory end until now:
        PREV
    Download everything the DVR window still holds:
        EARLIEST/LATEST

Press Ctrl-C once to stop after the segments in flight and keep what was
written. Press it again to quit immediately.`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		statusAddr string
	)

	cmd := &cobra.Command{
		Use:     "dvrarchive <output directory> <time range>",
		Short:   "Archive a time range of live DVR streams",
		Long:    longUsage,
		Version: version,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Arguments are fine from here on, failures are not usage errors
			cmd.SilenceUsage = true
			return run(args[0], args[1], verbose, statusAddr)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&statusAddr, "status-addr", "", "Serve /health and /metrics on this address (overrides "+config.EnvStatusAddr+")")

	return cmd
}

func run(dir, rangeExpr string, verbose bool, statusAddr string) error {
	if err := config.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := config.FromEnv()
	if verbose {
		cfg.LogLevel = "debug"
	}
	if statusAddr != "" {
		cfg.StatusAddr = statusAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr).With("run_id", runID)
	progress := logging.NewProgress(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	window, err := timerange.Parse(rangeExpr)
	if err != nil {
		return err
	}

	dir = trimDir(dir)
	if info, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to open output directory: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}

	logger.Info("dvrarchive starting", "version", version, "dir", dir, "window", window)

	halt := archive.NewHalt()
	m := metrics.New()

	// The first signal lets every position finish its current segment, the
	// second one gets the default behavior and kills the process.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		signal.Stop(sigChan)
		logger.Info("received signal, finishing current segments", "signal", sig)
		halt.Raise()
	}()

	statusCtx, stopStatus := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		stopStatus()
		wg.Wait()
	}()

	if cfg.StatusAddr != "" {
		srv := server.New(cfg.StatusAddr, runID, halt, m, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(statusCtx); err != nil {
				logger.Error("status server shutdown failed", "error", err)
			}
		}()
	}

	archiver := archive.New(archive.Config{
		OutputDir:  dir,
		RetryDelay: cfg.RetryDelay,
		QueueDepth: cfg.QueueDepth,
		Client:     &http.Client{Timeout: cfg.HTTPTimeout},
		Metrics:    m,
	}, halt, logger, progress)

	coordinator := archive.NewCoordinator(archiver, config.Streams(cfg.BaseURL, config.Positions), logger)

	// Interrupts go through halt, the context is never cancelled
	results, err := coordinator.Run(context.Background(), window)
	for _, res := range results {
		logger.Info("position finished",
			"position", res.Position,
			"state", res.State,
			"segments", res.Segments,
			"file", res.Path,
		)
	}

	return err
}

// trimDir drops one trailing path separator, in either style. A bare root
// is kept as it is.
func trimDir(dir string) string {
	if len(dir) > 1 && (strings.HasSuffix(dir, "/") || strings.HasSuffix(dir, "\\")) {
		return dir[:len(dir)-1]
	}
	return dir
}
