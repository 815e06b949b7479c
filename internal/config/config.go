// Package config holds the archiver's runtime settings and the fixed list of
// monitored camera positions.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvLogLevel    = "DVRARCHIVE_LOG_LEVEL"
	EnvLogFormat   = "DVRARCHIVE_LOG_FORMAT"
	EnvRetryDelay  = "DVRARCHIVE_RETRY_DELAY"
	EnvHTTPTimeout = "DVRARCHIVE_HTTP_TIMEOUT"
	EnvQueueDepth  = "DVRARCHIVE_QUEUE_DEPTH"
	EnvStatusAddr  = "DVRARCHIVE_STATUS_ADDR"
	EnvBaseURL     = "DVRARCHIVE_BASE_URL"
)

// DefaultBaseURL is the origin layout for all positions; {hash} is replaced
// by the position's access hash.
const DefaultBaseURL = "https://bcovlive-a.akamaihd.net/{hash}/us-east-1/6415716420001/profile_0/"

// Config holds the settings for an archive run.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is text or json.
	LogFormat string
	// RetryDelay is the fixed pause between attempts to fetch a segment.
	RetryDelay time.Duration
	// HTTPTimeout bounds every single HTTP request.
	HTTPTimeout time.Duration
	// QueueDepth is how many fetched segments may wait for the file writer.
	QueueDepth int
	// StatusAddr enables the status server when non-empty (host:port).
	StatusAddr string
	// BaseURL is the stream URL template containing {hash}.
	BaseURL string
}

// Load reads .env style files into the process environment. With no paths,
// ".env" is used. A missing file is reported but callers may ignore it.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the environment. Unset or unparsable values
// are left zero and filled in by Validate.
func FromEnv() Config {
	return Config{
		LogLevel:    GetEnv(EnvLogLevel, ""),
		LogFormat:   GetEnv(EnvLogFormat, ""),
		RetryDelay:  GetEnvDuration(EnvRetryDelay, 0),
		HTTPTimeout: GetEnvDuration(EnvHTTPTimeout, 0),
		QueueDepth:  GetEnvInt(EnvQueueDepth, 0),
		StatusAddr:  GetEnv(EnvStatusAddr, ""),
		BaseURL:     GetEnv(EnvBaseURL, ""),
	}
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1 * time.Second
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.QueueDepth == 0 {
		c.QueueDepth = 8
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must be positive, got %s", c.RetryDelay)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("queue depth must be at least 1, got %d", c.QueueDepth)
	}

	if !strings.Contains(c.BaseURL, "{hash}") {
		return fmt.Errorf("base URL %q has no {hash} placeholder", c.BaseURL)
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}

	return nil
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration is GetEnvInt for time.ParseDuration values such as "500ms".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
