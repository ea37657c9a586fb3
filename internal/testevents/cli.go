package testevents

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0o600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the test events tool.
func ShowHelp() {
	os.Stdout.WriteString(`Arena Scenario Generator
========================

Writes a synthetic combat log and matching recorder files, then optionally
checks a running read API against them.

Usage:
  go run ./cmd/test-events [options]

Options:
  -out string
        Output directory; logs/ and recordings/ are created inside (default "scenario")
  -sessions int
        Number of back-to-back sessions (default 10)
  -shuffle-every int
        Make every Nth session a six-round shuffle (default 4, 0 disables)
  -filename-only-every int
        Write every Nth recording without metadata (default 5, 0 disables)
  -seed uint
        Generator seed (default 1)
  -url string
        Base URL of the read API to verify against (default: skip verification)
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Log file for tool output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Write a scenario, resolve it, then verify through the API
  go run ./cmd/test-events -out /tmp/arena
  ARENA_LOGS_DIR=/tmp/arena/logs ARENA_RECORDINGS_DIR=/tmp/arena/recordings go run ./cmd/arenasync run
  go run ./cmd/test-events -out /tmp/arena -url http://localhost:9080
`)
}
