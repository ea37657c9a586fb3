package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/testevents"
)

// Default configuration constants.
const (
	defaultSessions          = 10
	defaultShuffleEvery      = 4
	defaultFilenameOnlyEvery = 5
	defaultTimeout           = 10 * time.Second
	defaultTestTimeout       = 5 * time.Minute
)

func main() {
	var (
		out               = flag.String("out", "scenario", "Output directory")
		sessions          = flag.Int("sessions", defaultSessions, "Number of back-to-back sessions")
		shuffleEvery      = flag.Int("shuffle-every", defaultShuffleEvery, "Make every Nth session a six-round shuffle")
		filenameOnlyEvery = flag.Int("filename-only-every", defaultFilenameOnlyEvery, "Write every Nth recording without metadata")
		seed              = flag.Uint64("seed", 1, "Generator seed")
		baseURL           = flag.String("url", "", "Base URL of the read API to verify against")
		timeout           = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile           = flag.String("log", "", "Log file for tool output (default: test_log_TIMESTAMP.log)")
		verbose           = flag.Bool("verbose", false, "Enable verbose logging")
		help              = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if err := testevents.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := testevents.Config{
		OutputDir:         *out,
		Sessions:          *sessions,
		ShuffleEvery:      *shuffleEvery,
		FilenameOnlyEvery: *filenameOnlyEvery,
		Seed:              *seed,
		BaseURL:           *baseURL,
		Timeout:           *timeout,
		LogFile:           *logFile,
		Verbose:           *verbose,
	}

	if _, err := testevents.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Scenario failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
