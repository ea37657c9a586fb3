package testevents

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Directories under Config.OutputDir.
const (
	LogsDir       = "logs"
	RecordingsDir = "recordings"
)

// Run generates a scenario, writes it under cfg.OutputDir and, when
// cfg.BaseURL is set, checks the read API against it.
func Run(ctx context.Context, cfg Config) (*Scenario, error) {
	stats := &Stats{StartTime: time.Now()}

	sc := Generate(cfg)
	stats.SessionsGenerated = len(sc.Sessions)

	logger.Get().Info(ctx, "generated scenario",
		logger.Int("sessions", len(sc.Sessions)),
		logger.Time("start", sc.Config.Start),
		logger.String("outputDir", sc.Config.OutputDir),
	)

	if err := sc.WriteFiles(ctx, stats); err != nil {
		return sc, fmt.Errorf("write scenario: %w", err)
	}

	if sc.Config.BaseURL != "" {
		if err := checkServiceHealth(ctx, sc.Config); err != nil {
			return sc, fmt.Errorf("service health check failed: %w", err)
		}
		if err := verifyMatches(ctx, sc, stats); err != nil {
			return sc, fmt.Errorf("result verification failed: %w", err)
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return sc, nil
}

// WriteFiles writes the combat log under logs/ and, per session, a video
// placeholder plus recorder metadata under recordings/.
func (sc *Scenario) WriteFiles(ctx context.Context, stats *Stats) error {
	if stats == nil {
		stats = &Stats{}
	}
	logsDir := filepath.Join(sc.Config.OutputDir, LogsDir)
	recDir := filepath.Join(sc.Config.OutputDir, RecordingsDir)
	for _, dir := range []string{logsDir, recDir} {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	n, err := sc.writeLog(filepath.Join(logsDir, sc.LogName()))
	if err != nil {
		return err
	}
	stats.LinesWritten = n

	for i := range sc.Sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		video := filepath.Join(recDir, sc.VideoName(i))
		if err := os.WriteFile(video, nil, filePermission); err != nil {
			return fmt.Errorf("failed to write video placeholder: %w", err)
		}
		stats.VideosWritten++

		if sc.Sessions[i].FilenameOnly {
			continue
		}
		raw, err := json.MarshalIndent(sc.Metadata(i), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal metadata %d: %w", i, err)
		}
		meta := filepath.Join(recDir, sc.RecordingID(i)+".json")
		if err := os.WriteFile(meta, raw, filePermission); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		stats.MetadataWritten++
	}

	logger.Get().Info(ctx, "scenario written",
		logger.String("log", sc.LogName()),
		logger.Int("lines", stats.LinesWritten),
		logger.Int("videos", stats.VideosWritten),
		logger.Int("metadata", stats.MetadataWritten),
	)
	return nil
}

func (sc *Scenario) writeLog(path string) (int, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return 0, fmt.Errorf("failed to create log: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	w := bufio.NewWriter(file)
	lines := sc.Lines()
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			return 0, fmt.Errorf("failed to write log line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush log: %w", err)
	}
	return len(lines), nil
}

// displayFinalStats logs the final statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	logger.Get().Info(ctx, "final statistics",
		logger.Int("sessionsGenerated", stats.SessionsGenerated),
		logger.Int("linesWritten", stats.LinesWritten),
		logger.Int("videosWritten", stats.VideosWritten),
		logger.Int("metadataWritten", stats.MetadataWritten),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatched", stats.Mismatched),
		logger.Int("missing", stats.Missing),
		logger.Duration("duration", stats.Duration))
}
