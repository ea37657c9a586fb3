package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/eventlog"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/index"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/repository"
	service "github.com/Phlares/wow-arena-analysis/internal/app"
	"github.com/Phlares/wow-arena-analysis/internal/config"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

func newRunCommand(cc *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match every recording to its combat-log session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cc.ensureConfig(cmd)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cfg, dryRun, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep results in memory instead of writing the database")
	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) error {
	log := logger.Get().Named("run")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	tbl, err := loadTables(cfg)
	if err != nil {
		return fmt.Errorf("load tables: %w", err)
	}

	logs, err := eventlog.Open(cfg.LogsDir, eventlog.WithLocation(loc))
	if err != nil {
		return err
	}
	if len(logs.Partitions()) == 0 {
		return fmt.Errorf("no combat log files in %s", cfg.LogsDir)
	}
	idx, err := index.New(
		index.WithLocation(loc),
		index.WithMarkers(logs, tbl, index.DefaultMarkerWithin),
	)
	if err != nil {
		return err
	}
	walked, err := idx.Walk(ctx, cfg.RecordingsDir)
	if err != nil {
		return err
	}
	for _, s := range walked.Skipped {
		log.Warn(ctx, "recording skipped", logger.String("path", s.Path), logger.Error(s.Err))
	}

	var store repository.Store
	if dryRun {
		store = repository.NewMemoryStore()
	} else {
		lock := flock.New(cfg.DBPath + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return errors.New("another batch is already writing " + cfg.DBPath)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn(ctx, "failed to release batch lock", logger.Error(err))
			}
		}()

		sqlite, err := repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		store = sqlite
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, logs, tbl, loc)
	if err != nil {
		return err
	}
	svc := service.New(pipeline, store,
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithProgressEvery(cfg.ProgressEvery),
	)

	sum, err := svc.Run(ctx, walked.Recordings)
	if err != nil && ctx.Err() == nil {
		return err
	}

	// A cancelled batch still reports what it wrote.
	fmt.Fprintln(out, summaryHeader(sum, len(walked.Skipped), dbSize(cfg.DBPath, dryRun)))
	fmt.Fprintln(out, renderSummary(sum))
	return err
}

func summaryHeader(sum service.Summary, skipped int, size string) string {
	line := fmt.Sprintf("Run %s: %s recordings, %s resolved in %s",
		sum.RunID,
		humanize.Comma(int64(sum.Total)),
		humanize.Comma(int64(sum.Resolved)),
		sum.Elapsed.Round(time.Millisecond),
	)
	if skipped > 0 {
		line += fmt.Sprintf(", %s files skipped", humanize.Comma(int64(skipped)))
	}
	if sum.Pending > 0 {
		line += fmt.Sprintf(", %s left pending", humanize.Comma(int64(sum.Pending)))
	}
	if size != "" {
		line += " (database " + size + ")"
	}
	return line
}

// renderSummary lists outcome counts per error kind, "ok" first.
func renderSummary(sum service.Summary) string {
	kinds := make([]string, 0, len(sum.ByKind))
	for k := range sum.ByKind {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if (kinds[i] == "ok") != (kinds[j] == "ok") {
			return kinds[i] == "ok"
		}
		return kinds[i] < kinds[j]
	})

	rows := make([][]string, 0, len(kinds))
	for _, k := range kinds {
		n := sum.ByKind[k]
		share := "-"
		if sum.Total > 0 {
			share = strconv.FormatFloat(100*float64(n)/float64(sum.Total), 'f', 1, 64) + "%"
		}
		rows = append(rows, []string{k, humanize.Comma(int64(n)), share})
	}
	return renderTable([]string{"Outcome", "Recordings", "Share"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight})
}

func dbSize(path string, dryRun bool) string {
	if dryRun {
		return ""
	}
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return humanize.Bytes(uint64(fi.Size())) //nolint:gosec // file sizes are never negative
}
