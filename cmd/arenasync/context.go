package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/companion"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/tables"
	service "github.com/Phlares/wow-arena-analysis/internal/app"
	"github.com/Phlares/wow-arena-analysis/internal/config"
	"github.com/Phlares/wow-arena-analysis/internal/domain/estimate"
	"github.com/Phlares/wow-arena-analysis/internal/domain/scoring"
	"github.com/Phlares/wow-arena-analysis/internal/domain/verify"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads and validates configuration once, then sets up the
// global logger on the command's error stream.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		ctx := cmd.Context()

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		var cfg *config.Config
		var err error
		if path != "" {
			cfg, err = config.LoadFile(ctx, path)
		} else {
			cfg, err = config.Load(ctx)
		}
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}

		if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
			c.configErr = fmt.Errorf("init logging: %w", err)
			return
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(ctx, "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func loadTables(cfg *config.Config) (*tables.Tables, error) {
	if cfg.TablesPath == "" {
		return tables.Default()
	}
	return tables.Load(cfg.TablesPath)
}

// companions chains the summon scan with the optional pet index file.
func companions(cfg *config.Config) (companion.Chain, error) {
	chain := companion.Chain{companion.NewSummonResolver(0)}
	if cfg.PetIndexPath == "" {
		return chain, nil
	}
	idx, err := companion.LoadIndex(cfg.PetIndexPath)
	if err != nil {
		return nil, err
	}
	logger.Get().Named("run").Info(context.Background(), "pet index loaded",
		logger.String("path", cfg.PetIndexPath),
		logger.Int("players", idx.Players()),
	)
	return append(chain, idx), nil
}

func newPipeline(cfg *config.Config, stream service.Stream, tbl *tables.Tables, loc *time.Location) (*service.Pipeline, error) {
	chain, err := companions(cfg)
	if err != nil {
		return nil, err
	}
	return service.NewPipeline(stream, tbl,
		service.WithEstimator(estimate.New(
			estimate.WithRadii(cfg.Radii()),
			estimate.WithLocation(loc),
		)),
		service.WithVerifier(verify.New(tbl, verify.WithDurationTolerance(cfg.DurationTolerance()))),
		service.WithScorer(scoring.NewExtractor(
			scoring.WithDispelAbility(cfg.DispelAbility),
			scoring.WithTrackedBuff(cfg.TrackedBuff),
		)),
		service.WithCompanions(chain),
		service.WithSessionHorizon(cfg.SessionHorizon()),
	), nil
}
