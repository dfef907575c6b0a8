package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"perapera/internal/assetindex"
	"perapera/internal/config"
	"perapera/internal/logging"
	"perapera/internal/textdata"
	"perapera/internal/workflow"
	"perapera/internal/workspace"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool
	// console receives human-readable log output.
	console io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg, c.console)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) withPipeline(ctx context.Context, fn func(*workflow.Pipeline) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	pipeline, err := workflow.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pipeline.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close pipeline: %w", closeErr)
		}
	}()
	return fn(pipeline)
}

func (c *commandContext) withIndex(ctx context.Context, fn func(*config.Config, *assetindex.Index) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	idx, err := assetindex.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close()
	return fn(cfg, idx)
}

func (c *commandContext) withMaster(ctx context.Context, fn func(*config.Config, *textdata.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	texts, err := textdata.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer texts.Close()
	return fn(cfg, texts)
}

func (c *commandContext) workspaceStore() (*workspace.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return workspace.New(cfg, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
