package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/nijaru/clipzaar/config"
	"github.com/nijaru/clipzaar/logger"
	"github.com/nijaru/clipzaar/services"
	"github.com/sirupsen/logrus"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *logrus.Logger
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, *logrus.Logger, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.configErr = err
			return
		}

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}

		// stdout is reserved for command output.
		log, err := logger.New(logger.Options{Level: "warn", JSON: cfg.Log.JSON})
		if err != nil {
			c.configErr = err
			return
		}
		log.SetOutput(os.Stderr)

		c.config = cfg
		c.logger = log
	})
	return c.config, c.logger, c.configErr
}

func (c *commandContext) services(ctx context.Context) (*services.Services, error) {
	cfg, log, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return services.Build(ctx, cfg, log)
}
