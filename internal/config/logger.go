package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds a zap logger from cfg and installs it as the global
// logger. Format "console" selects the development encoder; anything else
// logs JSON. Logs go to stderr unless File is set.
func InitLogger(cfg LoggingConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		path, err := expandPath(cfg.File)
		if err != nil {
			return err
		}
		zapCfg.OutputPaths = []string{path}
		zapCfg.ErrorOutputPaths = []string{path}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return nil
}
