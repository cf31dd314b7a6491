package main

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

func parseLevel(s string) (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// newLogger builds the CLI logger. Library logs are routed through the same
// zap core so both end up in one stream.
func newLogger(level string) (*zap.Logger, *slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel

	log, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return log, slog.New(zapslog.NewHandler(log.Core())), nil
}
