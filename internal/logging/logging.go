// Package logging builds the structured zap logger used across the CLI and server.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names so every component logs the same keys.
const (
	FieldRunID      = "run_id"
	FieldCompanyID  = "company_id"
	FieldCompany    = "company"
	FieldSourceType = "source_type"
	FieldAttempt    = "attempt"
	FieldOffset     = "offset"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldOutcome    = "outcome"
)

// Options control logger construction.
type Options struct {
	Level string
	JSON  bool
}

// New returns a zap logger. JSON output uses the production encoder; console
// output is meant for humans at a terminal.
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		return cfg.Build()
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything. Tests use it.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
