// Package logging builds the zap.Logger Percolator's server and its
// background jobs share, grounded on liquidityScope's cmd/indexer
// newLogger (production config, ISO8601 timestamps, level parsed from a
// plain string flag/config value).
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap.Logger at the given level ("debug", "info",
// "warn", or "error"), with ISO8601 timestamps in place of zap's default
// epoch-float encoding.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
