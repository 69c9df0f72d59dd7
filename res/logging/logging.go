// Package logging builds the process logger. Components keep logging through *log.Logger;
// the entries are written by zap, as JSON in production.
package logging

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewZap(production bool) (*zap.Logger, error) {
	var cfg zap.Config

	if production {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// StdLogger bridges zap to the *log.Logger handed to components. component is attached as a field.
func StdLogger(z *zap.Logger, component string) *log.Logger {
	return zap.NewStdLog(z.With(zap.String("component", component)))
}

// New returns a component logger and the flush func to defer. A logger that cannot be
// built falls back to a no-op core.
func New(production bool, component string) (*log.Logger, func()) {
	z, err := NewZap(production)
	if err != nil {
		log.Printf("Error building logger, logging disabled: %s", err)
		z = zap.NewNop()
	}
	return StdLogger(z, component), func() { _ = z.Sync() }
}
