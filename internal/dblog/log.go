// Package dblog wraps the structured logger: one sugared zap logger, built
// once by the command-line driver and handed to the session façade instead
// of each package reaching for the global logger.
package dblog

import "go.uber.org/zap"

// New builds a logger suited to development (human-readable, debug level)
// or production (JSON, info level) use.
func New(development bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Nop returns a logger that discards everything, used by tests and by
// components constructed without an explicit logger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
