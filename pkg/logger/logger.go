package logger

import "go.uber.org/zap"

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug enables development mode: human-readable output at debug level.
	Debug bool
}

// NewLogger builds a zap logger for the given config. Production mode emits
// structured JSON at info level.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg != nil && cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
