package logging

import (
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// LeveledLogger adapts zerolog to retryablehttp's logger interface.
type LeveledLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = &LeveledLogger{}

// NewLeveledLogger wraps a zerolog logger.
func NewLeveledLogger(logger zerolog.Logger) *LeveledLogger {
	return &LeveledLogger{logger: logger}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
