package pion

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerFactory hands pion's internal loggers a zerolog logger. Everything
// below level is dropped; pion is noisy at debug and trace.
type LoggerFactory struct {
	level zerolog.Level
}

func NewLoggerFactory(level zerolog.Level) *LoggerFactory {
	return &LoggerFactory{level: level}
}

func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{
		log: log.With().Str("component", "pion").Str("scope", scope).Logger().Level(f.level),
	}
}

type leveledLogger struct {
	log zerolog.Logger
}

func (l *leveledLogger) Trace(msg string)                          { l.log.Trace().Msg(msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) { l.log.Trace().Msgf(format, args...) }
func (l *leveledLogger) Debug(msg string)                          { l.log.Debug().Msg(msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) { l.log.Debug().Msgf(format, args...) }
func (l *leveledLogger) Info(msg string)                           { l.log.Info().Msg(msg) }
func (l *leveledLogger) Infof(format string, args ...interface{})  { l.log.Info().Msgf(format, args...) }
func (l *leveledLogger) Warn(msg string)                           { l.log.Warn().Msg(msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{})  { l.log.Warn().Msgf(format, args...) }
func (l *leveledLogger) Error(msg string)                          { l.log.Error().Msg(msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) { l.log.Error().Msgf(format, args...) }
