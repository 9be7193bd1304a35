// Package qlog provides the logging facade used across the module.
package qlog

import (
	"log"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the interface every component logs through.
type Logger interface {
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type stdLog struct {
	logger *log.Logger
}

var _ Logger = (*stdLog)(nil)

func (s *stdLog) Infof(format string, v ...interface{}) {
	s.logger.Printf("INFO "+format, v...)
}

func (s *stdLog) Warnf(format string, v ...interface{}) {
	s.logger.Printf("WARN "+format, v...)
}

func (s *stdLog) Errorf(format string, v ...interface{}) {
	s.logger.Printf("ERROR "+format, v...)
}

// DefaultLogger returns a Logger backed by the standard library logger.
func DefaultLogger() Logger {
	return &stdLog{logger: log.New(os.Stderr, "", log.LstdFlags)}
}

type zerologAdapter struct {
	logger zerolog.Logger
}

var _ Logger = (*zerologAdapter)(nil)

func (z *zerologAdapter) Infof(format string, v ...interface{}) {
	z.logger.Info().Msgf(format, v...)
}

func (z *zerologAdapter) Warnf(format string, v ...interface{}) {
	z.logger.Warn().Msgf(format, v...)
}

func (z *zerologAdapter) Errorf(format string, v ...interface{}) {
	z.logger.Error().Msgf(format, v...)
}

// NewZerolog adapts a zerolog logger to the Logger interface.
func NewZerolog(logger zerolog.Logger) Logger {
	return &zerologAdapter{logger: logger}
}

// NewZerologConsole builds a zerolog logger for the binaries: pretty console
// output when pretty is set, JSON lines otherwise.
func NewZerologConsole(level zerolog.Level, pretty bool) zerolog.Logger {
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	return logger
}
