// Package logging holds the loggers handed to rpc.SetLogger: an slog adapter
// for programs, a silent default and a recording logger for tests.
package logging

import (
	"log/slog"
	"os"

	"github.com/RidgeA/bus-rpc/types"
)

// SlogLogger forwards to a *slog.Logger. Key/value pairs become slog attributes.
type SlogLogger struct {
	logger *slog.Logger
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps logger, or slog.Default() when logger is nil. cmd/busrpc
// builds it on a text handler writing to stderr:
//
//	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
//	server, err := rpc.NewServer(bus, rpc.SetLogger(logging.NewSlog(slog.New(handler))))
func NewSlog(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogLogger{logger: logger}
}

func NewSlogDefault() *SlogLogger {
	return NewSlog(nil)
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// Fatal logs at error level, slog having no fatal level, and exits with status 1.
func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
	os.Exit(1) //nolint:revive // Fatal should exit the program
}
