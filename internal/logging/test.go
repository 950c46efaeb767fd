package logging

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/RidgeA/bus-rpc/types"
)

// TestLogger writes log lines through testing.T and keeps them for assertions.
type TestLogger struct {
	t testing.TB

	mu      sync.Mutex
	entries []string
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest creates a logger that writes to t.Logf.
func NewTest(t testing.TB) *TestLogger {
	return &TestLogger{t: t}
}

// Debug logs a debug-level message.
func (l *TestLogger) Debug(msg string, keysAndValues ...any) {
	l.log("DEBUG", msg, keysAndValues)
}

// Info logs an info-level message.
func (l *TestLogger) Info(msg string, keysAndValues ...any) {
	l.log("INFO", msg, keysAndValues)
}

// Warn logs a warning-level message.
func (l *TestLogger) Warn(msg string, keysAndValues ...any) {
	l.log("WARN", msg, keysAndValues)
}

// Error logs an error-level message.
func (l *TestLogger) Error(msg string, keysAndValues ...any) {
	l.log("ERROR", msg, keysAndValues)
}

// Fatal logs the message and fails the test.
func (l *TestLogger) Fatal(msg string, keysAndValues ...any) {
	l.t.Fatalf("FATAL: %s %s", msg, formatKeyValues(keysAndValues))
}

// Contains reports whether any logged line at the given level contains substr.
func (l *TestLogger) Contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := level + ": "
	for _, e := range l.entries {
		if strings.HasPrefix(e, prefix) && strings.Contains(e, substr) {
			return true
		}
	}

	return false
}

func (l *TestLogger) log(level, msg string, keysAndValues []any) {
	line := fmt.Sprintf("%s: %s %s", level, msg, formatKeyValues(keysAndValues))

	l.mu.Lock()
	l.entries = append(l.entries, line)
	l.mu.Unlock()

	l.t.Log(line)
}

func formatKeyValues(keysAndValues []any) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v ", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v=<missing> ", keysAndValues[i])
		}
	}

	return b.String()
}
