package types

// Logger is the structured logger clients, servers and buses report through.
//
// Messages are short event names ("Creating subscriptions"); details go into
// alternating key/value pairs such as "subject", subject. A zap
// SugaredLogger satisfies it as is.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// Fatal logs and terminates the process.
	Fatal(msg string, keysAndValues ...any)
}
