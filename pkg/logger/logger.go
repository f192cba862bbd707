package logger

import "log/slog"

// Component returns a child logger tagged with the component name.
// A nil base yields a logger that discards everything.
func Component(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		return slog.New(slog.DiscardHandler)
	}
	return base.With("component", component)
}
