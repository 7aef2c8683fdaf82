package application

import "log/slog"

// ResolveLogger falls back to the process default so use cases and workers
// never need nil checks at call sites.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
