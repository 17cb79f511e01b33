// Package lifecycle ties process shutdown to operating system signals.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
)

func ShutdownSignals() []os.Signal {
	return append([]os.Signal(nil), shutdownSignals...)
}

// WithShutdown returns a context cancelled on the first shutdown signal.
// Calling stop restores default signal handling, so a second signal
// terminates the process immediately.
func WithShutdown(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
