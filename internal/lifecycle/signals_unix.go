//go:build !windows

package lifecycle

import (
	"os"
	"syscall"
)

// SIGHUP stops the server when its controlling terminal goes away.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
