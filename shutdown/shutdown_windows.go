//go:build windows

package shutdown

import (
	"context"
	"os"
	"os/signal"
)

var signals = []os.Signal{os.Interrupt}

// Reload never fires on Windows, which has no SIGHUP.
func Reload() (<-chan os.Signal, func()) {
	return make(chan os.Signal), func() {}
}

func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}
