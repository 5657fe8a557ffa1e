//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Hotkey registration on macOS must happen on the main thread.
func main() {
	mainthread.Init(run)
}
