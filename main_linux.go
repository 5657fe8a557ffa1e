//go:build linux

package main

// The evdev hotkey backend has no main-thread requirement.
func main() {
	run()
}
