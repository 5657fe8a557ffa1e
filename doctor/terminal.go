package doctor

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// WaitKey prints prompt and waits for a single keypress. It returns false
// on Ctrl+C, and true immediately when stdin is not a terminal.
func WaitKey(prompt string) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return true
	}
	fmt.Print(prompt)
	old, err := term.MakeRaw(fd)
	if err != nil {
		return true
	}
	defer func() {
		term.Restore(fd, old)
		fmt.Println()
	}()

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return false
	}
	return buf[0] != 3
}
