package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errPickCancelled = errors.New("device selection cancelled")

// FindDevice returns the first device whose name contains name
// (case-insensitive). An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no device matching %q", ErrDeviceUnavailable, name)
}

// SelectDevice lets the user pick a capture device on the terminal. A
// single device is returned without asking.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	saved, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, saved)

	i, err := runPicker(os.Stdin, os.Stdout, devices)
	if err != nil {
		return nil, err
	}
	return &devices[i], nil
}

// picker is the cursor over a device list, driven by raw key input.
type picker struct {
	names  []string
	cursor int
}

type pickResult int

const (
	pickMoved pickResult = iota
	pickChosen
	pickCancelled
)

// key applies one read from a raw terminal: arrows, j/k, Enter, Ctrl+C.
func (p *picker) key(in []byte) pickResult {
	switch {
	case len(in) == 1 && in[0] == '\r':
		return pickChosen
	case len(in) == 1 && in[0] == 3:
		return pickCancelled
	case len(in) == 1 && in[0] == 'k', len(in) == 3 && in[0] == 0x1b && in[1] == '[' && in[2] == 'A':
		p.cursor = max(0, p.cursor-1)
	case len(in) == 1 && in[0] == 'j', len(in) == 3 && in[0] == 0x1b && in[1] == '[' && in[2] == 'B':
		p.cursor = min(len(p.names)-1, p.cursor+1)
	}
	return pickMoved
}

// render draws the list. Raw mode needs explicit carriage returns.
func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select input device (↑/↓, Enter to confirm):\r\n\r\n")
	for i, name := range p.names {
		tag := ""
		if IsBluetooth(name) {
			tag = " \x1b[33m[narrowband headset]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", name, tag)
		}
	}
}

func runPicker(in io.Reader, out io.Writer, devices []DeviceInfo) (int, error) {
	p := &picker{names: make([]string, len(devices))}
	for i, d := range devices {
		p.names[i] = d.Name
	}
	p.render(out)

	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}
		switch p.key(buf[:n]) {
		case pickChosen:
			fmt.Fprint(out, "\r\n")
			return p.cursor, nil
		case pickCancelled:
			fmt.Fprint(out, "\r\n")
			return 0, errPickCancelled
		}
		// move back to the top of the list and redraw in place
		fmt.Fprintf(out, "\x1b[%dA", len(p.names)+2)
		p.render(out)
	}
}
