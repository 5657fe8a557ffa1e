// Package doctor runs the -doctor diagnostics: hotkey, microphone, model
// file and clipboard.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/hotkey"
)

// Check is one diagnostic. Run returns a short detail line on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type Options struct {
	Binding   hotkey.Binding
	Audio     audio.Context
	Device    string
	Window    audio.LevelWindow
	ModelPath string
	// ListenFor is how long the microphone check records.
	ListenFor time.Duration
}

// Checks builds the standard check list.
func Checks(opts Options) []Check {
	if opts.ListenFor <= 0 {
		opts.ListenFor = 1500 * time.Millisecond
	}
	return []Check{
		{"Hotkey", func(context.Context) (string, error) { return hotkey.Diagnose(opts.Binding) }},
		{"Microphone", func(ctx context.Context) (string, error) { return CheckMicrophone(ctx, opts) }},
		{"Model file", func(context.Context) (string, error) { return CheckModel(opts.ModelPath) }},
		{"Clipboard", func(context.Context) (string, error) { return CheckClipboard(clipboard.Copy, clipboard.Read) }},
		{"Paste keystroke", func(context.Context) (string, error) { return clipboard.Verify() }},
	}
}

// Run executes checks in order, printing a PASS/FAIL line for each, and
// returns an exit code (0 all pass, 1 any fail).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "murmur doctor - system diagnostics")
	fmt.Fprintln(w, "==================================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		if ctx.Err() != nil {
			fmt.Fprintln(w, "  SKIP: interrupted")
			failed++
			continue
		}
		detail, err := c.Run(ctx)
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(w, "  PASS: %s\n", detail)
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// CheckMicrophone records briefly through a Recorder and reports the
// loudest block level seen.
func CheckMicrophone(ctx context.Context, opts Options) (string, error) {
	if opts.Audio == nil {
		return "", audio.ErrDeviceUnavailable
	}
	info, err := audio.FindDevice(opts.Audio, opts.Device)
	if err != nil {
		return "", err
	}
	dev, err := opts.Audio.NewCapture(info)
	if err != nil {
		return "", fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	rec := audio.NewRecorder(dev, opts.Window)
	defer rec.Cleanup()

	levels := make(chan float64, 64)
	if err := rec.Start(func(l float64) {
		select {
		case levels <- l:
		default:
		}
	}); err != nil {
		return "", err
	}

	select {
	case <-time.After(opts.ListenFor):
	case <-ctx.Done():
	}
	samples, err := rec.Stop()
	if err != nil {
		return "", fmt.Errorf("no audio captured from %s: %w", rec.DeviceName(), err)
	}
	var peak float64
drain:
	for {
		select {
		case l := <-levels:
			peak = max(peak, l)
		default:
			break drain
		}
	}
	secs := float64(len(samples)) / audio.TargetSampleRate
	if peak == 0 {
		return "", fmt.Errorf("%s captured %.1fs of silence (muted or no permission?)", rec.DeviceName(), secs)
	}
	return fmt.Sprintf("%s captured %.1fs, peak level %.0f%%", rec.DeviceName(), secs, peak*100), nil
}

func CheckModel(path string) (string, error) {
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s not found (downloaded on next start)", path)
	}
	if err != nil {
		return "", err
	}
	if st.Size() == 0 {
		return "", fmt.Errorf("%s is empty", path)
	}
	return fmt.Sprintf("%s (%.1f MB)", path, float64(st.Size())/(1<<20)), nil
}

// CheckClipboard writes a unique string and reads it back.
func CheckClipboard(write func(string) error, read func() (string, error)) (string, error) {
	want := fmt.Sprintf("murmur-doctor-%d", time.Now().UnixNano())

	type result struct {
		got string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		if err := write(want); err != nil {
			ch <- result{err: fmt.Errorf("copy: %w", err)}
			return
		}
		got, err := read()
		ch <- result{got, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		if r.got != want {
			return "", fmt.Errorf("read back %q, want %q", r.got, want)
		}
		return "write and read back match", nil
	case <-time.After(3 * time.Second):
		return "", errors.New("clipboard timed out (no clipboard manager running?)")
	}
}
