package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/engine"
	"murmur/engine/whisper"
	"murmur/hotkey"
	"murmur/log"
	"murmur/orchestrator"
)

const testWaitTimeout = 2 * time.Minute

// runTestMode drives the app from stdin instead of a keyboard and
// microphone. Commands, one per line:
//
//	KEYDOWN | KEYUP      press or release the hotkey
//	SLEEP <ms>           pause
//	WAIT_MODEL           block until the model is ready or failed
//	WAIT                 block until the next session returns to idle
//	QUIT                 shut down
//
// Each mode change, notice and transcript is echoed to stdout.
func runTestMode(cfg *config.Config, wavPath string) int {
	beep.Disable()

	if wavPath == "" {
		wavPath = flag.Arg(0)
	}
	if wavPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
		return 1
	}
	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	capture, err := fakeCtx.NewCapture(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		return 1
	}

	var loader engine.Loader = whisper.Loader{Language: cfg.Model.Language}
	if !whisper.Available {
		// No recognizer in this build; stand in an engine with a fixed
		// transcript and a placeholder model file so nothing is downloaded.
		dir, err := os.MkdirTemp("", "murmur-test-model")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer os.RemoveAll(dir)
		cfg.Model.Dir = dir
		if err := os.WriteFile(filepath.Join(dir, cfg.Model.Name), []byte("placeholder"), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		loader = &engine.FakeLoader{Engine: engine.NewFake("test", " transcription")}
	}

	keys := &hotkey.FakeFactory{}
	a, err := newApp(cfg, capture, loader, keys.New)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, unsub := a.orch.Subscribe()
	defer unsub()
	idle := make(chan struct{}, 16)
	var out sync.Mutex
	go echoUpdates(ctx, os.Stdout, &out, updates, idle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.run(ctx)
	}()

	code := driveFromStdin(ctx, os.Stdin, a, keys, idle)
	cancel()
	<-done
	return code
}

func driveFromStdin(ctx context.Context, in io.Reader, a *app, keys *hotkey.FakeFactory, idle <-chan struct{}) int {
	active := func() *hotkey.FakeHotkey {
		if hks := keys.Active(); len(hks) > 0 {
			return hks[0]
		}
		return nil
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "" || strings.HasPrefix(cmd, "#"):
		case cmd == "KEYDOWN":
			if hk := active(); hk != nil {
				hk.SimKeydown()
			}
		case cmd == "KEYUP":
			if hk := active(); hk != nil {
				hk.SimKeyup()
			}
		case cmd == "WAIT_MODEL":
			wctx, cancel := context.WithTimeout(ctx, testWaitTimeout)
			_, err := a.models.Wait(wctx)
			cancel()
			if err != nil {
				log.Errorf("model unavailable: %v", err)
				fmt.Printf("MODEL failed: %v\n", err)
				return 1
			}
			fmt.Println("MODEL ready")
		case cmd == "WAIT":
			select {
			case <-idle:
			case <-time.After(testWaitTimeout):
				fmt.Fprintln(os.Stderr, "WAIT timed out")
				return 1
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case cmd == "QUIT":
			return 0
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
	return 0
}

// echoUpdates prints updates as single lines and signals idle each time a
// session returns to ModeIdle.
func echoUpdates(ctx context.Context, w io.Writer, mu *sync.Mutex, updates <-chan orchestrator.Update, idle chan<- struct{}) {
	prev := orchestrator.ModeIdle
	for {
		var u orchestrator.Update
		select {
		case <-ctx.Done():
			return
		case u = <-updates:
		}

		mu.Lock()
		switch u.Kind {
		case orchestrator.ModeChanged:
			fmt.Fprintf(w, "MODE %s", u.Mode)
			if u.Message != "" {
				fmt.Fprintf(w, " (%s)", u.Message)
			}
			fmt.Fprintln(w)
		case orchestrator.Notice:
			fmt.Fprintf(w, "NOTICE %s\n", u.Message)
		case orchestrator.Transcribed:
			fmt.Fprintf(w, "TEXT %s\n", u.Entry.Text)
		}
		mu.Unlock()

		if u.Kind == orchestrator.ModeChanged {
			if u.Mode == orchestrator.ModeIdle && prev != orchestrator.ModeIdle {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
			prev = u.Mode
		}
	}
}
