package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"murmur/audio"
	"murmur/beep"
	"murmur/clipboard"
	"murmur/config"
	"murmur/doctor"
	"murmur/engine"
	"murmur/engine/whisper"
	"murmur/hotkey"
	"murmur/log"
	"murmur/model"
	"murmur/orchestrator"
	"murmur/shutdown"
)

var version = "dev"

type options struct {
	configPath string
	logPath    string
	device     string
	setup      bool
	doctor     bool
	tui        bool
	keepAudio  bool
	autoPaste  bool
	noBeep     bool
	test       bool
	testWAV    string
	version    bool
}

func parseFlags() (options, map[string]bool) {
	var o options
	flag.StringVar(&o.configPath, "config", "", "config file (default: <user config dir>/murmur/config.toml)")
	flag.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&o.device, "device", "", "use the microphone whose name contains this text")
	flag.BoolVar(&o.setup, "setup", false, "pick the microphone interactively")
	flag.BoolVar(&o.doctor, "doctor", false, "run system diagnostics and exit")
	flag.BoolVar(&o.tui, "tui", true, "run with terminal UI")
	flag.BoolVar(&o.keepAudio, "keepaudio", false, "save each session as FLAC in the archive dir")
	flag.BoolVar(&o.autoPaste, "autopaste", true, "paste into the focused window after transcription")
	flag.BoolVar(&o.noBeep, "nobeep", false, "disable sound cues")
	flag.BoolVar(&o.test, "test", false, "test mode (headless, stdin-driven)")
	flag.StringVar(&o.testWAV, "testwav", "", "WAV file replayed as the microphone in test mode")
	flag.BoolVar(&o.version, "version", false, "print version and exit")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set
}

func run() {
	opts, set := parseFlags()

	if opts.version {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(opts.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if opts.configPath == "" {
		if opts.configPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", opts.configPath, err)
		os.Exit(1)
	}
	applyFlags(cfg, opts, set)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", opts.configPath, err)
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if opts.noBeep {
		beep.Disable()
	}

	if opts.test {
		os.Exit(runTestMode(cfg, opts.testWAV))
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if opts.doctor {
		os.Exit(runDoctor(ctx, cfg))
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	device, err := pickDevice(actx, cfg, opts.setup)
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: %v\nFalling back to default device\n", err)
		device = nil
	}

	// A missing microphone is reported per keypress rather than fatally.
	var capture audio.CaptureDevice
	if capture, err = actx.NewCapture(device); err != nil {
		log.Errorf("capture device init error: %v", err)
		capture = nil
	}

	if cfg.Output.AutoPaste {
		if err := clipboard.Init(); err != nil {
			log.Warnf("paste init failed: %v", err)
			fmt.Printf("Warning: paste init failed: %v\n", err)
		}
	}
	go beep.Init()

	loader := whisper.Loader{Language: cfg.Model.Language, Threads: uint(max(1, runtime.NumCPU()/2))}
	if err := loader.Check(); err != nil {
		log.Warnf("transcription disabled: %v", err)
		fmt.Printf("Warning: %v\nRecording will report the model as unavailable.\n", err)
	}
	a, err := newApp(cfg, capture, loader, hotkey.New)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	reload, stopReload := shutdown.Reload()
	defer stopReload()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				if err := a.reload(opts.configPath); err != nil {
					log.Errorf("config reload failed: %v", err)
				} else {
					log.Info("config reloaded")
				}
			}
		}
	}()

	if !opts.tui {
		fmt.Printf("murmur %s listening on %s (Ctrl+C to quit)\n", version, a.keys.Binding())
		go printModelProgress(ctx, a.models)
		a.run(ctx)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.run(runCtx)
	}()

	deviceName := "system default"
	if device != nil {
		deviceName = device.Name
		if audio.IsBluetooth(device.Name) {
			deviceName += " (narrowband headset)"
		}
	}
	p := NewTUIProgram(newTUIModel(a.orch, a.keys.Binding().String(), deviceName))
	go feedTUI(runCtx, p, a)
	go func() {
		<-runCtx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	cancel()
	<-done
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cfg *config.Config, o options, set map[string]bool) {
	if set["device"] {
		cfg.Audio.Device = o.device
	}
	if set["keepaudio"] {
		cfg.Output.KeepAudio = o.keepAudio
	}
	if set["autopaste"] {
		cfg.Output.AutoPaste = o.autoPaste
	}
}

func pickDevice(actx audio.Context, cfg *config.Config, interactive bool) (*audio.DeviceInfo, error) {
	if interactive {
		return audio.SelectDevice(actx)
	}
	return audio.FindDevice(actx, cfg.Audio.Device)
}

func initCrashLog() {
	f, err := os.OpenFile(filepath.Join(log.Dir(), "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func runDoctor(ctx context.Context, cfg *config.Config) int {
	binding, _ := cfg.Binding()
	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
	} else {
		defer actx.Close()
	}
	if !doctor.WaitKey("Speak into the microphone after pressing any key... ") {
		return 1
	}
	return doctor.Run(ctx, os.Stdout, doctor.Checks(doctor.Options{
		Binding:   binding,
		Audio:     actx,
		Device:    cfg.Audio.Device,
		Window:    audio.LevelWindow{MinDB: cfg.Audio.MinDB, MaxDB: cfg.Audio.MaxDB},
		ModelPath: cfg.ModelPath(),
	}))
}

// feedTUI forwards orchestrator updates and model progress to the view.
func feedTUI(ctx context.Context, p *tea.Program, a *app) {
	updates, unsub := a.orch.Subscribe()
	defer unsub()
	states, unsubModel := a.models.Subscribe()
	defer unsubModel()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			p.Send(updateMsg(u))
		case s := <-states:
			p.Send(modelMsg(s))
		}
	}
}

func printModelProgress(ctx context.Context, models *model.Manager) {
	states, unsub := models.Subscribe()
	defer unsub()
	last := model.Phase(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			if s.Phase == last {
				continue
			}
			last = s.Phase
			switch s.Phase {
			case model.Failed:
				fmt.Printf("model failed: %v\n", s.Err)
				return
			case model.Ready:
				fmt.Println("model ready")
				return
			default:
				fmt.Printf("model %s...\n", s.Phase)
			}
		}
	}
}

var (
	_ orchestrator.Paster = (*clipboard.Paster)(nil)
	_ engine.Loader       = whisper.Loader{}
	_ engine.Checker      = whisper.Loader{}
)
