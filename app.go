package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"murmur/audio"
	"murmur/beep"
	"murmur/clipboard"
	"murmur/config"
	"murmur/encoder"
	"murmur/engine"
	"murmur/history"
	"murmur/hotkey"
	"murmur/log"
	"murmur/model"
	"murmur/orchestrator"
	"murmur/transcriber"
)

// app wires the components of one running dictation session.
type app struct {
	cfg     *config.Config
	rec     *audio.Recorder
	models  *model.Manager
	history *history.History
	orch    *orchestrator.Orchestrator
	keys    *hotkey.Manager
	paster  *clipboard.Paster

	sessions int
	mu       sync.Mutex
}

func newApp(cfg *config.Config, dev audio.CaptureDevice, loader engine.Loader, factory hotkey.Factory) (*app, error) {
	binding, err := cfg.Binding()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, history: history.New(history.DefaultCapacity)}
	a.rec = audio.NewRecorder(dev, audio.LevelWindow{MinDB: cfg.Audio.MinDB, MaxDB: cfg.Audio.MaxDB})
	a.models = model.NewManager(model.Config{
		Path:   cfg.ModelPath(),
		URL:    cfg.Model.URL,
		SHA256: cfg.Model.SHA256,
	}, loader, nil)

	lastPhase := model.Phase(-1)
	a.models.Observe(func(s model.State) {
		// progress ticks are too chatty for the log; record phase changes only
		if s.Phase == lastPhase {
			return
		}
		if lastPhase == model.Downloading && s.Fetch != nil {
			log.ModelFetch(log.FetchMetrics{
				URL:        cfg.Model.URL,
				Bytes:      s.Fetch.Bytes,
				DNSMs:      ms(s.Fetch.DNS),
				TLSMs:      ms(s.Fetch.TLS),
				TTFBMs:     ms(s.Fetch.TTFB),
				TotalMs:    ms(s.Fetch.Total),
				ConnReused: s.Fetch.ConnReused,
			})
		}
		lastPhase = s.Phase
		log.ModelState(s.Phase.String(), s.Progress, s.Err)
	})

	a.paster = clipboard.NewPaster(cfg.Output.PasteDelay.Duration)
	opts := orchestrator.Options{
		TapThreshold: cfg.Hotkey.TapThreshold.Duration,
		AutoPaste:    cfg.Output.AutoPaste,
		Paster:       a.paster,
	}
	if cfg.Output.KeepAudio {
		opts.Archiver = encoder.NewArchive(cfg.Output.ArchiveDir)
	}
	a.orch = orchestrator.New(a.rec, transcriber.New(a.models), a.models, a.history, opts)

	a.keys = hotkey.NewManager(factory)
	if err := a.keys.Bind(binding); err != nil {
		return nil, fmt.Errorf("registering hotkey %s: %w", binding, err)
	}
	return a, nil
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// run blocks until ctx is cancelled and every component has shut down.
func (a *app) run(ctx context.Context) {
	log.SessionStart(a.rec.DeviceName(), a.cfg.Model.Name, a.keys.Binding().String())
	a.models.Start(ctx)

	updates, unsub := a.orch.Subscribe()
	defer unsub()
	go a.follow(ctx, updates)

	a.orch.Run(ctx, a.keys.Events())
	a.orch.Wait()
	a.keys.Close()
	if err := a.models.Close(); err != nil {
		log.Warnf("closing engine: %v", err)
	}

	a.mu.Lock()
	n := a.sessions
	a.mu.Unlock()
	log.SessionEnd(n)
}

// follow turns orchestrator updates into log lines and sound cues.
func (a *app) follow(ctx context.Context, updates <-chan orchestrator.Update) {
	var submitted time.Time
	var audioLen time.Duration
	for {
		var u orchestrator.Update
		select {
		case <-ctx.Done():
			return
		case u = <-updates:
		}

		switch u.Kind {
		case orchestrator.ModeChanged:
			log.ModeChange(string(u.Mode), u.Message, u.Err)
			switch {
			case u.Mode == orchestrator.ModeRecordingHold:
				beep.PlayStart()
			case u.Mode == orchestrator.ModeTranscribing:
				submitted, audioLen = time.Now(), u.Audio
				beep.PlayStop()
			case u.Err != nil:
				beep.PlayError()
			}
		case orchestrator.Notice:
			if u.Err != nil {
				log.Warnf("%s: %v", u.Message, u.Err)
				beep.PlayError()
			} else {
				log.Info(u.Message)
			}
		case orchestrator.Transcribed:
			a.mu.Lock()
			a.sessions++
			a.mu.Unlock()

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			log.Session(log.SessionMetrics{
				AudioS:        audioLen.Seconds(),
				TranscribeMs:  float64(time.Since(submitted).Milliseconds()),
				Chars:         len(u.Entry.Text),
				MemoryAllocMB: float64(mem.Alloc) / (1 << 20),
			})
			log.TranscriptionText(u.Entry.Text)
		}
	}
}

// reload re-reads the config file and applies what can change live: the
// hotkey binding, autopaste and the tap threshold.
func (a *app) reload(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	binding, _ := cfg.Binding()
	if !binding.Equal(a.keys.Binding()) {
		if err := a.keys.Bind(binding); err != nil {
			return fmt.Errorf("rebinding to %s: %w", binding, err)
		}
		log.Infof("hotkey rebound to %s", binding)
	}
	a.orch.SetAutoPaste(cfg.Output.AutoPaste)
	a.orch.SetTapThreshold(cfg.Hotkey.TapThreshold.Duration)
	return nil
}
