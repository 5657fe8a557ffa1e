// Package orchestrator turns hotkey presses into recording sessions and
// recording sessions into delivered text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"murmur/audio"
	"murmur/history"
	"murmur/hotkey"
	"murmur/model"
)

const DefaultTapThreshold = 400 * time.Millisecond

// Notices shown to the user.
const (
	MsgRecording      = "recording"
	MsgLocked         = "recording locked, press again to stop"
	MsgTranscribing   = "transcribing"
	MsgNoAudio        = "no audio recorded"
	MsgNoSpeech       = "no speech detected"
	MsgFailed         = "transcription failed"
	MsgMicUnavailable = "microphone unavailable"
	MsgModelFailed    = "model unavailable"
)

type Recorder interface {
	Start(onLevel func(level float64)) error
	Stop() ([]float32, error)
	Cleanup()
}

type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, onPartial func(text string)) (string, error)
}

type ModelStatus interface {
	State() model.State
}

type History interface {
	Add(text string) history.Entry
}

// Paster places text in the focused application. It must not block.
type Paster interface {
	Paste(text string)
}

// Archiver keeps a copy of a session's audio.
type Archiver interface {
	Save(samples []float32) (string, error)
}

type UpdateKind int

const (
	ModeChanged UpdateKind = iota + 1
	LevelChanged
	Notice
	Partial
	Transcribed
)

// Update is one published change. Only the fields relevant to Kind are set.
type Update struct {
	Kind    UpdateKind
	Mode    Mode
	Level   float64
	Message string
	Entry   history.Entry
	Err     error
	// Audio is the captured length, set when entering ModeTranscribing.
	Audio time.Duration
}

type Options struct {
	TapThreshold time.Duration
	AutoPaste    bool
	Paster       Paster
	Archiver     Archiver
}

type event struct {
	trigger Trigger
	at      time.Time
	text    string
	err     error
}

// Orchestrator owns the recording mode. All transitions happen on the
// goroutine running Run, in the order events arrive.
type Orchestrator struct {
	rec      Recorder
	gateway  Transcriber
	models   ModelStatus
	history  History
	paster   Paster
	archiver Archiver

	threshold atomic.Int64
	autoPaste atomic.Bool

	events chan event
	levels chan float64
	done   chan struct{}
	runCtx context.Context

	// owned by the Run goroutine
	pressedAt time.Time

	mu   sync.RWMutex
	mode Mode

	subMu   sync.Mutex
	subs    map[int]chan Update
	nextSub int

	inflight sync.WaitGroup
}

func New(rec Recorder, gateway Transcriber, models ModelStatus, hist History, opts Options) *Orchestrator {
	o := &Orchestrator{
		rec:      rec,
		gateway:  gateway,
		models:   models,
		history:  hist,
		paster:   opts.Paster,
		archiver: opts.Archiver,
		events:   make(chan event, 16),
		levels:   make(chan float64, 1),
		done:     make(chan struct{}),
		mode:     ModeIdle,
		subs:     make(map[int]chan Update),
	}
	if opts.TapThreshold <= 0 {
		opts.TapThreshold = DefaultTapThreshold
	}
	o.threshold.Store(int64(opts.TapThreshold))
	o.autoPaste.Store(opts.AutoPaste)
	return o
}

func (o *Orchestrator) Mode() Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

func (o *Orchestrator) TapThreshold() time.Duration {
	return time.Duration(o.threshold.Load())
}

func (o *Orchestrator) SetTapThreshold(d time.Duration) {
	if d > 0 {
		o.threshold.Store(int64(d))
	}
}

func (o *Orchestrator) AutoPaste() bool       { return o.autoPaste.Load() }
func (o *Orchestrator) SetAutoPaste(on bool) { o.autoPaste.Store(on) }

// Subscribe returns a stream of updates. Updates are dropped for a
// subscriber whose buffer is full; call cancel when done reading.
func (o *Orchestrator) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 64)
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subs, id)
			o.subMu.Unlock()
		})
	}
}

func (o *Orchestrator) publish(u Update) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Run processes key events until ctx is cancelled, then releases the
// recorder. It must be called once.
func (o *Orchestrator) Run(ctx context.Context, keys <-chan hotkey.Event) error {
	o.runCtx = ctx
	defer o.shutdown()

	go o.pump(ctx, keys)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-o.events:
			o.handle(ev)
		case level := <-o.levels:
			if o.Mode().Recording() {
				o.publish(Update{Kind: LevelChanged, Mode: o.Mode(), Level: level})
			}
		}
	}
}

func (o *Orchestrator) pump(ctx context.Context, keys <-chan hotkey.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-keys:
			if !ok {
				return
			}
			ev := event{trigger: TriggerKeyDown, at: k.At}
			if k.Type == hotkey.Up {
				ev.trigger = TriggerKeyUp
			}
			if ev.at.IsZero() {
				ev.at = time.Now()
			}
			o.enqueue(ev)
		}
	}
}

func (o *Orchestrator) enqueue(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) shutdown() {
	close(o.done)
	o.rec.Cleanup()
	o.mu.Lock()
	changed := o.mode != ModeIdle
	o.mode = ModeIdle
	o.mu.Unlock()
	if changed {
		o.publish(Update{Kind: ModeChanged, Mode: ModeIdle})
	}
}

// Wait blocks until in-flight transcriptions have returned.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) setMode(m Mode, msg string, err error) {
	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
	o.publish(Update{Kind: ModeChanged, Mode: m, Message: msg, Err: err})
}

func (o *Orchestrator) notice(msg string, err error) {
	o.publish(Update{Kind: Notice, Mode: o.Mode(), Message: msg, Err: err})
}

func (o *Orchestrator) onLevel(level float64) {
	select {
	case o.levels <- level:
		return
	default:
	}
	select {
	case <-o.levels:
	default:
	}
	select {
	case o.levels <- level:
	default:
	}
}

func (o *Orchestrator) handle(ev event) {
	mode := o.Mode()
	state := o.models.State()
	in := Input{
		Trigger:    ev.trigger,
		ModelReady: state.Phase == model.Ready,
		Threshold:  o.TapThreshold(),
		HasText:    ev.err == nil && ev.text != "",
	}
	if ev.trigger == TriggerKeyUp && !o.pressedAt.IsZero() {
		in.Held = ev.at.Sub(o.pressedAt)
	}

	next, action := Next(mode, in)
	switch action {
	case ActionNone:
	case ActionModelNotReady:
		o.notice(modelMessage(state), state.Err)
	case ActionStartCapture:
		if err := o.rec.Start(o.onLevel); err != nil {
			o.notice(MsgMicUnavailable, err)
			return
		}
		o.pressedAt = ev.at
		o.setMode(next, MsgRecording, nil)
	case ActionLock:
		o.setMode(next, MsgLocked, nil)
	case ActionSubmit:
		o.pressedAt = time.Time{}
		samples, err := o.rec.Stop()
		if err != nil {
			o.setMode(ModeIdle, MsgNoAudio, err)
			return
		}
		o.mu.Lock()
		o.mode = next
		o.mu.Unlock()
		o.publish(Update{Kind: ModeChanged, Mode: next, Message: MsgTranscribing, Audio: audio.Duration(len(samples))})
		o.submit(samples)
	case ActionDeliver:
		entry := o.history.Add(ev.text)
		o.publish(Update{Kind: Transcribed, Mode: mode, Entry: entry})
		if o.autoPaste.Load() && o.paster != nil {
			o.paster.Paste(ev.text)
		}
		o.setMode(next, "", nil)
	case ActionDiscard:
		msg := MsgNoSpeech
		switch {
		case errors.Is(ev.err, model.ErrNotLoaded):
			msg = modelFailure(ev.err)
		case ev.err != nil:
			msg = MsgFailed
		}
		o.setMode(next, msg, ev.err)
	}
}

// submit runs the transcription off the loop. Its result re-enters
// through the event queue.
func (o *Orchestrator) submit(samples []float32) {
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		text, err := o.gateway.Transcribe(o.runCtx, samples, func(partial string) {
			o.publish(Update{Kind: Partial, Mode: ModeTranscribing, Message: partial})
		})
		// the result goes first; a slow disk must not hold back the paste
		o.enqueue(event{trigger: TriggerResult, at: time.Now(), text: text, err: err})
		if o.archiver != nil {
			if path, aerr := o.archiver.Save(samples); aerr != nil {
				o.notice("could not archive audio", aerr)
			} else {
				o.notice("audio saved to "+path, nil)
			}
		}
	}()
}

func modelMessage(s model.State) string {
	if s.Phase == model.Failed {
		return modelFailure(s.Err)
	}
	return fmt.Sprintf("model loading (%d%%)", int(s.Progress*100))
}

// modelFailure is "model unavailable: <reason>".
func modelFailure(err error) string {
	if err == nil {
		return MsgModelFailed
	}
	return fmt.Sprintf("%s: %v", MsgModelFailed, err)
}
