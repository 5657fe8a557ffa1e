package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"murmur/audio"
	"murmur/history"
	"murmur/hotkey"
	"murmur/model"
	"murmur/transcriber"

	"github.com/stretchr/testify/require"
)

type fakeModels struct {
	mu    sync.Mutex
	state model.State
}

func readyModels() *fakeModels {
	return &fakeModels{state: model.State{Phase: model.Ready, Progress: 1}}
}

func (m *fakeModels) State() model.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *fakeModels) set(s model.State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

type fakeGateway struct {
	text string
	err  error
	gate chan struct{}

	calls   atomic.Int32
	mu      sync.Mutex
	samples [][]float32
}

func (g *fakeGateway) Transcribe(ctx context.Context, samples []float32, onPartial func(string)) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.samples = append(g.samples, samples)
	g.mu.Unlock()
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if onPartial != nil && g.text != "" {
		onPartial(g.text)
	}
	return g.text, g.err
}

// checkedRecorder counts calls that break the capture/mode invariant:
// Start only from idle, Stop only while recording, and capture running
// from a successful Start until Stop returns.
type checkedRecorder struct {
	*audio.Recorder
	mode       func() Mode
	violations atomic.Int32
	cleanups   atomic.Int32
}

func (r *checkedRecorder) Start(onLevel func(float64)) error {
	if r.mode() != ModeIdle || r.Active() {
		r.violations.Add(1)
		return r.Recorder.Start(onLevel)
	}
	err := r.Recorder.Start(onLevel)
	if (err == nil) != r.Active() {
		r.violations.Add(1)
	}
	return err
}

func (r *checkedRecorder) Stop() ([]float32, error) {
	bad := !r.mode().Recording() || !r.Active()
	samples, err := r.Recorder.Stop()
	if bad || r.Active() {
		r.violations.Add(1)
	}
	return samples, err
}

func (r *checkedRecorder) Cleanup() {
	r.cleanups.Add(1)
	r.Recorder.Cleanup()
}

type fakePaster struct {
	hist *history.History
	mu   sync.Mutex
	got  []string
	// history length observed at paste time
	histLen []int
}

func (p *fakePaster) Paste(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, text)
	p.histLen = append(p.histLen, p.hist.Len())
}

func (p *fakePaster) pasted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

type harness struct {
	t       *testing.T
	o       *Orchestrator
	dev     *audio.FakeCapture
	rec     *checkedRecorder
	gw      *fakeGateway
	models  *fakeModels
	hist    *history.History
	paster  *fakePaster
	keys    chan hotkey.Event
	updates <-chan Update
	cancel  context.CancelFunc
	done    chan struct{}
	t0      time.Time
}

func tone(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.25
	}
	return out
}

func newHarness(t *testing.T, clip []float32, gw *fakeGateway, opts ...func(*Options)) *harness {
	t.Helper()
	dev := audio.NewFakeCapture(clip, audio.Format{SampleRate: 16000, Channels: 1}, false)
	rec := &checkedRecorder{Recorder: audio.NewRecorder(dev, audio.DefaultLevelWindow)}
	hist := history.New(history.DefaultCapacity)
	paster := &fakePaster{hist: hist}
	models := readyModels()

	options := Options{AutoPaste: true, Paster: paster}
	for _, fn := range opts {
		fn(&options)
	}
	o := New(rec, gw, models, hist, options)
	rec.mode = o.Mode
	updates, unsub := o.Subscribe()
	t.Cleanup(unsub)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		t: t, o: o, dev: dev, rec: rec, gw: gw, models: models, hist: hist, paster: paster,
		keys: make(chan hotkey.Event), updates: updates, cancel: cancel,
		done: make(chan struct{}), t0: time.Now(),
	}
	go func() {
		defer close(h.done)
		o.Run(ctx, h.keys)
	}()
	t.Cleanup(func() {
		require.Zero(t, rec.violations.Load(), "recorder used out of mode")
	})
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("orchestrator did not stop")
	}
}

func (h *harness) key(typ hotkey.EventType, at time.Duration) {
	select {
	case h.keys <- hotkey.Event{Type: typ, At: h.t0.Add(at)}:
	case <-time.After(time.Second):
		h.t.Fatal("orchestrator not accepting keys")
	}
}

// waitMode drains updates until a mode change to want arrives.
func (h *harness) waitMode(want Mode) Update {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-h.updates:
			if u.Kind != ModeChanged {
				continue
			}
			if u.Mode == want {
				return u
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for mode %s (now %s)", want, h.o.Mode())
		}
	}
}

func (h *harness) waitUpdate(kind UpdateKind) Update {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-h.updates:
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			h.t.Fatalf("timed out waiting for update kind %d", kind)
		}
	}
}

func (h *harness) requireStays(want Mode) {
	h.t.Helper()
	time.Sleep(30 * time.Millisecond)
	require.Equal(h.t, want, h.o.Mode())
	require.Equal(h.t, want.Recording(), h.rec.Active())
}

func TestCheckedRecorderFlagsOutOfModeUse(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x"})
	_, err := h.rec.Stop()
	require.ErrorIs(t, err, audio.ErrEmptyAudio)
	require.Equal(t, int32(1), h.rec.violations.Load())
	h.rec.violations.Store(0)

	h.key(hotkey.Down, 0)
	h.waitMode(ModeRecordingHold)
	require.Error(t, h.rec.Start(nil))
	require.Equal(t, int32(1), h.rec.violations.Load())
	h.rec.violations.Store(0)
}

func TestTapLocksRecording(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "locked"})

	h.key(hotkey.Down, 0)
	h.waitMode(ModeRecordingHold)
	require.True(t, h.rec.Active())
	h.key(hotkey.Up, 100*time.Millisecond)
	h.waitMode(ModeRecordingLocked)
	h.requireStays(ModeRecordingLocked)
	require.Zero(t, h.gw.calls.Load())

	// Releasing again does nothing; the next press stops.
	h.key(hotkey.Down, 2*time.Second)
	h.waitMode(ModeTranscribing)
	h.key(hotkey.Up, 2100*time.Millisecond)
	h.waitMode(ModeIdle)

	require.Equal(t, int32(1), h.gw.calls.Load())
	require.Equal(t, []string{"locked"}, h.paster.pasted())
	require.False(t, h.rec.Active())
}

func TestHoldTranscribes(t *testing.T) {
	gw := &fakeGateway{text: "hello world", gate: make(chan struct{})}
	h := newHarness(t, tone(1600), gw)

	h.key(hotkey.Down, 0)
	h.waitMode(ModeRecordingHold)
	h.key(hotkey.Up, 600*time.Millisecond)
	u := h.waitMode(ModeTranscribing)
	require.Equal(t, 100*time.Millisecond, u.Audio)
	require.False(t, h.rec.Active())

	close(gw.gate)
	h.waitMode(ModeIdle)

	entries := h.hist.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "hello world", entries[0].Text)
	require.Equal(t, []string{"hello world"}, h.paster.pasted())
	require.Equal(t, []int{1}, h.paster.histLen, "paste must follow the history entry")

	gw.mu.Lock()
	defer gw.mu.Unlock()
	require.Len(t, gw.samples, 1)
	require.Len(t, gw.samples[0], 1600)
}

func TestWallClockScenario(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x", gate: make(chan struct{})})
	send := func(typ hotkey.EventType) {
		h.keys <- hotkey.Event{Type: typ, At: time.Now()}
	}

	send(hotkey.Down)
	h.waitMode(ModeRecordingHold)
	time.Sleep(100 * time.Millisecond)
	send(hotkey.Up)
	h.waitMode(ModeRecordingLocked)

	send(hotkey.Down)
	h.waitMode(ModeTranscribing)
	send(hotkey.Up)
	close(h.gw.gate)
	h.waitMode(ModeIdle)

	send(hotkey.Down)
	h.waitMode(ModeRecordingHold)
	time.Sleep(600 * time.Millisecond)
	send(hotkey.Up)
	h.waitMode(ModeTranscribing)
}

func TestKeyDownIgnoredWhileTranscribing(t *testing.T) {
	gw := &fakeGateway{text: "first", gate: make(chan struct{})}
	h := newHarness(t, tone(1600), gw)

	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, time.Second)
	h.waitMode(ModeTranscribing)

	h.key(hotkey.Down, 2*time.Second)
	h.key(hotkey.Up, 3*time.Second)
	h.requireStays(ModeTranscribing)
	require.Equal(t, 1, h.dev.Starts())

	close(gw.gate)
	h.waitMode(ModeIdle)
	require.Equal(t, int32(1), gw.calls.Load())
}

func TestEmptyAudioSkipsGateway(t *testing.T) {
	gw := &fakeGateway{text: "never"}
	h := newHarness(t, nil, gw)

	h.key(hotkey.Down, 0)
	h.waitMode(ModeRecordingHold)
	h.key(hotkey.Up, time.Second)
	u := h.waitMode(ModeIdle)

	require.Equal(t, MsgNoAudio, u.Message)
	require.ErrorIs(t, u.Err, audio.ErrEmptyAudio)
	require.Zero(t, gw.calls.Load())
	require.Zero(t, h.hist.Len())
}

func TestModelNotReady(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x"})
	h.models.set(model.State{Phase: model.Downloading, Progress: 0.42})

	h.key(hotkey.Down, 0)
	u := h.waitUpdate(Notice)
	require.Equal(t, "model loading (42%)", u.Message)
	h.key(hotkey.Up, 50*time.Millisecond)
	h.requireStays(ModeIdle)
	require.Zero(t, h.dev.Starts())

	reason := fmt.Errorf("%w: status 404", model.ErrDownloadFailed)
	h.models.set(model.State{Phase: model.Failed, Progress: 0.3, Err: reason})
	h.key(hotkey.Down, time.Second)
	u = h.waitUpdate(Notice)
	require.Equal(t, "model unavailable: model download failed: status 404", u.Message)
	require.ErrorIs(t, u.Err, model.ErrDownloadFailed)
}

func TestMicrophoneUnavailable(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x"})
	h.dev.StartErr = errors.New("unplugged")

	h.key(hotkey.Down, 0)
	u := h.waitUpdate(Notice)
	require.Equal(t, MsgMicUnavailable, u.Message)
	require.ErrorIs(t, u.Err, audio.ErrDeviceUnavailable)
	h.requireStays(ModeIdle)
}

func TestFailuresReturnToIdle(t *testing.T) {
	tests := []struct {
		name string
		gw   *fakeGateway
		msg  string
	}{
		{"no_speech", &fakeGateway{text: ""}, MsgNoSpeech},
		{"engine_error", &fakeGateway{err: transcriber.ErrTranscriptionFailed}, MsgFailed},
		{"model_lost", &fakeGateway{err: transcriber.ErrModelNotLoaded}, MsgModelFailed + ": " + transcriber.ErrModelNotLoaded.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tone(1600), tt.gw)
			h.key(hotkey.Down, 0)
			h.key(hotkey.Up, time.Second)
			u := h.waitMode(ModeIdle)
			require.Equal(t, tt.msg, u.Message)
			require.Zero(t, h.hist.Len())
			require.Empty(t, h.paster.pasted())

			// The next session is unaffected.
			h.key(hotkey.Down, 2*time.Second)
			h.waitMode(ModeRecordingHold)
		})
	}
}

func TestAutoPasteDisabledStillRecordsHistory(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "quiet"})
	h.o.SetAutoPaste(false)

	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, time.Second)
	u := h.waitUpdate(Transcribed)
	require.Equal(t, "quiet", u.Entry.Text)
	h.waitMode(ModeIdle)

	require.Equal(t, 1, h.hist.Len())
	require.Empty(t, h.paster.pasted())
}

func TestPartialsAndLevelsArePublished(t *testing.T) {
	h := newHarness(t, tone(3200), &fakeGateway{text: "live"})

	h.key(hotkey.Down, 0)
	lvl := h.waitUpdate(LevelChanged)
	require.InDelta(t, audio.DefaultLevelWindow.Level(tone(160), 1), lvl.Level, 1e-9)

	h.key(hotkey.Up, time.Second)
	p := h.waitUpdate(Partial)
	require.Equal(t, "live", p.Message)
}

func TestShutdownCleansUpInAnyMode(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x"})
	h.key(hotkey.Down, 0)
	h.waitMode(ModeRecordingHold)

	h.stop()
	require.Equal(t, ModeIdle, h.o.Mode())
	require.False(t, h.rec.Active())
	require.False(t, h.dev.Running())
	require.True(t, h.dev.Closed())
	require.Equal(t, int32(1), h.rec.cleanups.Load())
	h.rec.Cleanup()
}

func TestShutdownDuringTranscription(t *testing.T) {
	gw := &fakeGateway{text: "late", gate: make(chan struct{})}
	h := newHarness(t, tone(1600), gw)
	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, time.Second)
	h.waitMode(ModeTranscribing)

	h.stop()
	h.o.Wait()
	require.Zero(t, h.hist.Len())
}

func TestThresholdIsConfigurable(t *testing.T) {
	h := newHarness(t, tone(1600), &fakeGateway{text: "x"})
	h.o.SetTapThreshold(50 * time.Millisecond)
	require.Equal(t, 50*time.Millisecond, h.o.TapThreshold())

	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, 100*time.Millisecond)
	h.waitMode(ModeTranscribing)
}

type fakeArchiver struct {
	gate  chan struct{}
	saved atomic.Int32
}

func (a *fakeArchiver) Save(samples []float32) (string, error) {
	if a.gate != nil {
		<-a.gate
	}
	a.saved.Add(1)
	return "/tmp/session.flac", nil
}

func withArchiver(a Archiver) func(*Options) {
	return func(o *Options) { o.Archiver = a }
}

func TestArchiverReceivesSession(t *testing.T) {
	arch := &fakeArchiver{}
	h := newHarness(t, tone(1600), &fakeGateway{text: "kept"}, withArchiver(arch))

	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, time.Second)
	h.waitUpdate(Transcribed)
	u := h.waitUpdate(Notice)
	require.Equal(t, "audio saved to /tmp/session.flac", u.Message)
	require.Equal(t, int32(1), arch.saved.Load())
}

func TestSlowArchiveDoesNotDelayDelivery(t *testing.T) {
	arch := &fakeArchiver{gate: make(chan struct{})}
	h := newHarness(t, tone(1600), &fakeGateway{text: "first"}, withArchiver(arch))

	h.key(hotkey.Down, 0)
	h.key(hotkey.Up, time.Second)
	u := h.waitUpdate(Transcribed)
	require.Equal(t, "first", u.Entry.Text)
	h.waitMode(ModeIdle)
	require.Equal(t, []string{"first"}, h.paster.pasted())
	require.Zero(t, arch.saved.Load())

	// a new session can start while the archive is still being written
	h.key(hotkey.Down, 2*time.Second)
	h.waitMode(ModeRecordingHold)

	close(arch.gate)
	u = h.waitUpdate(Notice)
	require.Equal(t, "audio saved to /tmp/session.flac", u.Message)
	require.Equal(t, int32(1), arch.saved.Load())
}
