package audio

import (
	"fmt"
	"sync"
	"time"
)

// Recorder owns one capture device and accumulates a single session at a
// time as 16 kHz mono float32.
type Recorder struct {
	dev    CaptureDevice
	window LevelWindow

	mu      sync.Mutex
	active  bool
	closed  bool
	started time.Time
	format  Format
	resamp  *Resampler
	samples []float32
	onLevel func(float64)
}

// NewRecorder wraps dev. A nil dev yields a recorder whose Start always
// reports ErrDeviceUnavailable.
func NewRecorder(dev CaptureDevice, window LevelWindow) *Recorder {
	if window.MaxDB <= window.MinDB {
		window = DefaultLevelWindow
	}
	return &Recorder{dev: dev, window: window}
}

// Start begins a session. onLevel is called once per device block with the
// block's normalized loudness, from the device's goroutine; it must not block.
func (r *Recorder) Start(onLevel func(level float64)) error {
	r.mu.Lock()
	if r.dev == nil || r.closed {
		r.mu.Unlock()
		return ErrDeviceUnavailable
	}
	if r.active {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.active = true
	r.started = time.Now()
	r.samples = make([]float32, 0, TargetSampleRate*5)
	r.resamp = nil
	r.onLevel = onLevel
	r.mu.Unlock()

	r.dev.SetCallback(r.handle)
	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		r.mu.Lock()
		r.active = false
		r.samples = nil
		r.onLevel = nil
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return nil
}

func (r *Recorder) handle(block []float32, format Format) {
	level := r.window.Level(block, format.Channels)

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	if r.resamp == nil || format != r.format {
		if r.resamp != nil {
			r.samples = r.resamp.Flush(r.samples)
		}
		r.resamp = NewResampler(format, TargetSampleRate)
		r.format = format
	}
	r.samples = r.resamp.Process(r.samples, block)
	cb := r.onLevel
	r.mu.Unlock()

	if cb != nil {
		cb(level)
	}
}

// Stop ends the session and hands its samples to the caller. The device is
// halted before Stop returns and nothing is appended afterwards. A session
// that never started or captured nothing yields ErrEmptyAudio.
func (r *Recorder) Stop() ([]float32, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, ErrEmptyAudio
	}
	r.active = false
	r.mu.Unlock()

	r.dev.ClearCallback()
	r.dev.Stop()

	r.mu.Lock()
	out := r.samples
	if r.resamp != nil {
		out = r.resamp.Flush(out)
	}
	r.samples = nil
	r.resamp = nil
	r.onLevel = nil
	r.mu.Unlock()

	if len(out) == 0 {
		return nil, ErrEmptyAudio
	}
	return out, nil
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Elapsed reports how long the current session has been running.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return time.Since(r.started)
}

func (r *Recorder) DeviceName() string {
	if r.dev == nil {
		return ""
	}
	return r.dev.DeviceName()
}

// Cleanup releases the device. It is safe to call in any state and more
// than once.
func (r *Recorder) Cleanup() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	wasActive := r.active
	r.active = false
	r.closed = true
	r.samples = nil
	r.resamp = nil
	r.onLevel = nil
	r.mu.Unlock()

	if r.dev == nil {
		return
	}
	r.dev.ClearCallback()
	if wasActive {
		r.dev.Stop()
	}
	r.dev.Close()
}
