package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

// fakeBlock is the block duration fed by FakeCapture, matching real devices.
const fakeBlock = 100 * time.Millisecond

// FakeContext serves a single pre-decoded clip to every capture it opens.
type FakeContext struct {
	samples  []float32
	format   Format
	realtime bool
}

// NewFakeContext decodes a PCM WAV file. With realtime set, captures pace
// blocks at wall-clock speed and then feed silence until stopped.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	samples, format, err := ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return &FakeContext{samples: samples, format: format, realtime: realtime}, nil
}

// ReadWAV decodes a PCM WAV file into interleaved float32 in [-1,1].
func ReadWAV(path string) ([]float32, Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Format{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, Format{}, fmt.Errorf("%s: not a PCM WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	bits := int(d.BitDepth)
	if bits == 0 {
		bits = 16
	}
	scale := float32(int64(1) << (bits - 1))
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(v) / scale
	}
	return out, Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo) (CaptureDevice, error) {
	return NewFakeCapture(f.samples, f.format, f.realtime), nil
}

// FakeCapture replays a clip through the callback. Without realtime the
// whole clip is delivered synchronously inside Start.
type FakeCapture struct {
	samples  []float32
	format   Format
	realtime bool

	// StartErr, if set, is returned by Start.
	StartErr error

	mu       sync.Mutex
	cb       DataCallback
	running  bool
	starts   int
	closed   bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func NewFakeCapture(samples []float32, format Format, realtime bool) *FakeCapture {
	if format.Channels < 1 {
		format.Channels = 1
	}
	if format.SampleRate <= 0 {
		format.SampleRate = TargetSampleRate
	}
	return &FakeCapture{samples: samples, format: format, realtime: realtime}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Running reports whether the device is between Start and Stop.
func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Push delivers one block as if the device produced it.
func (f *FakeCapture) Push(block []float32) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(block, f.format)
	}
}

func (f *FakeCapture) blockLen() int {
	n := f.format.SampleRate * f.format.Channels * int(fakeBlock/time.Millisecond) / 1000
	return max(n, f.format.Channels)
}

func (f *FakeCapture) Start() error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.mu.Lock()
	f.running = true
	f.starts++
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done := f.stopCh, f.feedDone
	f.mu.Unlock()

	step := f.blockLen()
	if !f.realtime {
		for pos := 0; pos < len(f.samples); pos += step {
			f.Push(f.samples[pos:min(pos+step, len(f.samples))])
		}
		close(done)
		return nil
	}

	go func() {
		defer close(done)
		silence := make([]float32, step)
		pos := 0
		ticker := time.NewTicker(fakeBlock)
		defer ticker.Stop()
		for {
			if pos < len(f.samples) {
				end := min(pos+step, len(f.samples))
				f.Push(f.samples[pos:end])
				pos = end
			} else {
				f.Push(silence)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	f.running = false
	f.mu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
