package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Fake is a scripted Engine. Each Infer call emits Segments in order.
type Fake struct {
	Segments []string
	Err      error
	// Delay is slept before each segment is emitted.
	Delay time.Duration

	calls  atomic.Int32
	closed atomic.Bool

	mu   sync.Mutex
	last []float32
}

func NewFake(segments ...string) *Fake {
	return &Fake{Segments: segments}
}

func (f *Fake) Infer(ctx context.Context, samples []float32, onSegment func(Segment)) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = samples
	f.mu.Unlock()

	if f.Err != nil {
		return fmt.Errorf("fake engine: %w", f.Err)
	}
	step := time.Second
	for i, text := range f.Segments {
		if f.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.Delay):
			}
		}
		if onSegment != nil {
			onSegment(Segment{Text: text, Start: time.Duration(i) * step, End: time.Duration(i+1) * step})
		}
	}
	return nil
}

func (f *Fake) Calls() int { return int(f.calls.Load()) }

// LastSamples returns the buffer passed to the most recent Infer.
func (f *Fake) LastSamples() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *Fake) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *Fake) Closed() bool { return f.closed.Load() }

// FakeLoader hands out a fixed engine after reporting Steps progress ticks.
// Release, when non-nil, gates completion so tests can observe Loading.
type FakeLoader struct {
	Engine  Engine
	Err     error
	Steps   int
	Release chan struct{}

	loads atomic.Int32
	path  atomic.Value
}

func (l *FakeLoader) Load(ctx context.Context, modelPath string, progress func(float64)) (Engine, error) {
	l.loads.Add(1)
	l.path.Store(modelPath)

	steps := max(l.Steps, 1)
	for i := 1; i <= steps; i++ {
		if i == steps && l.Release != nil {
			select {
			case <-l.Release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if l.Err != nil && i == steps {
			return nil, l.Err
		}
		if progress != nil {
			progress(float64(i) / float64(steps))
		}
	}
	return l.Engine, nil
}

func (l *FakeLoader) Loads() int { return int(l.loads.Load()) }

func (l *FakeLoader) Path() string {
	p, _ := l.path.Load().(string)
	return p
}
