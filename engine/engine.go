// Package engine defines the boundary to the speech-recognition engine.
package engine

import (
	"context"
	"time"
)

// Segment is a span of recognized text as the engine emits it.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Engine runs inference on 16 kHz mono float32 samples. Implementations
// are not required to support concurrent Infer calls.
type Engine interface {
	Infer(ctx context.Context, samples []float32, onSegment func(Segment)) error
	Close() error
}

// Loader turns a model artifact on disk into a ready Engine. progress
// receives the load fraction in [0,1] and may be called from any goroutine.
type Loader interface {
	Load(ctx context.Context, modelPath string, progress func(fraction float64)) (Engine, error)
}

// Checker is implemented by loaders that can tell up front, before any
// model is fetched, that they will never produce an engine.
type Checker interface {
	Check() error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, modelPath string, progress func(float64)) (Engine, error)

func (f LoaderFunc) Load(ctx context.Context, modelPath string, progress func(float64)) (Engine, error) {
	return f(ctx, modelPath, progress)
}
