//go:build whisper

// Package whisper adapts the whisper.cpp Go bindings to engine.Engine.
// It needs cgo and libwhisper; build with -tags whisper.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"murmur/engine"

	wcpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const Available = true

type Loader struct {
	Language string
	Threads  uint
}

func (Loader) Check() error { return nil }

// Load reads the model file. The bindings give no sub-progress while
// loading, so progress jumps from 0 to 1.
func (l Loader) Load(ctx context.Context, modelPath string, progress func(float64)) (engine.Engine, error) {
	if progress != nil {
		progress(0)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := wcpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelPath, err)
	}
	if progress != nil {
		progress(1)
	}
	threads := l.Threads
	if threads == 0 {
		threads = uint(runtime.NumCPU())
	}
	lang := l.Language
	if lang == "" {
		lang = "en"
	}
	return &Engine{model: model, language: lang, threads: threads}, nil
}

type Engine struct {
	mu       sync.Mutex
	model    wcpp.Model
	language string
	threads  uint
}

func (e *Engine) Infer(ctx context.Context, samples []float32, onSegment func(engine.Segment)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	wctx, err := e.model.NewContext()
	if err != nil {
		return fmt.Errorf("whisper context: %w", err)
	}
	if err := wctx.SetLanguage(e.language); err != nil {
		return fmt.Errorf("whisper language %q: %w", e.language, err)
	}
	wctx.SetThreads(e.threads)

	emitted := 0
	segCb := func(s wcpp.Segment) {
		emitted++
		if onSegment != nil {
			onSegment(engine.Segment{Text: s.Text, Start: s.Start, End: s.End})
		}
	}
	if err := wctx.Process(samples, nil, segCb, nil); err != nil {
		return fmt.Errorf("whisper process: %w", err)
	}

	// Some binding versions only make segments available after Process.
	if emitted > 0 {
		return nil
	}
	for {
		s, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("whisper segment: %w", err)
		}
		if onSegment != nil && strings.TrimSpace(s.Text) != "" {
			onSegment(engine.Segment{Text: s.Text, Start: s.Start, End: s.End})
		}
	}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Close()
}
