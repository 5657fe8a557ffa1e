// Package transcriber hands captured audio to the recognition engine and
// normalizes what comes back.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"murmur/engine"
	"murmur/model"
)

var (
	ErrModelNotLoaded      = model.ErrNotLoaded
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// ModelSource yields the loaded engine, blocking until it is available.
type ModelSource interface {
	Wait(ctx context.Context) (engine.Engine, error)
}

// Gateway serializes engine calls; at most one inference runs at a time.
type Gateway struct {
	models ModelSource

	mu sync.Mutex
}

func New(models ModelSource) *Gateway {
	return &Gateway{models: models}
}

// Transcribe runs one inference over samples. onPartial, if non-nil,
// receives the running text after each segment. The returned text is the
// trimmed concatenation of all segments in emission order.
func (g *Gateway) Transcribe(ctx context.Context, samples []float32, onPartial func(text string)) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	eng, err := g.models.Wait(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %w", ErrModelNotLoaded, err)
	}
	if eng == nil {
		return "", ErrModelNotLoaded
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	err = eng.Infer(ctx, samples, func(seg engine.Segment) {
		b.WriteString(seg.Text)
		if onPartial != nil {
			onPartial(strings.TrimSpace(b.String()))
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Join concatenates segment texts in order and trims the result.
func Join(segments []engine.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}
