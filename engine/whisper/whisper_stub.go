//go:build !whisper

package whisper

import (
	"context"
	"errors"

	"murmur/engine"
)

// Available reports whether this binary was built with whisper.cpp.
const Available = false

var ErrUnavailable = errors.New("built without whisper.cpp support (rebuild with -tags whisper)")

type Loader struct {
	Language string
	Threads  uint
}

func (Loader) Load(context.Context, string, func(float64)) (engine.Engine, error) {
	return nil, ErrUnavailable
}

// Check always fails; this build has no recognizer to load a model into.
func (Loader) Check() error { return ErrUnavailable }
