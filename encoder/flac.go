package encoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

var errClosed = errors.New("flac writer closed")

// Writer streams 16 kHz mono PCM to w as FLAC. Samples are held back until
// a full BlockSize frame is available; Close emits the short tail frame.
// When w is an io.WriteSeeker, Close also rewrites the stream header with
// the final sample count. Close closes w if it is an io.Closer.
type Writer struct {
	enc     *flac.Encoder
	pending []int32
	written uint64
	closed  bool
}

func NewWriter(w io.Writer) (*Writer, error) {
	enc, err := flac.NewEncoder(w, &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	})
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &Writer{enc: enc, pending: make([]int32, 0, BlockSize)}, nil
}

// Write queues pcm, flushing every completed frame.
func (w *Writer) Write(pcm []int16) error {
	if w.closed {
		return errClosed
	}
	for _, s := range pcm {
		w.pending = append(w.pending, int32(s))
		if len(w.pending) == BlockSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	n := len(w.pending)
	samples := make([]int32, n)
	copy(samples, w.pending)
	w.pending = w.pending[:0]

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  n,
		}},
	}
	if err := w.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	w.written += uint64(n)
	return nil
}

// Samples reports how many samples have been encoded so far.
func (w *Writer) Samples() uint64 { return w.written }

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.flush()
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("finishing flac stream: %w", err)
	}
	return flushErr
}
