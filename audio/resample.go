package audio

import "math"

// Resampler converts interleaved blocks of any rate and channel count to
// mono at a fixed output rate. When downsampling, a moving average over
// roughly one output period is applied first so that content above the
// output Nyquist rate is suppressed rather than folded into the speech band.
//
// It is streaming: filter and interpolation state carry over between
// blocks, so feeding a signal in pieces gives the same result as feeding it
// whole.
type Resampler struct {
	channels int
	step     float64 // input samples per output sample
	taps     int     // moving-average width, 1 when not downsampling

	pos      float64 // next output position, relative to the current block
	prev     float32 // last mono sample of the previous block (index -1)
	havePrev bool
	mono     []float32

	hist   []float32 // last taps-1 unfiltered samples
	window []float32
}

func NewResampler(in Format, outRate int) *Resampler {
	ch := in.Channels
	if ch < 1 {
		ch = 1
	}
	rate := in.SampleRate
	if rate <= 0 {
		rate = outRate
	}
	step := float64(rate) / float64(outRate)
	taps := 1
	if step > 1 {
		taps = int(math.Round(step))
	}
	return &Resampler{
		channels: ch,
		step:     step,
		taps:     taps,
	}
}

// smooth replaces r.mono with its moving average. The first block of a
// stream is padded with its first sample.
func (r *Resampler) smooth() {
	if r.taps <= 1 {
		return
	}
	if !r.havePrev {
		r.hist = r.hist[:0]
		for range r.taps - 1 {
			r.hist = append(r.hist, r.mono[0])
		}
	}
	r.window = append(append(r.window[:0], r.hist...), r.mono...)
	for f := range r.mono {
		var sum float64
		for _, s := range r.window[f : f+r.taps] {
			sum += float64(s)
		}
		r.mono[f] = float32(sum / float64(r.taps))
	}
	r.hist = append(r.hist[:0], r.window[len(r.window)-(r.taps-1):]...)
}

func (r *Resampler) sample(i int) float32 {
	if i < 0 {
		return r.prev
	}
	return r.mono[i]
}

// Process appends the converted samples for block to dst.
func (r *Resampler) Process(dst, block []float32) []float32 {
	frames := len(block) / r.channels
	if frames == 0 {
		return dst
	}

	r.mono = r.mono[:0]
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < r.channels; c++ {
			sum += block[f*r.channels+c]
		}
		r.mono = append(r.mono, sum/float32(r.channels))
	}
	r.smooth()

	if !r.havePrev {
		r.pos = 0
	}
	for {
		i0 := int(math.Floor(r.pos))
		if i0+1 > frames-1 {
			break
		}
		frac := float32(r.pos - float64(i0))
		a, b := r.sample(i0), r.sample(i0+1)
		dst = append(dst, a+(b-a)*frac)
		r.pos += r.step
	}

	r.pos -= float64(frames)
	r.prev = r.mono[frames-1]
	r.havePrev = true
	return dst
}

// Flush emits the trailing sample that was waiting on a right neighbour and
// resets the resampler.
func (r *Resampler) Flush(dst []float32) []float32 {
	if r.havePrev && r.pos <= -1 {
		dst = append(dst, r.prev)
	}
	r.havePrev = false
	r.pos = 0
	return dst
}
