// Package beep plays short sound cues for recording start, stop and errors.
package beep

import (
	"math"
	"sync/atomic"
)

const sampleRate = 44100

type Cue int

const (
	Start Cue = iota
	Stop
	Error
)

// tone is an exponentially decaying sine, played Repeat times with Gap
// seconds of silence between plays.
type tone struct {
	Freq     float64
	Duration float64
	Volume   float64
	Decay    float64
	Repeat   int
	Gap      float64
}

var tones = map[Cue]tone{
	Start: {Freq: 1200, Duration: 0.06, Volume: 0.5, Decay: 60, Repeat: 1},
	Stop:  {Freq: 900, Duration: 0.08, Volume: 0.5, Decay: 40, Repeat: 1},
	Error: {Freq: 350, Duration: 0.08, Volume: 0.6, Decay: 30, Repeat: 2, Gap: 0.05},
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

// samples renders a cue as mono 16-bit PCM.
func samples(c Cue, rate int) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	n := int(float64(rate) * t.Duration)
	one := make([]int16, n)
	for i := range one {
		x := float64(i) / float64(rate)
		env := math.Exp(-x * t.Decay)
		one[i] = int16(math.Sin(2*math.Pi*t.Freq*x) * 32767 * t.Volume * env)
	}
	if t.Repeat <= 1 {
		return one
	}
	gap := make([]int16, int(float64(rate)*t.Gap))
	out := make([]int16, 0, t.Repeat*n+(t.Repeat-1)*len(gap))
	for i := 0; i < t.Repeat; i++ {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, one...)
	}
	return out
}

func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(c)
}

func PlayStart() { Play(Start) }
func PlayStop()  { Play(Stop) }
func PlayError() { Play(Error) }
