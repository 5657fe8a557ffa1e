package audio

import "math"

// rmsFloor keeps log10 finite for digital silence (-80 dB).
const rmsFloor = 1e-4

// LevelWindow maps a decibel range onto [0,1] for metering.
type LevelWindow struct {
	MinDB float64
	MaxDB float64
}

var DefaultLevelWindow = LevelWindow{MinDB: -60, MaxDB: 0}

// RMS returns the root mean square of the first channel of an interleaved block.
func RMS(samples []float32, channels int) float64 {
	if channels < 1 {
		channels = 1
	}
	var sum float64
	n := 0
	for i := 0; i < len(samples); i += channels {
		s := float64(samples[i])
		sum += s * s
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// Level converts a block to a normalized loudness in [0,1].
func (w LevelWindow) Level(samples []float32, channels int) float64 {
	if w.MaxDB <= w.MinDB {
		return 0
	}
	db := 20 * math.Log10(math.Max(RMS(samples, channels), rmsFloor))
	db = math.Max(w.MinDB, math.Min(w.MaxDB, db))
	return (db - w.MinDB) / (w.MaxDB - w.MinDB)
}
