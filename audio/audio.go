package audio

import (
	"errors"
	"strings"
	"time"
)

// TargetSampleRate is the rate the recognition engine consumes.
const TargetSampleRate = 16000

// Duration is the play time of n samples at TargetSampleRate.
func Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / TargetSampleRate
}

var (
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
	ErrEmptyAudio        = errors.New("no audio recorded")
	ErrAlreadyRecording  = errors.New("already recording")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset mic,
// which usually means narrowband capture.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Format describes a block of interleaved float32 samples as the device
// produced it.
type Format struct {
	SampleRate int
	Channels   int
}

// DataCallback receives interleaved native samples. The slice is only valid
// for the duration of the call.
type DataCallback func(samples []float32, format Format)

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
