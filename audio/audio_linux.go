//go:build linux

package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// recordChannels is the stream layout for a source: stereo when the source
// has two or more positions, mono otherwise. Wider maps are down-mixed by
// the server.
func recordChannels(m proto.ChannelMap) int {
	if len(m) >= 2 {
		return 2
	}
	return 1
}

func layoutOption(m proto.ChannelMap) pulse.RecordOption {
	if recordChannels(m) == 2 {
		return pulse.RecordStereo
	}
	return pulse.RecordMono
}

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("murmur"))
	if err != nil {
		return nil, fmt.Errorf("%w: pulse: %v", ErrDeviceUnavailable, err)
	}
	return &pulseContext{client: c}, nil
}

func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		devices = append(devices, DeviceInfo{
			ID:   s.ID(),
			Name: s.Name(),
		})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo) (CaptureDevice, error) {
	var source *pulse.Source
	var err error
	if device != nil {
		source, err = p.client.SourceByID(device.ID)
	} else {
		source, err = p.client.DefaultSource()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &pulseCapture{client: p.client, source: source}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	client   *pulse.Client
	source   *pulse.Source
	callback atomic.Pointer[DataCallback]
	format   atomic.Pointer[Format]

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		cb := c.callback.Load()
		f := c.format.Load()
		if cb == nil || f == nil || len(buf) == 0 {
			return len(buf), nil
		}
		(*cb)(buf, *f)
		return len(buf), nil
	})

	// Native rate and layout, ~100ms blocks.
	opts := []pulse.RecordOption{
		pulse.RecordSource(c.source),
		pulse.RecordSampleRate(c.source.SampleRate()),
		pulse.RecordLatency(0.1),
		pulse.RecordMediaName("dictation"),
	}
	opts = append(opts, layoutOption(c.source.Channels()))

	stream, err := c.client.NewRecord(writer, opts...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}
	c.format.Store(&Format{SampleRate: stream.SampleRate(), Channels: stream.Channels()})

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done

	go func() {
		defer close(done)
		stream.Start()
		<-stop
		stream.Stop()
		stream.Close()
	}()

	return nil
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return
	}
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.source != nil {
		return c.source.Name()
	}
	return "system default"
}
