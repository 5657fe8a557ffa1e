// Package model makes sure a recognition model is on disk and loaded
// before anyone transcribes with it.
package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"murmur/engine"
)

var (
	ErrNotLoaded      = errors.New("model not loaded")
	ErrDownloadFailed = errors.New("model download failed")
	ErrLoadFailed     = errors.New("model load failed")
)

// BaseURL is the whisper.cpp model repository on Hugging Face.
const BaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Composite progress: download fills [0, downloadShare], load fills the rest.
const (
	downloadShare = 0.5
	downloadStart = 0.01
)

type Phase int

const (
	NotPresent Phase = iota
	Downloading
	Loading
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case NotPresent:
		return "not present"
	case Downloading:
		return "downloading"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a snapshot of the lifecycle. Progress is the composite value in
// [0,1] and never decreases; on failure it stays where it stopped.
type State struct {
	Phase    Phase
	Progress float64
	Err      error
	// Fetch is set once a download completes and carried by later states.
	Fetch *FetchMetrics
}

type Config struct {
	Path   string // local artifact
	URL    string // fetched when Path is missing
	SHA256 string // optional hex digest checked after download
}

// DefaultDir is where models live unless configured otherwise.
func DefaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "murmur", "models")
	}
	return filepath.Join(os.TempDir(), "murmur", "models")
}

// Manager runs the download+load task once per process and exposes it as
// a future through Wait.
type Manager struct {
	cfg    Config
	loader engine.Loader
	client *http.Client

	once sync.Once
	done chan struct{}
	eng  engine.Engine // set before done is closed
	err  error

	mu        sync.Mutex
	state     State
	observers []func(State)
	subs      map[int]chan State
	nextSub   int
}

func NewManager(cfg Config, loader engine.Loader, client *http.Client) *Manager {
	if client == nil {
		client = NewClient()
	}
	return &Manager{
		cfg:    cfg,
		loader: loader,
		client: client,
		done:   make(chan struct{}),
		state:  State{Phase: NotPresent},
		subs:   make(map[int]chan State),
	}
}

// Observe registers fn to be called synchronously on every state change.
// fn must not block or call back into the Manager.
func (m *Manager) Observe(fn func(State)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Subscribe returns a channel carrying the latest state. Intermediate
// states may be skipped when the reader is slow; the final one never is.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Start launches the lifecycle task. Only the first call has an effect.
func (m *Manager) Start(ctx context.Context) {
	m.once.Do(func() {
		go m.run(ctx)
	})
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	// checked before the download so an unusable build fetches nothing
	if c, ok := m.loader.(engine.Checker); ok {
		if err := c.Check(); err != nil {
			m.fail(fmt.Errorf("%w: %v", ErrLoadFailed, err))
			return
		}
	}

	_, err := os.Stat(m.cfg.Path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		m.advance(Downloading, downloadStart)
		fetch, err := download(ctx, m.client, m.cfg.URL, m.cfg.Path, m.cfg.SHA256, func(written, total int64) {
			if total > 0 {
				m.advance(Downloading, float64(written)/float64(total)*downloadShare)
			}
		})
		if err != nil {
			m.fail(fmt.Errorf("%w: %v", ErrDownloadFailed, err))
			return
		}
		m.mu.Lock()
		m.state.Fetch = &fetch
		m.mu.Unlock()
	default:
		m.fail(fmt.Errorf("%w: %v", ErrLoadFailed, err))
		return
	}

	m.advance(Loading, downloadShare)
	eng, err := m.loader.Load(ctx, m.cfg.Path, func(fraction float64) {
		fraction = max(0, min(1, fraction))
		m.advance(Loading, downloadShare+fraction*(1-downloadShare))
	})
	if err != nil {
		m.fail(fmt.Errorf("%w: %v", ErrLoadFailed, err))
		return
	}
	if eng == nil {
		m.fail(fmt.Errorf("%w: loader returned no engine", ErrLoadFailed))
		return
	}

	m.mu.Lock()
	m.eng = eng
	m.state = State{Phase: Ready, Progress: 1, Fetch: m.state.Fetch}
	m.publishLocked()
	m.mu.Unlock()
}

// advance moves to phase at progress p, ignoring regressions and anything
// after a terminal phase.
func (m *Manager) advance(phase Phase, p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase == Ready || m.state.Phase == Failed {
		return
	}
	if phase == m.state.Phase && p <= m.state.Progress {
		return
	}
	m.state.Phase = phase
	m.state.Progress = max(m.state.Progress, p)
	m.publishLocked()
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.state.Phase = Failed
	m.state.Err = err
	m.publishLocked()
	m.mu.Unlock()
}

func (m *Manager) publishLocked() {
	s := m.state
	for _, fn := range m.observers {
		fn(s)
	}
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Wait blocks until the lifecycle finishes and returns the engine, or the
// sticky failure.
func (m *Manager) Wait(ctx context.Context) (engine.Engine, error) {
	select {
	case <-m.done:
		if m.err != nil {
			return nil, m.err
		}
		return m.eng, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Ready() bool {
	return m.State().Phase == Ready
}

// Err returns the terminal failure, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) Path() string { return m.cfg.Path }

// Close releases the engine if loading finished. An in-flight load is
// left alone.
func (m *Manager) Close() error {
	select {
	case <-m.done:
	default:
		return nil
	}
	if m.eng != nil {
		return m.eng.Close()
	}
	return nil
}
