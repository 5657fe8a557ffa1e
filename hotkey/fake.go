package hotkey

import "sync"

type FakeHotkey struct {
	Binding     Binding
	RegisterErr error

	keydown chan struct{}
	keyup   chan struct{}

	mu           sync.Mutex
	registered   bool
	unregistered int
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		Binding: DefaultBinding,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	if f.registered {
		f.unregistered++
	}
	f.registered = false
	f.mu.Unlock()
}

func (f *FakeHotkey) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

// SimKeydown and SimKeyup behave like the OS: nothing fires for an
// unregistered hotkey, and repeats beyond the buffer are dropped.
func (f *FakeHotkey) SimKeydown() { f.sim(f.keydown) }
func (f *FakeHotkey) SimKeyup()   { f.sim(f.keyup) }

func (f *FakeHotkey) sim(ch chan struct{}) {
	if !f.Registered() {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// FakeFactory records every hotkey it builds, for use with Manager.
type FakeFactory struct {
	mu    sync.Mutex
	Built []*FakeHotkey
	// Fail, when set, makes hotkeys for matching bindings refuse to register.
	Fail func(Binding) error
}

func (ff *FakeFactory) New(b Binding) Hotkey {
	f := NewFake()
	f.Binding = b
	if ff.Fail != nil {
		f.RegisterErr = ff.Fail(b)
	}
	ff.mu.Lock()
	ff.Built = append(ff.Built, f)
	ff.mu.Unlock()
	return f
}

// Active returns the hotkeys currently registered.
func (ff *FakeFactory) Active() []*FakeHotkey {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	var out []*FakeHotkey
	for _, f := range ff.Built {
		if f.Registered() {
			out = append(out, f)
		}
	}
	return out
}
