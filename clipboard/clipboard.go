// Package clipboard puts transcripts on the system clipboard and sends the
// platform paste keystroke to the focused window.
package clipboard

import (
	"time"

	cb "github.com/atotto/clipboard"

	"murmur/log"
)

const DefaultPasteDelay = 200 * time.Millisecond

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Paster delivers text by copying it and then sending the paste keystroke
// once Delay has passed. Paste never blocks the caller.
type Paster struct {
	Delay time.Duration

	// Overridable for tests.
	copy      func(string) error
	keystroke func() error
	done      func(error)
}

func NewPaster(delay time.Duration) *Paster {
	if delay < 0 {
		delay = 0
	}
	return &Paster{Delay: delay, copy: Copy, keystroke: SendPaste}
}

func (p *Paster) Paste(text string) {
	go func() {
		err := p.Deliver(text)
		if err != nil {
			log.Errorf("paste failed: %v", err)
		}
		if p.done != nil {
			p.done(err)
		}
	}()
}

// Deliver is the synchronous form of Paste. If the copy fails no
// keystroke is sent.
func (p *Paster) Deliver(text string) error {
	if err := p.copy(text); err != nil {
		return err
	}
	if p.Delay > 0 {
		time.Sleep(p.Delay)
	}
	return p.keystroke()
}
