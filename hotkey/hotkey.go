package hotkey

import (
	"fmt"
	"slices"
	"strings"
)

// Hotkey is one registered global key combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModAlt   Modifier = "alt"
	ModShift Modifier = "shift"
	ModSuper Modifier = "super"
)

var modifierOrder = []Modifier{ModCtrl, ModAlt, ModShift, ModSuper}

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

// Binding is a key plus the modifiers that must be held with it.
type Binding struct {
	Modifiers []Modifier
	Key       string
}

var DefaultBinding = Binding{Modifiers: []Modifier{ModCtrl, ModShift}, Key: "space"}

func validKey(k string) bool {
	switch {
	case k == "space":
		return true
	case len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9'):
		return true
	case len(k) >= 2 && k[0] == 'f':
		var n int
		_, err := fmt.Sscanf(k[1:], "%d", &n)
		return err == nil && n >= 1 && n <= 12 && fmt.Sprintf("f%d", n) == k
	}
	return false
}

// ParseBinding reads forms like "ctrl+shift+space" or "Option+Space".
// Modifier order and case do not matter.
func ParseBinding(s string) (Binding, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Binding{}, fmt.Errorf("hotkey %q: missing key", s)
	}
	key := strings.TrimSpace(parts[len(parts)-1])
	if !validKey(key) {
		return Binding{}, fmt.Errorf("hotkey %q: unsupported key %q", s, key)
	}

	var mods []Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierAliases[strings.TrimSpace(p)]
		if !ok {
			return Binding{}, fmt.Errorf("hotkey %q: unknown modifier %q", s, p)
		}
		if !slices.Contains(mods, m) {
			mods = append(mods, m)
		}
	}
	if len(mods) == 0 && (key == "space" || len(key) == 1) {
		return Binding{}, fmt.Errorf("hotkey %q: %q needs at least one modifier", s, key)
	}
	slices.SortFunc(mods, func(a, b Modifier) int {
		return slices.Index(modifierOrder, a) - slices.Index(modifierOrder, b)
	})
	return Binding{Modifiers: mods, Key: key}, nil
}

func (b Binding) Has(m Modifier) bool {
	return slices.Contains(b.Modifiers, m)
}

func (b Binding) Equal(o Binding) bool {
	return b.Key == o.Key && slices.Equal(b.Modifiers, o.Modifiers)
}

func (b Binding) String() string {
	parts := make([]string, 0, len(b.Modifiers)+1)
	for _, m := range b.Modifiers {
		parts = append(parts, string(m))
	}
	return strings.Join(append(parts, b.Key), "+")
}
