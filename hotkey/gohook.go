package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrSourceStopped is reported by Pressed once the underlying event stream
// has terminated.
var ErrSourceStopped = errors.New("hotkey: key event stream stopped")

// GohookSource maintains a pressed-key set from the global gohook event
// stream and answers whether the configured combination is held.
//
// Sampling the set from the Watcher is the single authoritative edge
// detection strategy; per-key callbacks are deliberately not registered, so
// an edge can never fire twice for one physical transition.
type GohookSource struct {
	combo [][]uint16 // one entry per combo key; any listed code satisfies it

	mu      sync.Mutex
	pressed map[uint16]bool
	stopped bool
}

// NewGohookSource parses a combination like "ctrl+shift+space", starts the
// global hook and begins tracking key state.
func NewGohookSource(combo string) (*GohookSource, error) {
	codes, err := parseCombo(combo)
	if err != nil {
		return nil, err
	}

	s := &GohookSource{
		combo:   codes,
		pressed: make(map[uint16]bool),
	}
	go s.consume(hook.Start())
	return s, nil
}

// Pressed reports whether every key of the combination is currently held.
func (s *GohookSource) Pressed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false, ErrSourceStopped
	}
	for _, alternatives := range s.combo {
		held := false
		for _, code := range alternatives {
			if s.pressed[code] {
				held = true
				break
			}
		}
		if !held {
			return false, nil
		}
	}
	return true, nil
}

// Close stops the global hook. The event stream drains and Pressed starts
// returning ErrSourceStopped.
func (s *GohookSource) Close() {
	hook.End()
}

func (s *GohookSource) consume(events chan hook.Event) {
	for ev := range events {
		switch ev.Kind {
		case hook.KeyDown, hook.KeyHold:
			s.mu.Lock()
			s.pressed[ev.Keycode] = true
			s.mu.Unlock()
		case hook.KeyUp:
			s.mu.Lock()
			delete(s.pressed, ev.Keycode)
			s.mu.Unlock()
		}
	}

	s.mu.Lock()
	s.stopped = true
	s.pressed = make(map[uint16]bool)
	s.mu.Unlock()
}

// modifier aliases and their left/right keycode variants.
var modifierVariants = map[string][]string{
	"ctrl":  {"ctrl", "lctrl", "rctrl"},
	"shift": {"shift", "lshift", "rshift"},
	"alt":   {"alt", "lalt", "ralt"},
	"cmd":   {"cmd", "lcmd", "rcmd"},
}

var keyAliases = map[string]string{
	"control": "ctrl",
	"option":  "alt",
	"win":     "cmd",
	"super":   "cmd",
	"meta":    "cmd",
	"return":  "enter",
	"escape":  "esc",
}

// parseCombo resolves a "+"-separated combination into keycodes from the
// gohook key table. Each combo key may be satisfied by several codes
// (left/right modifier variants).
func parseCombo(combo string) ([][]uint16, error) {
	parts := strings.Split(combo, "+")
	if combo == "" || len(parts) == 0 {
		return nil, fmt.Errorf("empty hotkey combination")
	}

	codes := make([][]uint16, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if alias, ok := keyAliases[name]; ok {
			name = alias
		}

		names := []string{name}
		if variants, ok := modifierVariants[name]; ok {
			names = variants
		}

		var alternatives []uint16
		for _, n := range names {
			if code, ok := hook.Keycode[n]; ok {
				alternatives = append(alternatives, code)
			}
		}
		if len(alternatives) == 0 {
			return nil, fmt.Errorf("unknown key %q in combination %q", part, combo)
		}
		codes = append(codes, alternatives)
	}
	return codes, nil
}
