package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// ErrUnsupportedPlatform is returned by Listen where the rawcode table does
// not apply. Only Windows virtual-key codes are mapped.
var ErrUnsupportedPlatform = errors.New("global hotkey is only supported on Windows")

var goos = runtime.GOOS

// Combo is a parsed key combination such as "Ctrl+Alt+A".
type Combo struct {
	Raw  string
	Keys []Key
}

// Key is one key of a combination with every rawcode that counts as it
// (left and right variants for modifiers).
type Key struct {
	Name     string
	Rawcodes []uint16
}

// Parse normalizes a hotkey string. Every key must be known.
func Parse(hotkeyConfig string) (Combo, error) {
	combo := Combo{Raw: hotkeyConfig}
	for _, name := range parseHotkey(hotkeyConfig) {
		if name == "" {
			return Combo{}, fmt.Errorf("hotkey %q has an empty key", hotkeyConfig)
		}
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", hotkeyConfig, name)
		}
		combo.Keys = append(combo.Keys, Key{Name: name, Rawcodes: codes})
	}
	if len(combo.Keys) == 0 {
		return Combo{}, fmt.Errorf("hotkey %q has no keys", hotkeyConfig)
	}
	return combo, nil
}

// matcher tracks which keys of a combo are held down.
type matcher struct {
	mu      sync.Mutex
	keys    []Key
	pressed []bool
}

func newMatcher(c Combo) *matcher {
	return &matcher{keys: c.Keys, pressed: make([]bool, len(c.Keys))}
}

// down records a key press and reports whether the whole combo is now held.
// A full match resets the state so holding the keys fires once.
func (m *matcher) down(rawcode uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(rawcode, true)
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	for i := range m.pressed {
		m.pressed[i] = false
	}
	return true
}

func (m *matcher) up(rawcode uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(rawcode, false)
}

func (m *matcher) set(rawcode uint16, v bool) {
	for i, k := range m.keys {
		for _, rc := range k.Rawcodes {
			if rc == rawcode {
				m.pressed[i] = v
				break
			}
		}
	}
}

// Listen calls callback each time combo is pressed, until ctx is cancelled.
// The global hook runs on its own goroutine.
func Listen(ctx context.Context, combo Combo, callback func()) error {
	if goos != "windows" {
		return fmt.Errorf("%w (running on %s)", ErrUnsupportedPlatform, goos)
	}
	m := newMatcher(combo)
	log.Printf("Hotkey listener configured for: %s", combo.Raw)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("Event channel closed")
					return
				}
				switch ev.Kind {
				case gohook.KeyDown:
					if m.down(ev.Rawcode) {
						log.Printf("Hotkey activated: %s", combo.Raw)
						if callback != nil {
							callback()
						}
					}
				case gohook.KeyUp:
					m.up(ev.Rawcode)
				}
			}
		}
	}()
	return nil
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+a" to normalized key names.
func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "control":
			part = "ctrl"
		case "win", "super", "meta":
			part = "cmd"
		case "option":
			part = "alt"
		}
		keys = append(keys, part)
	}
	return keys
}

// Windows virtual-key codes, which gohook reports as Rawcode.
var rawcodes = func() map[string][]uint16 {
	m := map[string][]uint16{
		"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
		"alt":   {164, 165}, // VK_LMENU, VK_RMENU
		"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
		"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

		"space":     {32},
		"enter":     {13},
		"return":    {13},
		"esc":       {27},
		"escape":    {27},
		"tab":       {9},
		"backspace": {8},
		"delete":    {46},
		"del":       {46},
		"insert":    {45},
		"ins":       {45},
		"home":      {36},
		"end":       {35},
		"pageup":    {33},
		"pgup":      {33},
		"pagedown":  {34},
		"pgdn":      {34},
		"left":      {37},
		"up":        {38},
		"right":     {39},
		"down":      {40},
	}
	for c := 'a'; c <= 'z'; c++ {
		m[string(c)] = []uint16{uint16('A' + (c - 'a'))}
	}
	for c := '0'; c <= '9'; c++ {
		m[string(c)] = []uint16{uint16(c)}
	}
	for i := 1; i <= 24; i++ {
		m[fmt.Sprintf("f%d", i)] = []uint16{uint16(111 + i)} // VK_F1 = 112
	}
	return m
}()

// keyNameToRawcodes maps a key name to its rawcodes, or nil when unknown.
func keyNameToRawcodes(keyName string) []uint16 {
	return rawcodes[strings.ToLower(strings.TrimSpace(keyName))]
}
