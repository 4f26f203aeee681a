// Package commandblock keeps the settings of placed command blocks and lets
// players edit them through a form.
package commandblock

import (
	"fmt"
	"strings"
)

// Mode is the execution mode of a command block.
type Mode int

const (
	Impulse Mode = iota
	Chain
	Repeat
)

var modeNames = []string{"Impulse", "Chain", "Repeat"}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= Impulse && m <= Repeat
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(strings.ToLower(m.String())), nil
}

// UnmarshalText accepts a mode name in any case.
func (m *Mode) UnmarshalText(text []byte) error {
	for i, name := range modeNames {
		if strings.EqualFold(name, string(text)) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// Record is the configuration stored for one command block.
type Record struct {
	Command       string `json:"command"`
	Mode          Mode   `json:"mode"`
	Conditional   bool   `json:"conditional"`
	NeedsRedstone bool   `json:"needs_redstone"`
}

// DefaultRecord is the record of a freshly placed command block.
func DefaultRecord() Record {
	return Record{Mode: Impulse, NeedsRedstone: true}
}
