package vm

import (
	"fmt"
	"sort"
	"strings"
)

// Quirks toggles instruction behaviour that differs between historical
// interpreters. Quirks are captured when an instruction is decoded.
type Quirks struct {
	// 8XY6/8XYE copy VY into VX before shifting.
	ShiftUsesVY bool
	// BNNN jumps to NNN+VX instead of NNN+V0.
	JumpUsesVX bool
	// FX55/FX65 leave I pointing past the last register transferred.
	IncrementIndex bool
}

var quirkPresets = map[string]Quirks{
	"default": {IncrementIndex: true},
	"cosmac":  {ShiftUsesVY: true, IncrementIndex: true},
	"schip":   {JumpUsesVX: true},
}

func DefaultQuirks() Quirks {
	return quirkPresets["default"]
}

// QuirksPreset returns a named quirk set.
func QuirksPreset(name string) (Quirks, error) {
	q, ok := quirkPresets[strings.ToLower(name)]
	if !ok {
		return Quirks{}, fmt.Errorf("unknown quirks preset %q (known: %s)", name, strings.Join(QuirksPresetNames(), ", "))
	}
	return q, nil
}

func QuirksPresetNames() []string {
	names := make([]string, 0, len(quirkPresets))
	for name := range quirkPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (q Quirks) String() string {
	return fmt.Sprintf("shift-vy=%t jump-vx=%t inc-i=%t", q.ShiftUsesVY, q.JumpUsesVX, q.IncrementIndex)
}
