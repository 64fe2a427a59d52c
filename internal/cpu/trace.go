package cpu

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// Trace is a single pre-execution CPU snapshot formatted for nestest-style
// automation logs (§8 scenario 1): register/flag columns plus the cycle
// counters a reference trace is diffed against.
type Trace struct {
	State
	Opcode      uint8
	Mnemonic    string
	PPUScanline int
	PPUDot      int
}

// FormatLine renders a trace entry as
// "PC  A:.. X:.. Y:.. P:.. SP:.. PPU:scanline,dot CYC:cycles", the layout
// nestest reference logs use (minus the disassembly column, which depends
// on operand bytes the caller already has from the bus).
func (t Trace) FormatLine() string {
	return fmt.Sprintf("%04X  A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d",
		t.PC, t.A, t.X, t.Y, t.P, t.SP, t.PPUScanline, t.PPUDot, t.Cycles)
}

// DumpState returns a multi-line human-readable dump of a State using
// go-spew, used by crash/debug reporting rather than the hot trace path.
func DumpState(s State) string {
	return spew.Sdump(s)
}
