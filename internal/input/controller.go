// Package input models the two NES controller ports and the $4016/$4017
// shift-register protocol games poll to read them (§4.2).
package input

import "log"

// Button is a single NES controller button, addressable as a bit in the
// packed state internal/emu's host API exchanges (§6): A=1, B=2,
// Select=4, Start=8, Up=16, Down=32, Left=64, Right=128.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Short aliases matching the order games expect when probing all eight
// buttons as a unit.
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller is one NES controller port: a latch capturing the live
// button state plus an 8-bit shift register the CPU drains one bit per
// $4016/$4017 read (§4.2).
type Controller struct {
	live uint8 // buttons currently held down

	latched bool   // true while $4016 bit 0 is set (strobe)
	shift   uint8  // bits not yet read out
	cursor  uint8  // how many bits have been shifted out since the last latch

	reads, writes uint64
	trace         bool
}

// New returns a Controller with no buttons held.
func New() *Controller {
	return &Controller{}
}

// SetButton presses or releases a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	before := c.live
	if pressed {
		c.live |= uint8(button)
	} else {
		c.live &^= uint8(button)
	}
	if c.trace {
		log.Printf("input: SetButton %08b pressed=%v live %08b -> %08b", uint8(button), pressed, before, c.live)
	}
}

// SetButtons replaces all eight button states at once, in NES order
// (A, B, Select, Start, Up, Down, Left, Right).
func (c *Controller) SetButtons(pressed [8]bool) {
	before := c.live
	var live uint8
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, btn := range order {
		if pressed[i] {
			live |= uint8(btn)
		}
	}
	c.live = live
	if c.trace {
		log.Printf("input: SetButtons %v live %08b -> %08b", pressed, before, c.live)
	}
}

// IsPressed reports whether button is currently held.
func (c *Controller) IsPressed(button Button) bool {
	return c.live&uint8(button) != 0
}

// Write handles a write to the controller's strobe line ($4016 bit 0,
// mirrored to both ports). Each write with bit 0 set latches live into
// shift, and reads while the strobe stays high return button A as of
// that write; on the high-to-low transition the latch captures live
// again as the stable snapshot for the CPU to shift out.
func (c *Controller) Write(value uint8) {
	c.writes++
	wasLatched := c.latched
	c.latched = value&1 != 0

	switch {
	case c.latched:
		c.shift = c.live
		c.cursor = 0
		if c.trace {
			log.Printf("input: strobe high, live=0x%02X", c.live)
		}
	case wasLatched:
		c.shift = c.live
		c.cursor = 0
		if c.trace {
			log.Printf("input: strobe low, latched=0x%02X", c.shift)
		}
	}
}

// Read shifts out the next button bit in bit 0. While the strobe is held
// high, every read returns button A as latched by the last strobe write
// instead of advancing the shift register. After all 8 buttons have been
// shifted out, further reads return 0 in bit 0, matching real controller
// hardware. Every read has bit 6 set, standing in for the open-bus bits
// the port does not drive.
func (c *Controller) Read() uint8 {
	c.reads++

	if c.latched {
		c.cursor = 0
		bit := c.shift & 1
		c.trace2("strobed read", bit)
		return bit | 0x40
	}

	if c.cursor >= 8 {
		c.cursor++
		c.trace2("post-8 read", 0)
		return 0x40
	}

	bit := c.shift & 1
	c.shift >>= 1
	c.cursor++
	c.trace2("shift read", bit)
	return bit | 0x40
}

// trace2 logs a read outcome, throttled to every 10th read so enabling
// debug on a running game doesn't flood the log.
func (c *Controller) trace2(what string, bit uint8) {
	if c.trace && c.reads%10 == 0 {
		log.Printf("input: %s bit=%d cursor=%d shift=0x%02X reads=%d", what, bit, c.cursor, c.shift, c.reads)
	}
}

// Reset clears all latch/shift state and held buttons.
func (c *Controller) Reset() {
	*c = Controller{}
}

// EnableDebug turns per-read/write tracing on or off.
func (c *Controller) EnableDebug(enable bool) { c.trace = enable }

// GetBitPosition reports how many bits have been shifted out since the
// last latch; exposed for tests exercising the read sequence directly.
func (c *Controller) GetBitPosition() uint8 { return c.cursor }

// InputState is both controller ports plus the shared $4016/$4017
// dispatch (§4.2).
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState returns a fresh pair of controllers.
func NewInputState() *InputState {
	return &InputState{Controller1: New(), Controller2: New()}
}

// CopyStateFrom overwrites is's controller state with o's (§6 whole-state
// transfer, used by internal/emu.LoadFromEmu for save-state restore).
func (is *InputState) CopyStateFrom(o *InputState) {
	*is.Controller1 = *o.Controller1
	*is.Controller2 = *o.Controller2
}

// Reset clears both controllers.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// EnableDebug turns tracing on or off for both ports.
func (is *InputState) EnableDebug(enable bool) {
	is.Controller1.EnableDebug(enable)
	is.Controller2.EnableDebug(enable)
}

// SetButtons1/SetButtons2 replace a whole port's button state at once.
func (is *InputState) SetButtons1(buttons [8]bool) { is.Controller1.SetButtons(buttons) }
func (is *InputState) SetButtons2(buttons [8]bool) { is.Controller2.SetButtons(buttons) }

// Read dispatches a CPU read of $4016 (controller 1) or $4017
// (controller 2). Reads from both ports carry bit 6 set, matching the
// NES's open-bus behavior on these registers.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write dispatches a CPU write to $4016; the strobe line is physically
// shared, so both controllers see every write.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
