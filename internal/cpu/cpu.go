// Package cpu implements the 6502-derived CPU used by the console.
package cpu

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// IRQSource identifies a line that can assert the level-sensitive IRQ input.
type IRQSource uint8

const (
	IRQSourceAPUFrame IRQSource = 1 << iota
	IRQSourceDMC
	IRQSourceMapper
)

// Instruction describes one of the 256 opcode slots.
type Instruction struct {
	Name   string
	Opcode uint8
	Bytes  uint8
	Cycles uint8
	Mode   AddressingMode
	// PageCrossPenalty reports whether a load-class instruction adds a
	// cycle (and a dummy read at the uncorrected address) when its
	// AbsoluteX/AbsoluteY/IndirectIndexed operand crosses a page.
	PageCrossPenalty bool
	// Store reports whether this is a store-class instruction: it always
	// takes the worst-case cycle count and performs a dummy read from the
	// unfixed-high effective address, never the fast path.
	Store bool
	// RMW reports whether this is a read-modify-write instruction: it
	// always performs a dummy write of the original value before the real
	// write, and in indexed-absolute modes always takes the extra cycle.
	RMW bool
}

// Memory is the interface the CPU uses to access the system bus.
type Memory interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CPU is the 6502-derived processor core.
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C, Z, I, D, B, V, N bool

	memory Memory
	cycles uint64

	instructions [256]*Instruction

	nmiLine     bool // current level of the PPU's NMI output
	nmiPrevious bool
	nmiPending  bool

	irqSources uint8 // OR of asserted IRQSource bits

	// Tracer, when set, is invoked with the pre-execution register/flag
	// snapshot before every instruction; used by nestest-style automation.
	Tracer func(s State)
}

// State is an immutable snapshot of CPU-visible register state, used for
// trace logging and save states.
type State struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8
	Cycles      uint64
}

// New creates a CPU wired to the given bus.
func New(memory Memory) *CPU {
	cpu := &CPU{memory: memory, SP: 0xFD}
	cpu.initInstructions()
	return cpu
}

// Cycles returns the total number of CPU cycles executed since creation or
// the last Reset.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// GetStatusByte packs the flags into the 6502 status byte. The B flag here
// is the "software" form: callers that push for a hardware interrupt clear
// it explicitly before pushing.
func (cpu *CPU) GetStatusByte() uint8 {
	var p uint8 = unusedMask
	if cpu.C {
		p |= cFlagMask
	}
	if cpu.Z {
		p |= zFlagMask
	}
	if cpu.I {
		p |= iFlagMask
	}
	if cpu.D {
		p |= dFlagMask
	}
	if cpu.B {
		p |= bFlagMask
	}
	if cpu.V {
		p |= vFlagMask
	}
	if cpu.N {
		p |= nFlagMask
	}
	return p
}

// SetStatusByte unpacks a status byte into the flags. The unused bit is
// ignored.
func (cpu *CPU) SetStatusByte(p uint8) {
	cpu.C = p&cFlagMask != 0
	cpu.Z = p&zFlagMask != 0
	cpu.I = p&iFlagMask != 0
	cpu.D = p&dFlagMask != 0
	cpu.B = p&bFlagMask != 0
	cpu.V = p&vFlagMask != 0
	cpu.N = p&nFlagMask != 0
}

// Snapshot returns the current register state for tracing/save-states.
func (cpu *CPU) Snapshot() State {
	return State{A: cpu.A, X: cpu.X, Y: cpu.Y, SP: cpu.SP, PC: cpu.PC, P: cpu.GetStatusByte(), Cycles: cpu.cycles}
}

// Restore loads register state from a snapshot (used by save-state load).
func (cpu *CPU) Restore(s State) {
	cpu.A, cpu.X, cpu.Y, cpu.SP, cpu.PC = s.A, s.X, s.Y, s.SP, s.PC
	cpu.SetStatusByte(s.P)
	cpu.cycles = s.Cycles
}

// CopyStateFrom overwrites cpu's registers, flags, cycle count and
// pending-interrupt latches with o's, leaving cpu's bus reference and
// Tracer hook untouched. Used for whole-state save transfer.
func (cpu *CPU) CopyStateFrom(o *CPU) {
	memory, tracer, instructions := cpu.memory, cpu.Tracer, cpu.instructions
	*cpu = *o
	cpu.memory, cpu.Tracer, cpu.instructions = memory, tracer, instructions
}

// Reset reasserts the RESET latch; the vector is re-fetched immediately
// since the core does not model the reset line's duration separately from
// CPU steps (the host calls Reset between Step calls, per §5). Per §8,
// a reset leaves PRG/CHR/mirroring untouched, clears PPU vblank (handled
// by the bus), reloads PC from $FFFC, sets I=1, and unwrites the stack by
// three (S -= 3) without touching its contents.
func (cpu *CPU) Reset() {
	cpu.SP -= 3
	cpu.reloadFromVector()
}

// HardReset performs the power-up reset: SP is pinned to 0xFD (the
// canonical post-power-on value) rather than derived by subtracting 3
// from whatever the stack pointer held before.
func (cpu *CPU) HardReset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.reloadFromVector()
}

func (cpu *CPU) reloadFromVector() {
	cpu.C, cpu.Z, cpu.D, cpu.V, cpu.N = false, false, false, false, false
	cpu.I = true
	cpu.B = true

	low := uint16(cpu.memory.Read(resetVector))
	high := uint16(cpu.memory.Read(resetVector + 1))
	cpu.PC = (high << 8) | low
	cpu.cycles += 7
	cpu.nmiPending = false
	cpu.nmiLine = false
	cpu.nmiPrevious = false
	cpu.irqSources = 0
}

// SetNMILine updates the PPU NMI output level. NMI is edge-triggered: a
// low-to-high transition (vblank onset with NMI enabled) latches a
// pending NMI that is serviced at the next polling point.
func (cpu *CPU) SetNMILine(asserted bool) {
	if asserted && !cpu.nmiPrevious {
		cpu.nmiPending = true
	}
	cpu.nmiPrevious = asserted
	cpu.nmiLine = asserted
}

// SetIRQLine asserts or clears one of the level-sensitive IRQ sources.
// IRQ is re-evaluated every instruction boundary for as long as any source
// remains asserted (unlike NMI, there is no edge latch).
func (cpu *CPU) SetIRQLine(source IRQSource, asserted bool) {
	if asserted {
		cpu.irqSources |= uint8(source)
	} else {
		cpu.irqSources &^= uint8(source)
	}
}

func (cpu *CPU) irqAsserted() bool { return cpu.irqSources != 0 }

// Step executes one instruction and returns the number of CPU cycles it
// consumed, including page-cross and RMW penalties. The I flag used to
// gate IRQ servicing is the value in effect *before* the just-completed
// instruction ran: interrupt polling happens at the penultimate cycle of
// an instruction, so CLI/SEI/PLP always let one more instruction execute
// under the old disposition before the new one is observed.
func (cpu *CPU) Step() uint64 {
	iBeforeThisInstruction := cpu.I

	if cpu.Tracer != nil {
		cpu.Tracer(cpu.Snapshot())
	}

	opcode := cpu.memory.Read(cpu.PC)
	inst := cpu.instructions[opcode]
	startCycles := cpu.cycles

	if inst == nil {
		// KIL/JAM: halts the processor. Modeled as a perpetual 2-cycle
		// no-op so a host can still observe (and report) the halted PC.
		cpu.cycles += 2
		return 2
	}

	address, pageCrossed := cpu.getOperandAddress(inst)
	cpu.execute(opcode, inst, address)

	extra := uint64(0)
	if pageCrossed && (inst.PageCrossPenalty || inst.Store || inst.RMW) {
		extra = 1
	}
	cpu.cycles += uint64(inst.Cycles) + extra

	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.serviceInterrupt(nmiVector, false)
		cpu.cycles += 7
	} else if cpu.irqAsserted() && !iBeforeThisInstruction {
		cpu.serviceInterrupt(irqVector, false)
		cpu.cycles += 7
	}

	return cpu.cycles - startCycles
}

// serviceInterrupt pushes PC and status and jumps to the given vector.
// brk marks a software interrupt (BRK pushes with B=1); NMI/IRQ push with
// B=0. If NMI becomes pending while fetching an IRQ/BRK vector, the
// vector is hijacked to NMI's.
func (cpu *CPU) serviceInterrupt(vector uint16, brk bool) {
	cpu.pushWord(cpu.PC)
	status := cpu.GetStatusByte() &^ bFlagMask
	status |= unusedMask
	if brk {
		status |= bFlagMask
	}
	cpu.push(status)
	cpu.I = true
	low := uint16(cpu.memory.Read(vector))
	high := uint16(cpu.memory.Read(vector + 1))
	if vector != nmiVector && cpu.nmiPending {
		cpu.nmiPending = false
		low = uint16(cpu.memory.Read(nmiVector))
		high = uint16(cpu.memory.Read(nmiVector + 1))
	}
	cpu.PC = (high << 8) | low
}

// getOperandAddress resolves the effective address for mode, advancing PC
// past the instruction's operand bytes, and reports whether an indexed
// mode crossed a page boundary.
func (cpu *CPU) getOperandAddress(inst *Instruction) (uint16, bool) {
	switch inst.Mode {
	case Implied, Accumulator:
		cpu.PC++
		return 0, false

	case Immediate:
		addr := cpu.PC + 1
		cpu.PC += 2
		return addr, false

	case ZeroPage:
		addr := uint16(cpu.memory.Read(cpu.PC + 1))
		cpu.PC += 2
		return addr, false

	case ZeroPageX:
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.memory.Read(uint16(base)) // dummy read before indexing
		addr := uint16((base + cpu.X) & zeroPageMask)
		cpu.PC += 2
		return addr, false

	case ZeroPageY:
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.memory.Read(uint16(base))
		addr := uint16((base + cpu.Y) & zeroPageMask)
		cpu.PC += 2
		return addr, false

	case Relative:
		offset := int8(cpu.memory.Read(cpu.PC + 1))
		oldPC := cpu.PC + 2
		newPC := uint16(int32(oldPC) + int32(offset))
		cpu.PC = oldPC
		return newPC, (oldPC & pageMask) != (newPC & pageMask)

	case Absolute:
		low := uint16(cpu.memory.Read(cpu.PC + 1))
		high := uint16(cpu.memory.Read(cpu.PC + 2))
		cpu.PC += 3
		return (high << 8) | low, false

	case AbsoluteX:
		return cpu.resolveAbsoluteIndexed(cpu.X, inst)

	case AbsoluteY:
		return cpu.resolveAbsoluteIndexed(cpu.Y, inst)

	case Indirect: // JMP only; reproduces the page-wrap bug
		lowPtr := uint16(cpu.memory.Read(cpu.PC + 1))
		highPtr := uint16(cpu.memory.Read(cpu.PC + 2))
		ptr := (highPtr << 8) | lowPtr
		var addr uint16
		if ptr&zeroPageMask == zeroPageMask {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr & pageMask))
			addr = (high << 8) | low
		} else {
			low := uint16(cpu.memory.Read(ptr))
			high := uint16(cpu.memory.Read(ptr + 1))
			addr = (high << 8) | low
		}
		cpu.PC += 3
		return addr, false

	case IndexedIndirect: // (zp,X)
		base := cpu.memory.Read(cpu.PC + 1)
		cpu.memory.Read(uint16(base)) // dummy read of base before indexing
		ptr := (base + cpu.X) & zeroPageMask
		low := uint16(cpu.memory.Read(uint16(ptr)))
		high := uint16(cpu.memory.Read(uint16((ptr + 1) & zeroPageMask)))
		cpu.PC += 2
		return (high << 8) | low, false

	case IndirectIndexed: // (zp),Y
		zp := uint16(cpu.memory.Read(cpu.PC + 1))
		low := uint16(cpu.memory.Read(zp))
		high := uint16(cpu.memory.Read((zp + 1) & zeroPageMask))
		base := (high << 8) | low
		addr := base + uint16(cpu.Y)
		cpu.PC += 2
		pageCrossed := (base & pageMask) != (addr & pageMask)
		if pageCrossed || inst.Store || inst.RMW {
			wrong := (base & pageMask) | (addr & 0xFF)
			cpu.memory.Read(wrong)
		}
		return addr, pageCrossed
	}
	return 0, false
}

func (cpu *CPU) resolveAbsoluteIndexed(index uint8, inst *Instruction) (uint16, bool) {
	low := uint16(cpu.memory.Read(cpu.PC + 1))
	high := uint16(cpu.memory.Read(cpu.PC + 2))
	base := (high << 8) | low
	addr := base + uint16(index)
	cpu.PC += 3
	pageCrossed := (base & pageMask) != (addr & pageMask)
	if pageCrossed || inst.Store || inst.RMW {
		wrong := (base & pageMask) | (addr & 0xFF)
		cpu.memory.Read(wrong)
	}
	return addr, pageCrossed
}

func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase+uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase + uint16(cpu.SP))
}

func (cpu *CPU) pushWord(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value))
}

func (cpu *CPU) popWord() uint16 {
	low := uint16(cpu.pop())
	high := uint16(cpu.pop())
	return (high << 8) | low
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = value&nFlagMask != 0
}

// readModifyWrite performs the RMW dummy-write-then-write sequence: the
// original value is read, written back unchanged (dummy write), then fn
// computes the new value which is written for real.
func (cpu *CPU) readModifyWrite(addr uint16, fn func(uint8) uint8) uint8 {
	v := cpu.memory.Read(addr)
	cpu.memory.Write(addr, v)
	nv := fn(v)
	cpu.memory.Write(addr, nv)
	return nv
}
