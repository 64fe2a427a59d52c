// Package bus implements the system bus connecting the CPU, PPU, APU,
// cartridge and controllers into a single NES.
package bus

import (
	"log"

	"gones/internal/apu"
	"gones/internal/cartridge"
	"gones/internal/cpu"
	"gones/internal/input"
	"gones/internal/ppu"
)

// CartInterface is what the bus needs from a cartridge: the four
// capability-free memory methods every mapper implements, plus the
// mirroring/IRQ/clocking hooks the bus forwards from the PPU and CPU.
// *cartridge.Cartridge satisfies it directly; MockCartridge satisfies
// it with no-op hooks for tests that don't care about mappers.
type CartInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
	Mirroring() cartridge.MirrorMode
	IRQPending() bool
	ClearIRQ()
	TickA12(rising bool)
	TickCPU()
}

// Bus is the CPU's view of the address space ($0000-$FFFF): 2KB of
// internal RAM mirrored through $1FFF, PPU registers mirrored every 8
// bytes through $3FFF, the APU/controller ports at $4000-$4017, and the
// cartridge from $4020 up.
type Bus struct {
	CPU   *cpu.CPU
	PPU   *ppu.PPU
	APU   *apu.APU
	Input *input.InputState
	Cart  CartInterface

	ram [0x800]uint8

	ppuBus *ppuBus

	openBus uint8

	totalCycles uint64
	FrameCount  uint64

	// dmaStallCycles accumulates CPU cycles owed for OAM DMA (513/514,
	// charged when $4014 is written) and DMC sample-byte DMA (4 per
	// fetch, charged via APU.Stall). Step folds them into the next
	// batch of PPU/APU ticks so the master clock stays in lockstep.
	dmaStallCycles uint64
}

// New creates a fully wired but cartridge-less bus. Call LoadCartridge
// before Step.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}
	b.ppuBus = newPPUBus()
	b.PPU.SetBus(b.ppuBus)
	b.CPU = cpu.New(b)

	b.PPU.NMI = func(asserted bool) { b.CPU.SetNMILine(asserted) }
	b.PPU.FrameDone = func() { b.FrameCount++ }
	b.PPU.NotifyA12 = func(high bool) {
		if b.Cart != nil {
			b.Cart.TickA12(high)
		}
	}

	b.APU.MemRead = func(addr uint16) uint8 { return b.Read(addr) }
	b.APU.Stall = func(cycles int) { b.dmaStallCycles += uint64(cycles) }
	b.APU.FrameIRQHook = func(asserted bool) { b.CPU.SetIRQLine(cpu.IRQSourceAPUFrame, asserted) }
	b.APU.DMCIRQHook = func(asserted bool) { b.CPU.SetIRQLine(cpu.IRQSourceDMC, asserted) }

	b.Reset()
	return b
}

// LoadCartridge installs a cartridge and propagates its mirroring mode
// to the PPU's nametable map.
func (b *Bus) LoadCartridge(cart CartInterface) {
	b.Cart = cart
	b.ppuBus.cart = cart
	b.ppuBus.mirroring = cart.Mirroring()
}

// Reset reproduces power-on/reset state across every component.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0
	}
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()
	b.CPU.Reset()
	b.openBus = 0
}

// Read services a CPU read of the full $0000-$FFFF space.
func (b *Bus) Read(address uint16) uint8 {
	var value uint8
	switch {
	case address < 0x2000:
		value = b.ram[address&0x07FF]

	case address < 0x4000:
		value = b.PPU.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4015:
			value = b.APU.ReadStatus()
		case 0x4016, 0x4017:
			value = b.Input.Read(address)
		default:
			value = b.openBus
		}

	default:
		if b.Cart != nil {
			value = b.Cart.ReadPRG(address)
		} else {
			value = b.openBus
		}
	}
	b.openBus = value
	return value
}

// Write services a CPU write of the full $0000-$FFFF space.
func (b *Bus) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value

	case address < 0x4000:
		b.PPU.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch address {
		case 0x4014:
			b.triggerOAMDMA(value)
		case 0x4016:
			b.Input.Write(address, value)
		default:
			if address <= 0x4013 || address == 0x4015 || address == 0x4017 {
				b.APU.WriteRegister(address, value)
			}
		}

	default:
		if b.Cart != nil {
			b.Cart.WritePRG(address, value)
		}
	}
}

// triggerOAMDMA copies 256 bytes starting at page*$100 through the PPU's
// OAMDATA register ($2004), so the transfer starts at whatever OAMADDR
// ($2003) currently holds and wraps through it exactly as 256 consecutive
// CPU writes to $2004 would -- a non-zero OAMADDR at DMA time produces a
// rotated OAM layout on real hardware, not a copy starting at OAM index 0.
// Charges 513 CPU cycles for the transfer (514 if the write landed on an
// odd CPU cycle, for the extra alignment wait the real DMA engine takes).
func (b *Bus) triggerOAMDMA(page uint8) {
	stall := uint64(513)
	if b.totalCycles%2 != 0 {
		stall = 514
	}
	b.dmaStallCycles += stall

	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		v := b.Read(base + i)
		b.PPU.WriteRegister(0x2004, v)
	}
}

// Step runs one CPU instruction and the matching PPU/APU cycles (3 PPU
// dots and 1 APU tick per CPU cycle), forwarding the cartridge's mapper
// IRQ line to the CPU. Any DMA stall accrued during the instruction (OAM
// DMA from a $4014 write, or a DMC sample fetch) is folded into the same
// batch of PPU/APU ticks, and an APU-side stall raised mid-batch extends
// it further. It returns the total number of CPU cycles consumed,
// including stalls.
func (b *Bus) Step() uint64 {
	cycles := b.CPU.Step() + b.dmaStallCycles
	b.dmaStallCycles = 0

	for i := uint64(0); i < cycles; i++ {
		b.PPU.Step()
		b.PPU.Step()
		b.PPU.Step()
		b.APU.Step()
		if b.dmaStallCycles > 0 {
			cycles += b.dmaStallCycles
			b.dmaStallCycles = 0
		}
		if b.Cart != nil {
			b.Cart.TickCPU()
			b.CPU.SetIRQLine(cpu.IRQSourceMapper, b.Cart.IRQPending())
		}
	}
	b.totalCycles += cycles
	return cycles
}

// Cycles reports the total CPU cycle count since the last Reset.
func (b *Bus) Cycles() uint64 { return b.totalCycles }

// GetCycleCount is an alias of Cycles kept for the save-state and
// debug-overlay code in internal/app, which names it that way.
func (b *Bus) GetCycleCount() uint64 { return b.totalCycles }

// GetFrameCount reports the number of frames completed since Reset.
func (b *Bus) GetFrameCount() uint64 { return b.FrameCount }

// GetFrameBuffer returns the 256x240 RGBA framebuffer for the most
// recently completed frame. The returned slice aliases the PPU's
// internal buffer.
func (b *Bus) GetFrameBuffer() []uint32 { return b.PPU.FrameBuffer[:] }

// GetAudioSamples drains and returns the host-rate samples buffered
// since the last call, matching the once-per-frame pull the app's
// run loop does on it.
func (b *Bus) GetAudioSamples() []float32 { return b.APU.ConsumeSamples() }

// GetInputState exposes the controller state for hosts that need to
// inspect button state directly rather than going through Read/Write.
func (b *Bus) GetInputState() *input.InputState { return b.Input }

// SetControllerButtons sets all eight button states at once on a
// controller port. Ports are numbered the way the teacher's joypad
// wiring numbers them: 0 for controller 1, anything else for
// controller 2.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	if controller == 0 {
		b.Input.SetButtons1(buttons)
	} else {
		b.Input.SetButtons2(buttons)
	}
}

// EnableInputDebug toggles verbose controller logging.
func (b *Bus) EnableInputDebug(enabled bool) { b.Input.EnableDebug(enabled) }

// EnableCPUDebug toggles per-instruction register tracing to the
// standard logger. It reuses the CPU's Tracer hook (built for
// nestest-style automation) rather than adding a second logging path.
func (b *Bus) EnableCPUDebug(enabled bool) {
	if !enabled {
		b.CPU.Tracer = nil
		return
	}
	b.CPU.Tracer = func(s cpu.State) {
		log.Printf("[CPU_DEBUG] PC=%04X A=%02X X=%02X Y=%02X SP=%02X P=%02X CYC=%d",
			s.PC, s.A, s.X, s.Y, s.SP, s.P, s.Cycles)
	}
}

// CPUFlags mirrors the CPU's processor status bits individually, for
// save states and debug overlays that want them decomposed rather than
// packed into a single status byte.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// CPUState is a save-state/debug snapshot of CPU-visible register
// state (§9).
type CPUState struct {
	PC     uint16
	A      uint8
	X      uint8
	Y      uint8
	SP     uint8
	Cycles uint64
	Flags  CPUFlags
}

// GetCPUState returns a snapshot of the CPU's registers and flags.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.CPU.Cycles(),
		Flags: CPUFlags{
			N: b.CPU.N, V: b.CPU.V, B: b.CPU.B,
			D: b.CPU.D, I: b.CPU.I, Z: b.CPU.Z, C: b.CPU.C,
		},
	}
}

// PPUState is a save-state/debug snapshot of PPU timing and rendering
// state (§9).
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
	NMIEnabled  bool
}

// GetRAM returns the 2KB of internal work RAM, for save states.
func (b *Bus) GetRAM() []uint8 { return b.ram[:] }

// LoadRAM overwrites internal work RAM from a save-state buffer.
func (b *Bus) LoadRAM(data []uint8) { copy(b.ram[:], data) }

// GetOAM returns the PPU's 256-byte primary OAM table, for save states.
func (b *Bus) GetOAM() []uint8 { return b.PPU.OAM() }

// LoadOAM overwrites the PPU's primary OAM table from a save-state
// buffer.
func (b *Bus) LoadOAM(data []uint8) { b.PPU.LoadOAM(data) }

// GetVRAM returns the 4KB nametable VRAM, for save states.
func (b *Bus) GetVRAM() []uint8 { return b.ppuBus.vram[:] }

// LoadVRAM overwrites nametable VRAM from a save-state buffer.
func (b *Bus) LoadVRAM(data []uint8) { copy(b.ppuBus.vram[:], data) }

// SetCPUState restores CPU registers and flags from a save-state
// snapshot (the cycle counter is informational and not restored, since
// Step measures cycles relative to the last Reset).
func (b *Bus) SetCPUState(s CPUState) {
	b.CPU.A, b.CPU.X, b.CPU.Y, b.CPU.SP, b.CPU.PC = s.A, s.X, s.Y, s.SP, s.PC
	b.CPU.N, b.CPU.V, b.CPU.B = s.Flags.N, s.Flags.V, s.Flags.B
	b.CPU.D, b.CPU.I, b.CPU.Z, b.CPU.C = s.Flags.D, s.Flags.I, s.Flags.Z, s.Flags.C
}

// SetPPUState restores the PPU's scan position and ctrl/mask/status bits
// from a save-state snapshot.
func (b *Bus) SetPPUState(s PPUState) {
	var status uint8
	if s.VBlankFlag {
		status |= 0x80
	}
	var ctrl uint8
	if s.NMIEnabled {
		ctrl |= 0x80
	}
	var mask uint8
	if s.RenderingOn {
		mask = 0x18
	}
	b.PPU.SetRegisters(ctrl, mask, status, s.Scanline, s.Cycle)
}

// GetPPUState returns a snapshot of the PPU's scan position and the
// status/control bits that govern rendering and NMI delivery.
func (b *Bus) GetPPUState() PPUState {
	scanline, dot, vblank, renderingOn, nmiEnabled := b.PPU.DebugSnapshot()
	return PPUState{
		Scanline:    scanline,
		Cycle:       dot,
		FrameCount:  b.FrameCount,
		VBlankFlag:  vblank,
		RenderingOn: renderingOn,
		NMIEnabled:  nmiEnabled,
	}
}

// CopyStateFrom overwrites b's CPU, PPU, APU, controller and RAM state
// with o's, leaving the cartridge (and its SRAM/mapper banking) alone —
// callers that also need cartridge state transferred copy it separately,
// guarded by a fingerprint check (internal/emu.LoadFromEmu does this).
func (b *Bus) CopyStateFrom(o *Bus) {
	b.CPU.CopyStateFrom(o.CPU)
	b.PPU.CopyStateFrom(o.PPU)
	b.APU.CopyStateFrom(o.APU)
	b.Input.CopyStateFrom(o.Input)
	b.ram = o.ram
	b.openBus = o.openBus
	b.totalCycles = o.totalCycles
	b.FrameCount = o.FrameCount
	b.dmaStallCycles = o.dmaStallCycles
}

// ppuBus implements ppu.Bus: the PPU's $0000-$3FFF address space made of
// cartridge pattern tables, internal nametable VRAM with mapper-
// controlled mirroring, and palette RAM.
type ppuBus struct {
	cart      CartInterface
	mirroring cartridge.MirrorMode

	vram    [0x1000]uint8
	palette [32]uint8
}

func newPPUBus() *ppuBus {
	pb := &ppuBus{mirroring: cartridge.MirrorHorizontal}
	for i := 0; i < 32; i += 4 {
		pb.palette[i] = 0x0F
	}
	return pb
}

func (pb *ppuBus) Read(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		if pb.cart != nil {
			return pb.cart.ReadCHR(address)
		}
		return 0
	case address < 0x3F00:
		return pb.vram[pb.nametableIndex(address)]
	default:
		return pb.readPalette(address)
	}
}

func (pb *ppuBus) Write(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		if pb.cart != nil {
			pb.cart.WriteCHR(address, value)
		}
	case address < 0x3F00:
		pb.vram[pb.nametableIndex(address)] = value
	default:
		pb.writePalette(address, value)
	}
}

// nametableIndex maps a $2000-$3EFF address into the 4KB VRAM array
// according to the cartridge's current mirroring mode. Mirroring is
// re-read from the cartridge on every access so runtime switches (MMC1,
// the single-screen-control mappers) take effect immediately.
func (pb *ppuBus) nametableIndex(address uint16) uint16 {
	if pb.cart != nil {
		pb.mirroring = pb.cart.Mirroring()
	}
	address &= 0x0FFF
	nametable := (address >> 10) & 3
	offset := address & 0x3FF

	switch pb.mirroring {
	case cartridge.MirrorHorizontal:
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorVertical:
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return nametable*0x400 + offset
	default:
		return offset
	}
}

func (pb *ppuBus) readPalette(address uint16) uint8 {
	index := (address - 0x3F00) & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	return pb.palette[index]
}

func (pb *ppuBus) writePalette(address uint16, value uint8) {
	index := (address - 0x3F00) & 0x1F
	if index&0x13 == 0x10 {
		index &= 0x0F
	}
	pb.palette[index] = value
}
