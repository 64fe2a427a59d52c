// Package ppu implements the NES Picture Processing Unit (2C02): the
// per-dot background/sprite pipeline, the loopy v/t/x/w scroll latch,
// OAM and sprite evaluation, and the palette/VRAM address space.
package ppu

import "log"

// Bus is the address space the PPU reads and writes through $2007 and its
// own internal fetches: nametables, pattern tables (via the cartridge
// mapper) and palette RAM.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

const (
	statusVBlank   = 0x80
	statusSprite0  = 0x40
	statusOverflow = 0x20

	ctrlNMIEnable   = 0x80
	ctrlSpriteSize  = 0x20
	ctrlBGTable     = 0x10
	ctrlSpriteTable = 0x08
	ctrlIncrement   = 0x04

	maskShowBGLeft  = 0x02
	maskShowSprLeft = 0x04
	maskShowBG      = 0x08
	maskShowSpr     = 0x10

	// a12FilterDots is the minimum number of consecutive dots address bit
	// 12 must stay high before a rising edge is reported to the mapper
	// (spec.md §4.4): the PPU's own brief $1000-$1FFF sprite-pattern
	// fetches during HBlank pulse A12 high for only a dot or two and must
	// not be mistaken for the sustained high MMC3's scanline counter
	// expects to see once per scanline.
	a12FilterDots = 4
)

// spriteUnit mirrors one of the eight hardware sprite units: the pattern
// bytes and attribute fetched for the sprite's appearance on the *next*
// scanline, plus its X counter.
type spriteUnit struct {
	patternLo  uint8
	patternHi  uint8
	attributes uint8
	x          uint8
	isSprite0  bool
}

// PPU is the 2C02. Its registers are CPU-visible at $2000-$2007; its
// framebuffer and NMI line are the two outputs the rest of the system
// consumes each frame.
type PPU struct {
	bus Bus

	ctrl    uint8
	mask    uint8
	status  uint8
	oamAddr uint8

	v uint16
	t uint16
	x uint8
	w bool

	readBuffer uint8
	busLatch   uint8

	scanline int // -1 (pre-render) .. 260
	dot      int // 0 .. 340
	frame    uint64
	oddFrame bool

	oam           [256]uint8
	secondaryOAM  [32]uint8
	secondaryN    int
	sprites       [8]spriteUnit
	spriteCount   int
	spriteIndices [8]int

	bgPatternLoShift uint16
	bgPatternHiShift uint16
	bgAttrLoShift    uint8
	bgAttrHiShift    uint8
	attrLatchLo      uint8
	attrLatchHi      uint8

	ntByte    uint8
	atByte    uint8
	patternLo uint8
	patternHi uint8

	sprite0Hit     bool
	spriteOverflow bool

	// NoSpriteLimit, a debug flag, makes sprite evaluation keep scanning
	// past the eighth in-range sprite without raising the overflow flag.
	// At most eight sprites are still drawn per scanline, and with the
	// flag set the overflow flag and its diagonal-read bug are not
	// computed.
	NoSpriteLimit bool

	FrameBuffer [256 * 240]uint32

	// NMI is invoked with true when the PPU asserts its NMI line (vblank
	// start while ctrl.NMIEnable is set, or a $2000 write that enables
	// NMI while vblank is already pending) and with false when the line
	// is cleared. The bus wires this to cpu.SetNMILine.
	NMI func(asserted bool)

	// FrameDone fires once per completed frame, after FrameBuffer holds
	// the finished picture.
	FrameDone func()

	a12        bool // raw (unfiltered) address-bus A12 level
	a12Dots    int  // consecutive dots a12 has been continuously high
	a12Armed   bool // true once a12's current high streak has cleared the filter
	// NotifyA12 fires once per qualifying PPU address-bus bit-12 edge:
	// a rising edge is reported only after A12 has stayed high for more
	// than a12FilterDots dots (spec.md §4.4), filtering the PPU's brief
	// sprite-pattern-fetch accesses to $1000-$1FFF that would otherwise
	// clock MMC3-family IRQ counters spuriously. Falling edges are
	// always reported immediately.
	NotifyA12 func(high bool)

	bgDebugEnabled   bool
	bgDebugVerbosity int
}

// New creates a PPU with no bus attached; call SetBus before Step.
func New() *PPU {
	return &PPU{scanline: -1, dot: 0}
}

func (p *PPU) SetBus(bus Bus) { p.bus = bus }

// CopyStateFrom overwrites p's registers, VRAM-facing latches, OAM and
// framebuffer with o's, leaving p's bus reference and NMI/FrameDone/
// NotifyA12 hooks untouched. Used for whole-state save transfer.
func (p *PPU) CopyStateFrom(o *PPU) {
	bus, nmi, frameDone, notifyA12 := p.bus, p.NMI, p.FrameDone, p.NotifyA12
	*p = *o
	p.bus, p.NMI, p.FrameDone, p.NotifyA12 = bus, nmi, frameDone, notifyA12
}

// DebugSnapshot reports the scan position and the status/control bits
// that govern rendering and NMI delivery, for save states and debug
// overlays that want them outside the package.
func (p *PPU) DebugSnapshot() (scanline, dot int, vblank, renderingOn, nmiEnabled bool) {
	return p.scanline, p.dot, p.status&statusVBlank != 0, p.renderingEnabled(), p.ctrl&ctrlNMIEnable != 0
}

// GetFrameBuffer returns the 256x240 RGBA framebuffer for the most
// recently completed frame.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 { return p.FrameBuffer }

// EnableBackgroundDebugLogging toggles per-scanline background-pipeline
// logging, matching the verbosity set by SetBackgroundDebugVerbosity.
func (p *PPU) EnableBackgroundDebugLogging(enabled bool) {
	p.bgDebugEnabled = enabled
	if !enabled {
		p.bgDebugVerbosity = 0
	}
}

// SetBackgroundDebugVerbosity sets how much detail background-pipeline
// logging includes once EnableBackgroundDebugLogging(true) is active:
// 1 logs once per frame, 2 logs once per scanline.
func (p *PPU) SetBackgroundDebugVerbosity(level int) {
	p.bgDebugVerbosity = level
}

// Reset reproduces power-on PPU state.
func (p *PPU) Reset() {
	p.ctrl, p.mask, p.status = 0, 0, 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.scanline, p.dot = -1, 0
	p.frame, p.oddFrame = 0, false
	p.sprite0Hit, p.spriteOverflow = false, false
	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.FrameBuffer {
		p.FrameBuffer[i] = 0
	}
}

func (p *PPU) renderingEnabled() bool { return p.mask&(maskShowBG|maskShowSpr) != 0 }

// ReadRegister services a CPU read of $2000-$2007.
func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 7 {
	case 2:
		v := (p.status & 0xE0) | (p.busLatch & 0x1F)
		p.status &^= statusVBlank
		p.w = false
		p.setNMI(false)
		p.busLatch = v
		return v
	case 4:
		v := p.oam[p.oamAddr]
		p.busLatch = v
		return v
	case 7:
		v := p.readPPUData()
		p.busLatch = v
		return v
	default: // write-only registers: open bus
		return p.busLatch
	}
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	p.busLatch = value
	switch addr & 7 {
	case 0:
		wasEnabled := p.ctrl&ctrlNMIEnable != 0
		p.ctrl = value
		p.t = (p.t & 0xF3FF) | (uint16(value&0x03) << 10)
		nowEnabled := p.ctrl&ctrlNMIEnable != 0
		if !wasEnabled && nowEnabled && p.status&statusVBlank != 0 {
			p.setNMI(true)
		}
		if wasEnabled && !nowEnabled {
			p.setNMI(false)
		}
	case 1:
		p.mask = value
	case 2:
		// read-only
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		p.writeScroll(value)
	case 6:
		p.writeAddr(value)
	case 7:
		p.writePPUData(value)
	}
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | uint16(value>>3)
		p.x = value & 0x07
	} else {
		p.t = (p.t & 0x8FFF) | (uint16(value&0x07) << 12)
		p.t = (p.t & 0xFC1F) | (uint16(value&0xF8) << 2)
	}
	p.w = !p.w
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x00FF) | (uint16(value&0x3F) << 8)
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.notifyAddr()
	}
	p.w = !p.w
}

// readPPUData implements the buffered-read quirk: non-palette reads
// return the stale buffer and refill it from the new address; palette
// reads bypass the buffer but still refill it, from the nametable byte
// $1000 below the palette address, matching real hardware.
func (p *PPU) readPPUData() uint8 {
	addr := p.v & 0x3FFF
	var result uint8
	if addr >= 0x3F00 {
		result = p.bus.Read(addr)
		p.readBuffer = p.bus.Read(addr - 0x1000)
	} else {
		result = p.readBuffer
		p.readBuffer = p.bus.Read(addr)
	}
	p.incrementAddr()
	return result
}

func (p *PPU) writePPUData(value uint8) {
	p.bus.Write(p.v&0x3FFF, value)
	p.incrementAddr()
}

// incrementAddr applies the PPUDATA-during-rendering quirk: a $2007
// access while the background/sprite pipeline is active performs the
// same coarse-x/coarse-y bump the renderer itself would at this dot,
// instead of the plain CPU-driven +1/+32 step.
func (p *PPU) incrementAddr() {
	if p.renderingEnabled() && (p.scanline == -1 || p.scanline < 240) {
		p.incrementCoarseX()
		p.incrementY()
	} else if p.ctrl&ctrlIncrement != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.notifyAddr()
}

// notifyAddr updates the raw (unfiltered) A12 level on every VRAM address
// change. The filtered rising-edge notification to the mapper happens in
// tickA12Filter, once the new level has held for long enough.
func (p *PPU) notifyAddr() {
	high := p.v&0x1000 != 0
	if high == p.a12 {
		return
	}
	p.a12 = high
	if !high {
		p.a12Dots = 0
		p.a12Armed = false
		if p.NotifyA12 != nil {
			p.NotifyA12(false)
		}
	}
}

// tickA12Filter runs once per PPU dot, counting how long the raw A12
// level has stayed continuously high and reporting a rising edge to the
// mapper only once that streak exceeds a12FilterDots (spec.md §4.4).
func (p *PPU) tickA12Filter() {
	if !p.a12 {
		return
	}
	p.a12Dots++
	if !p.a12Armed && p.a12Dots > a12FilterDots {
		p.a12Armed = true
		if p.NotifyA12 != nil {
			p.NotifyA12(true)
		}
	}
}

func (p *PPU) setNMI(asserted bool) {
	if p.NMI != nil {
		p.NMI(asserted)
	}
}

// OAM returns the 256-byte primary OAM table, for save states and debug
// tooling that need the raw sprite attribute memory.
func (p *PPU) OAM() []uint8 { return p.oam[:] }

// LoadOAM overwrites the primary OAM table from a 256-byte save-state
// buffer.
func (p *PPU) LoadOAM(data []uint8) { copy(p.oam[:], data) }

// SetRegisters restores ctrl/mask/status (and the pre-render/visible
// scan position) from a save state, bypassing the side effects Write/
// ReadRegister apply for live CPU access.
func (p *PPU) SetRegisters(ctrl, mask, status uint8, scanline, dot int) {
	p.ctrl, p.mask, p.status = ctrl, mask, status
	p.scanline, p.dot = scanline, dot
}

// Step advances the PPU by a single dot.
func (p *PPU) Step() {
	p.advanceDot()
	p.tickA12Filter()

	if p.scanline == -1 || p.scanline < 240 {
		p.renderScanline()
	}

	if p.scanline == 241 && p.dot == 1 {
		p.status |= statusVBlank
		if p.ctrl&ctrlNMIEnable != 0 {
			p.setNMI(true)
		}
		if p.FrameDone != nil {
			p.FrameDone()
		}
	}
	if p.scanline == -1 && p.dot == 1 {
		p.status &^= (statusVBlank | statusSprite0 | statusOverflow)
		p.sprite0Hit = false
		p.spriteOverflow = false
		p.setNMI(false)
	}
}

func (p *PPU) advanceDot() {
	p.dot++
	if p.dot > 340 {
		if p.bgDebugEnabled && p.bgDebugVerbosity >= 2 {
			log.Printf("[PPU_DEBUG] scanline=%d bg=%04X attrLo=%02X attrHi=%02X",
				p.scanline, p.bgPatternLoShift, p.attrLatchLo, p.attrLatchHi)
		}
		p.dot = 0
		p.scanline++
		if p.scanline > 260 {
			if p.bgDebugEnabled && p.bgDebugVerbosity >= 1 {
				log.Printf("[PPU_DEBUG] frame=%d done", p.frame)
			}
			p.scanline = -1
			p.frame++
			p.oddFrame = !p.oddFrame
			// Odd-frame short pre-render line: skip dot 0 on the very
			// next pre-render scanline while rendering is enabled.
			if p.oddFrame && p.renderingEnabled() {
				p.dot = 1
			}
		}
	}
}

func (p *PPU) renderScanline() {
	rendering := p.renderingEnabled()
	visible := p.scanline >= 0 && p.scanline < 240

	if rendering {
		if (p.dot >= 1 && p.dot <= 256) || (p.dot >= 321 && p.dot <= 336) {
			p.backgroundFetchCycle()
		}
		if p.dot == 256 {
			p.incrementY()
		}
		if p.dot == 257 {
			p.copyHorizontalBits()
		}
		if p.scanline == -1 && p.dot >= 280 && p.dot <= 304 {
			p.copyVerticalBits()
		}
		if p.dot >= 257 && p.dot <= 320 {
			p.oamAddr = 0
		}
	}

	if visible && p.dot >= 1 && p.dot <= 256 {
		p.renderPixel(p.dot-1, p.scanline)
	}
	if visible && p.dot == 1 {
		p.evaluateSprites()
	}
	if visible && p.dot == 257 {
		p.fetchSpritePatterns()
	}
}

// backgroundFetchCycle runs the nametable/attribute/pattern fetch
// sequence that repeats every 8 dots and reloads the shift registers.
func (p *PPU) backgroundFetchCycle() {
	p.shiftBackground()

	switch p.dot % 8 {
	case 1:
		p.reloadShiftRegisters()
		p.ntByte = p.bus.Read(0x2000 | (p.v & 0x0FFF))
	case 3:
		addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		at := p.bus.Read(addr)
		shift := ((p.v >> 4) & 4) | (p.v & 2)
		p.atByte = (at >> shift) & 0x03
	case 5:
		table := uint16(0)
		if p.ctrl&ctrlBGTable != 0 {
			table = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		p.patternLo = p.bus.Read(table + uint16(p.ntByte)*16 + fineY)
	case 7:
		table := uint16(0)
		if p.ctrl&ctrlBGTable != 0 {
			table = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		p.patternHi = p.bus.Read(table + uint16(p.ntByte)*16 + fineY + 8)
	case 0:
		p.incrementCoarseX()
	}
}

func (p *PPU) reloadShiftRegisters() {
	p.bgPatternLoShift = (p.bgPatternLoShift & 0xFF00) | uint16(p.patternLo)
	p.bgPatternHiShift = (p.bgPatternHiShift & 0xFF00) | uint16(p.patternHi)
	if p.atByte&1 != 0 {
		p.attrLatchLo = 0xFF
	} else {
		p.attrLatchLo = 0x00
	}
	if p.atByte&2 != 0 {
		p.attrLatchHi = 0xFF
	} else {
		p.attrLatchHi = 0x00
	}
}

func (p *PPU) shiftBackground() {
	p.bgPatternLoShift <<= 1
	p.bgPatternHiShift <<= 1
	p.bgAttrLoShift = (p.bgAttrLoShift << 1) | (p.attrLatchLo & 1)
	p.bgAttrHiShift = (p.bgAttrHiShift << 1) | (p.attrLatchHi & 1)
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch {
	case y == 29:
		y = 0
		p.v ^= 0x0800
	case y == 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHorizontalBits() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

func (p *PPU) copyVerticalBits() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// evaluateSprites reproduces the hardware's secondary-OAM scan for the
// *next* scanline (dot 1 here is a simplification of the real dots
// 1-64-clear / 65-256-scan timing, matching visible pixel output
// precisely while keeping the state machine single-step). It also
// reproduces the sprite-overflow "diagonal read" bug: once eight
// sprites have been found, the evaluator keeps incrementing both the
// OAM byte index and the sprite index together while scanning for a
// ninth in-range sprite, so it reads attribute/X bytes as if they were
// Y bytes on sprites beyond the eighth.
func (p *PPU) evaluateSprites() {
	height := 8
	if p.ctrl&ctrlSpriteSize != 0 {
		height = 16
	}
	line := p.scanline

	p.secondaryN = 0
	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndices {
		p.spriteIndices[i] = -1
	}
	found := 0
	overflow := false

	n := 0
	for n < 64 {
		y := int(p.oam[n*4])
		if line >= y && line < y+height {
			if found < 8 {
				copy(p.secondaryOAM[found*4:found*4+4], p.oam[n*4:n*4+4])
				p.spriteIndices[found] = n
				found++
			} else if !p.NoSpriteLimit {
				overflow = true
				break
			}
		}
		n++
	}
	if overflow {
		// Diagonal-read bug: continue scanning but with an OAM byte
		// index that increments in lock-step with the sprite index
		// rather than resetting to the Y-byte offset each time.
		m := 0
		for n < 64 {
			y := int(p.oam[n*4+m])
			if line >= y && line < y+height {
				p.spriteOverflow = true
				p.status |= statusOverflow
				break
			}
			m = (m + 1) & 3
			n++
		}
	}

	p.spriteCount = found
}

func (p *PPU) fetchSpritePatterns() {
	height := 8
	if p.ctrl&ctrlSpriteSize != 0 {
		height = 16
	}
	for i := 0; i < p.spriteCount; i++ {
		y := int(p.secondaryOAM[i*4])
		tile := p.secondaryOAM[i*4+1]
		attrs := p.secondaryOAM[i*4+2]
		x := p.secondaryOAM[i*4+3]

		row := p.scanline - y
		if attrs&0x80 != 0 {
			row = height - 1 - row
		}

		var table uint16
		var index uint16
		if height == 16 {
			table = uint16(tile&1) * 0x1000
			index = uint16(tile &^ 1)
			if row >= 8 {
				index++
				row -= 8
			}
		} else {
			if p.ctrl&ctrlSpriteTable != 0 {
				table = 0x1000
			}
			index = uint16(tile)
		}

		addr := table + index*16 + uint16(row)
		lo := p.bus.Read(addr)
		hi := p.bus.Read(addr + 8)
		if attrs&0x40 != 0 {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.sprites[i] = spriteUnit{
			patternLo:  lo,
			patternHi:  hi,
			attributes: attrs,
			x:          x,
			isSprite0:  p.spriteIndices[i] == 0,
		}
	}
	for i := p.spriteCount; i < 8; i++ {
		p.sprites[i] = spriteUnit{}
	}
}

func reverseBits(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// renderPixel composites the background and sprite pixel at (x, y) and
// writes the result to the framebuffer.
func (p *PPU) renderPixel(x, y int) {
	bgPixel, bgPalette := p.backgroundPixelAt(x)
	if x < 8 && p.mask&maskShowBGLeft == 0 {
		bgPixel = 0
	}
	if p.mask&maskShowBG == 0 {
		bgPixel = 0
	}

	sprPixel, sprPalette, sprPriority, sprIsZero := p.spritePixelAt(x)
	if x < 8 && p.mask&maskShowSprLeft == 0 {
		sprPixel = 0
	}
	if p.mask&maskShowSpr == 0 {
		sprPixel = 0
	}

	if sprIsZero && bgPixel != 0 && sprPixel != 0 && x >= 1 && x != 255 {
		p.status |= statusSprite0
		p.sprite0Hit = true
	}

	var paletteAddr uint16
	switch {
	case bgPixel == 0 && sprPixel == 0:
		paletteAddr = 0x3F00
	case bgPixel == 0:
		paletteAddr = 0x3F10 + uint16(sprPalette)*4 + uint16(sprPixel)
	case sprPixel == 0:
		paletteAddr = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
	case sprPriority:
		paletteAddr = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
	default:
		paletteAddr = 0x3F10 + uint16(sprPalette)*4 + uint16(sprPixel)
	}

	nesColor := p.bus.Read(paletteAddr) & 0x3F
	p.FrameBuffer[y*256+x] = nesPalette[nesColor]
}

func (p *PPU) backgroundPixelAt(x int) (pixel, palette uint8) {
	shift := uint(15 - p.x)
	lo := uint8((p.bgPatternLoShift >> shift) & 1)
	hi := uint8((p.bgPatternHiShift >> shift) & 1)
	pixel = (hi << 1) | lo

	shiftAttr := uint(7 - p.x)
	aLo := (p.bgAttrLoShift >> shiftAttr) & 1
	aHi := (p.bgAttrHiShift >> shiftAttr) & 1
	palette = (aHi << 1) | aLo
	return
}

func (p *PPU) spritePixelAt(x int) (pixel, palette uint8, behindBG bool, isZero bool) {
	for i := 0; i < p.spriteCount; i++ {
		s := &p.sprites[i]
		offset := x - int(s.x)
		if offset < 0 || offset > 7 {
			continue
		}
		bit := uint(7 - offset)
		lo := (s.patternLo >> bit) & 1
		hi := (s.patternHi >> bit) & 1
		v := (hi << 1) | lo
		if v == 0 {
			continue
		}
		return v, s.attributes & 0x03, s.attributes&0x20 != 0, s.isSprite0
	}
	return 0, 0, false, false
}
