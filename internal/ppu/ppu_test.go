package ppu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// flatBus is a minimal 16KB PPU address space (nametables + palette RAM,
// with the $3F10/$14/$18/$1C aliases applied) used to exercise the PPU in
// isolation.
type flatBus struct {
	mem [0x4000]uint8
}

func (b *flatBus) Read(addr uint16) uint8 {
	addr &= 0x3FFF
	if addr >= 0x3F00 {
		addr = paletteAddr(addr)
	}
	return b.mem[addr]
}

func (b *flatBus) Write(addr uint16, v uint8) {
	addr &= 0x3FFF
	if addr >= 0x3F00 {
		addr = paletteAddr(addr)
	}
	b.mem[addr] = v
}

func paletteAddr(addr uint16) uint16 {
	a := 0x3F00 + (addr-0x3F00)%0x20
	switch a {
	case 0x3F10, 0x3F14, 0x3F18, 0x3F1C:
		a -= 0x10
	}
	return a
}

func newTestPPU() (*PPU, *flatBus) {
	p := New()
	bus := &flatBus{}
	p.SetBus(bus)
	p.Reset()
	return p, bus
}

func TestPPUStatusReadClearsVBlankAndLatch(t *testing.T) {
	p, _ := newTestPPU()
	p.status |= statusVBlank
	p.w = true
	v := p.ReadRegister(0x2002)
	assert.Equal(t, uint8(0x80), v&0x80)
	assert.False(t, p.w)
	assert.Equal(t, uint8(0), p.status&statusVBlank)
}

func TestScrollWriteSequence(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2005, 0x7D) // coarse X = 15, fine X = 5
	assert.Equal(t, uint16(15), p.t&0x1F)
	assert.Equal(t, uint8(5), p.x)
	p.WriteRegister(0x2005, 0x5E) // coarse Y = 11, fine Y = 6
	assert.Equal(t, uint16(11), (p.t>>5)&0x1F)
	assert.Equal(t, uint16(6), (p.t>>12)&0x7)
}

func TestAddrWriteSequenceLoadsV(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	assert.Equal(t, uint16(0x2108), p.v)
}

func TestPPUDataBufferedReadOutsidePalette(t *testing.T) {
	p, bus := newTestPPU()
	bus.mem[0x2108] = 0x42
	p.WriteRegister(0x2006, 0x21)
	p.WriteRegister(0x2006, 0x08)
	first := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0), first) // stale buffer, not 0x42 yet
	second := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0x42), second)
}

func TestPPUDataPaletteReadBypassesBuffer(t *testing.T) {
	p, bus := newTestPPU()
	bus.mem[0x3F05] = 0x16
	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x05)
	v := p.ReadRegister(0x2007)
	assert.Equal(t, uint8(0x16), v)
}

func TestPaletteMirroring(t *testing.T) {
	p, bus := newTestPPU()
	_ = p
	bus.Write(0x3F10, 0x22)
	assert.Equal(t, uint8(0x22), bus.Read(0x3F00))
}

func TestVBlankSetsStatusAndFiresNMI(t *testing.T) {
	p, _ := newTestPPU()
	p.ctrl = ctrlNMIEnable
	nmiCount := 0
	p.NMI = func(asserted bool) {
		if asserted {
			nmiCount++
		}
	}
	p.scanline, p.dot = 241, 0
	p.Step()
	assert.Equal(t, uint8(statusVBlank), p.status&statusVBlank)
	assert.Equal(t, 1, nmiCount)
}

func TestPreRenderClearsStatusFlags(t *testing.T) {
	p, _ := newTestPPU()
	p.status = statusVBlank | statusSprite0 | statusOverflow
	p.scanline, p.dot = -1, 0
	p.Step()
	assert.Equal(t, uint8(0), p.status)
}

func TestCoarseXWrapsToNextNametable(t *testing.T) {
	p, _ := newTestPPU()
	p.v = 0x001F
	p.incrementCoarseX()
	assert.Equal(t, uint16(0), p.v&0x1F)
	assert.Equal(t, uint16(0x0400), p.v&0x0400)
}

func TestIncrementYWrapsAt29(t *testing.T) {
	p, _ := newTestPPU()
	p.v = 0x7000 | 29<<5 // fine Y = 7, coarse Y = 29
	p.incrementY()
	assert.Equal(t, uint16(0), (p.v>>5)&0x1F)
	assert.Equal(t, uint16(0x0800), p.v&0x0800)
}

func TestSpriteEvaluationCapsAtEightAndSetsOverflow(t *testing.T) {
	p, _ := newTestPPU()
	for i := 0; i < 10; i++ {
		p.oam[i*4] = 10 // all on scanline 10
		p.oam[i*4+1] = uint8(i)
	}
	p.scanline = 10
	p.evaluateSprites()
	assert.Equal(t, 8, p.spriteCount)
	assert.True(t, p.spriteOverflow)
}

func TestSprite0HitRequiresOpaqueBackgroundAndSprite(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG | maskShowSpr | maskShowBGLeft | maskShowSprLeft
	p.bgPatternLoShift = 0x8000 // opaque background at current pixel
	p.sprites[0] = spriteUnit{patternLo: 0x80, x: 1, isSprite0: true}
	p.spriteCount = 1
	p.renderPixel(1, 0)
	assert.True(t, p.sprite0Hit)
}

func TestSprite0HitExcludesXZero(t *testing.T) {
	p, _ := newTestPPU()
	p.mask = maskShowBG | maskShowSpr | maskShowBGLeft | maskShowSprLeft
	p.bgPatternLoShift = 0x8000 // opaque background at current pixel
	p.sprites[0] = spriteUnit{patternLo: 0x80, x: 0, isSprite0: true}
	p.spriteCount = 1
	p.renderPixel(0, 0)
	assert.False(t, p.sprite0Hit)
}
