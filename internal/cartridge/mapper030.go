package cartridge

// Mapper030 implements UNROM512 (iNES mapper 30), the homebrew board used
// by modern releases such as Battle Kid: Fortress of Peril. It extends
// UxROM's single PRG register with CHR-RAM banking and a runtime
// single-screen mirroring control: bits 0-4 select the swappable 16KB PRG
// bank (fixed last bank at $C000), bit 7 selects one of two 8KB CHR-RAM
// banks, and bit 5 (when the board provides it) toggles between header
// mirroring and a one-screen mode selected by bit 6.
type Mapper030 struct {
	cart *Cartridge

	prgBanks uint8
	prgBank  uint8

	chrBank uint8

	oneScreenCapable bool
	oneScreen        bool
	oneScreenPage    uint8
	headerMirror     MirrorMode
}

// NewMapper030 creates a new UNROM512 mapper.
func NewMapper030(cart *Cartridge) *Mapper030 {
	if cart.hasCHRRAM && len(cart.chrROM) < 0x4000 {
		cart.chrROM = append(cart.chrROM, make([]uint8, 0x4000-len(cart.chrROM))...)
	}
	return &Mapper030{
		cart:             cart,
		prgBanks:         uint8(len(cart.prgROM) / 0x4000),
		oneScreenCapable: cart.hasCHRRAM,
		headerMirror:     cart.mirror,
	}
}

func (m *Mapper030) ReadPRG(address uint16) uint8 {
	if address < 0x8000 {
		return 0
	}
	if address < 0xC000 {
		idx := uint32(m.prgBank)*0x4000 + uint32(address-0x8000)
		if int(idx) < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
		return 0
	}
	last := uint8(0)
	if m.prgBanks > 0 {
		last = m.prgBanks - 1
	}
	idx := uint32(last)*0x4000 + uint32(address-0xC000)
	if int(idx) < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *Mapper030) WritePRG(address uint16, value uint8) {
	if address < 0x8000 {
		return
	}
	if m.prgBanks > 0 {
		m.prgBank = (value & 0x1F) & uint8(bankMask(int(m.prgBanks)))
	}
	m.chrBank = (value >> 7) & 0x01
	if m.oneScreenCapable {
		m.oneScreen = value&0x20 != 0
		m.oneScreenPage = (value >> 6) & 0x01
	}
}

func (m *Mapper030) ReadCHR(address uint16) uint8 {
	idx := uint32(m.chrBank)*0x2000 + uint32(address)
	if int(idx) < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *Mapper030) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM {
		return
	}
	idx := uint32(m.chrBank)*0x2000 + uint32(address)
	if int(idx) < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

// Mirroring reports the runtime-selected single-screen page when the
// board's mirroring-control bit is active; callers fall back to the
// header's static mirroring otherwise.
func (m *Mapper030) Mirroring() MirrorMode {
	if !m.oneScreen {
		return m.headerMirror
	}
	if m.oneScreenPage == 0 {
		return MirrorSingleScreen0
	}
	return MirrorSingleScreen1
}
