package cartridge

// Mapper002 implements UxROM (iNES mapper 2): Mega Man, Castlevania, Duck
// Tales. A single write-anywhere register selects the 16KB PRG bank visible
// at $8000-$BFFF; $C000-$FFFF is hardwired to the last bank. CHR is always
// 8KB of RAM.
type Mapper002 struct {
	cart     *Cartridge
	prgBanks uint8
	prgBank  uint8
}

// NewMapper002 creates a new UxROM mapper.
func NewMapper002(cart *Cartridge) *Mapper002 {
	return &Mapper002{cart: cart, prgBanks: uint8(len(cart.prgROM) / 0x4000)}
}

func (m *Mapper002) ReadPRG(address uint16) uint8 {
	if address < 0x8000 {
		if address >= 0x6000 {
			return m.cart.sram[address-0x6000]
		}
		return 0
	}
	bank := m.prgBank
	if address >= 0xC000 {
		if m.prgBanks > 0 {
			bank = m.prgBanks - 1
		} else {
			bank = 0
		}
		address -= 0xC000
	} else {
		address -= 0x8000
	}
	idx := uint32(bank)*0x4000 + uint32(address)
	if int(idx) < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *Mapper002) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x6000 && address < 0x8000:
		m.cart.sram[address-0x6000] = value
	case address >= 0x8000:
		if m.prgBanks > 0 {
			m.prgBank = value & uint8(bankMask(int(m.prgBanks)))
		}
	}
}

func (m *Mapper002) ReadCHR(address uint16) uint8 {
	if int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *Mapper002) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}
