package cartridge

// Mapper001 implements MMC1 (iNES mapper 1): The Legend of Zelda, Metroid,
// Mega Man 2, Kid Icarus and roughly a quarter of all licensed carts.
//
// Control is a 5-bit serial shift register fed one bit per write to
// $8000-$FFFF, LSB first; the fifth write latches the shifted value into
// one of four internal registers selected by the write's address range.
// Bit 7 of any write resets the shift register immediately instead of
// shifting, regardless of how many bits had accumulated. MMC1 only
// latches a write once every CPU cycle or so; a read-modify-write
// instruction (INC/DEC/ASL/LSR/ROL/ROR on an absolute,X address landing
// in $8000-$FFFF) performs a dummy write of the old value immediately
// followed by the real write of the new value on the next cycle, and the
// chip only registers the first of the pair, dropping the second (the
// "Bill & Ted" quirk, named for the test ROM that first isolated it).
// TickCPU (driven once per CPU cycle by Cartridge.TickCPU, matching
// CPUTicker) tracks elapsed cycles so WritePRG can detect the collision.
type Mapper001 struct {
	cart *Cartridge

	prgBanks uint8
	chrBanks uint8

	shift      uint8
	shiftCount uint8

	control uint8 // mirroring(2) | prgMode(2) | chrMode(1)
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgRAMEnabled bool

	cycle          uint64
	lastWriteCycle uint64
	hasLastWrite   bool
}

// TickCPU advances the mapper's own CPU-cycle counter, used to detect the
// "Bill & Ted" same/adjacent-cycle double write.
func (m *Mapper001) TickCPU() { m.cycle++ }

// NewMapper001 creates a new MMC1 mapper.
func NewMapper001(cart *Cartridge) *Mapper001 {
	return &Mapper001{
		cart:          cart,
		prgBanks:      uint8(len(cart.prgROM) / 0x4000),
		chrBanks:      uint8(len(cart.chrROM) / 0x1000),
		shift:         0x10,
		control:       0x0C, // power-on: PRG mode 3 (fix last bank at $C000)
		prgRAMEnabled: true,
	}
}

func (m *Mapper001) prgMode() uint8 { return (m.control >> 2) & 0x03 }
func (m *Mapper001) chrMode() uint8 { return (m.control >> 4) & 0x01 }

func (m *Mapper001) ReadPRG(address uint16) uint8 {
	switch {
	case address >= 0x6000 && address < 0x8000:
		if m.prgRAMEnabled {
			return m.cart.sram[address-0x6000]
		}
		return 0

	case address >= 0x8000 && address < 0xC000:
		var bank uint8
		switch m.prgMode() {
		case 0, 1:
			bank = m.prgBank &^ 1
		case 2:
			bank = 0
		default: // 3
			bank = m.prgBank
		}
		return m.readPRGBank(bank, address-0x8000)

	default: // 0xC000-0xFFFF
		var bank uint8
		switch m.prgMode() {
		case 0, 1:
			bank = (m.prgBank &^ 1) | 1
		case 2:
			bank = m.prgBank
		default: // 3
			if m.prgBanks > 0 {
				bank = m.prgBanks - 1
			}
		}
		return m.readPRGBank(bank, address-0xC000)
	}
}

func (m *Mapper001) readPRGBank(bank uint8, offset uint16) uint8 {
	idx := uint32(bank)*0x4000 + uint32(offset)
	if int(idx) < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *Mapper001) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x6000 && address < 0x8000:
		if m.prgRAMEnabled {
			m.cart.sram[address-0x6000] = value
		}

	case address >= 0x8000:
		if m.hasLastWrite && m.cycle-m.lastWriteCycle <= 1 {
			m.lastWriteCycle = m.cycle
			return
		}
		m.lastWriteCycle = m.cycle
		m.hasLastWrite = true

		if value&0x80 != 0 {
			m.shift = 0x10
			m.shiftCount = 0
			m.control |= 0x0C
			return
		}

		complete := m.shiftCount == 4
		m.shift = (m.shift >> 1) | ((value & 1) << 4)
		m.shiftCount++
		if !complete {
			return
		}

		result := m.shift
		m.shift = 0x10
		m.shiftCount = 0

		switch {
		case address < 0xA000:
			m.control = result & 0x1F
		case address < 0xC000:
			m.chrBank0 = result & 0x1F
		case address < 0xE000:
			m.chrBank1 = result & 0x1F
		default:
			m.prgBank = result & 0x0F
			m.prgRAMEnabled = result&0x10 == 0
		}
	}
}

func (m *Mapper001) ReadCHR(address uint16) uint8 {
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		return m.cart.chrROM[idx]
	}
	return 0
}

func (m *Mapper001) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM {
		return
	}
	idx := m.chrOffset(address)
	if int(idx) < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *Mapper001) chrOffset(address uint16) uint32 {
	if m.chrMode() == 0 {
		bank := m.chrBank0 &^ 1
		if address >= 0x1000 {
			bank |= 1
		}
		return uint32(bank)*0x1000 + uint32(address&0x0FFF)
	}
	if address < 0x1000 {
		return uint32(m.chrBank0)*0x1000 + uint32(address)
	}
	return uint32(m.chrBank1)*0x1000 + uint32(address-0x1000)
}

// Mirroring maps MMC1's 2-bit control field to the cartridge's mirroring
// enum: 0/1 are the two single-screen modes, 2/3 are vertical/horizontal.
func (m *Mapper001) Mirroring() MirrorMode {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}
