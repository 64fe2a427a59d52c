// Package emu is the host-facing facade over the emulator core (§6): a
// narrow, stable surface a frontend drives frame by frame without
// reaching into the CPU/PPU/APU/cartridge packages directly. internal/app
// is the reference host built on top of it; internal/emu itself stays
// host-agnostic (no windowing, no audio device, no file I/O beyond the
// ROM/SRAM byte slices the host hands it).
package emu

import (
	"archive/zip"
	"bytes"
	"strings"

	"github.com/pkg/errors"

	"gones/internal/bus"
	"gones/internal/cartridge"
	"gones/internal/input"
)

// Region selects the console timing variant: NTSC runs the PPU/APU at
// ~60 Hz, PAL at ~50 Hz (§1, §8).
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

// ntscFPS and palFPS are the nominal frame rates GetFPS reports per
// region. Emu doesn't use them for frame pacing -- StepUntilVblank runs
// until the PPU itself signals vblank start.
const (
	ntscFPS = 60
	palFPS  = 50
)

// Emu is the top-level emulator object (§6's "core object"). Boot it
// with BootFromBytes (or BootEmpty for a no-op stub), then drive it with
// Step / StepUntilVblank from the host's run loop.
type Emu struct {
	Bus    *bus.Bus
	Cart   *cartridge.Cartridge
	Region Region

	loaded bool
}

// BootFromBytes parses rom (a raw or ZIP-wrapped iNES/NES 2.0 image, §6)
// and returns a fully wired, ready-to-step Emu. The returned error is one
// of the sentinels in internal/cartridge (ErrBadHeader,
// ErrUnsupportedMapper, ErrTruncatedROM, ErrBadZip), wrapped with
// context by github.com/pkg/errors.
func BootFromBytes(rom []byte) (*Emu, error) {
	romReader, err := unwrapZip(rom)
	if err != nil {
		return nil, err
	}

	cart, err := cartridge.LoadFromReader(romReader)
	if err != nil {
		return nil, err
	}

	b := bus.New()
	b.LoadCartridge(cart)
	b.Reset()

	return &Emu{Bus: b, Cart: cart, loaded: true}, nil
}

// BootEmpty returns a stub Emu with no cartridge loaded. Step and
// StepUntilVblank no-op on it; load a real ROM with a subsequent
// BootFromBytes and swap it in, or discard the stub (§6).
func BootEmpty() *Emu {
	return &Emu{Bus: bus.New(), loaded: false}
}

// unwrapZip sniffs the local-file-header magic so BootFromBytes can
// accept either a raw iNES image or a ZIP archive without requiring the
// caller to say which format it handed over (§6). For a ZIP archive, the
// first .nes entry is selected, matching cartridge.LoadFromZip's policy.
func unwrapZip(data []byte) (*bytes.Reader, error) {
	if len(data) < 4 || data[0] != 'P' || data[1] != 'K' || data[2] != 0x03 || data[3] != 0x04 {
		return bytes.NewReader(data), nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(cartridge.ErrBadZip, "reading zip archive bytes")
	}
	for _, f := range zr.File {
		if !strings.EqualFold(pathExt(f.Name), ".nes") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(cartridge.ErrBadZip, "opening %s inside zip", f.Name)
		}
		defer rc.Close()
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, errors.Wrapf(cartridge.ErrBadZip, "reading %s inside zip", f.Name)
		}
		return bytes.NewReader(buf.Bytes()), nil
	}
	return nil, errors.Wrap(cartridge.ErrBadZip, "no .nes file found in zip archive")
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// Step executes one CPU instruction and the matching PPU/APU cycles,
// returning the number of CPU cycles consumed. It is a no-op (returns 0)
// on a stub Emu with no cartridge loaded.
func (e *Emu) Step() uint64 {
	if !e.loaded {
		return 0
	}
	return e.Bus.Step()
}

// StepUntilVblank runs Step in a loop until the PPU signals the start of
// scanline 241 (vblank), at which point the framebuffer for the
// just-finished frame is complete and the audio ring buffer holds that
// frame's samples (§5). No-op on a stub Emu.
func (e *Emu) StepUntilVblank() {
	if !e.loaded {
		return
	}
	target := e.Bus.FrameCount + 1
	for e.Bus.FrameCount < target {
		e.Bus.Step()
	}
}

// Reset reasserts the RESET latch and re-runs the vector fetch (§5, §8);
// PRG/CHR/mirroring are unaffected.
func (e *Emu) Reset() {
	if !e.loaded {
		return
	}
	e.Bus.CPU.Reset()
	e.Bus.PPU.Reset()
	e.Bus.APU.Reset()
}

// GetRawScreen returns the 256x240 32-bit RGBA framebuffer for the most
// recently completed frame (§6). The returned slice aliases the PPU's
// internal buffer; callers that need a stable copy should clone it
// before the next Step.
func (e *Emu) GetRawScreen() []uint32 {
	return e.Bus.PPU.FrameBuffer[:]
}

// GetRawSamples returns the buffered host-rate audio samples without
// consuming them (§6); call ConsumeSamples afterward to clear the
// buffer once the host has copied what it needs.
func (e *Emu) GetRawSamples() []float32 {
	return e.Bus.APU.PeekSamples()
}

// GetSamplesCount reports how many host-rate samples are currently
// buffered.
func (e *Emu) GetSamplesCount() int {
	return e.Bus.APU.SampleCount()
}

// ConsumeSamples drains and returns the buffered audio samples, resetting
// the internal ring buffer (§6). Unlike GetRawSamples, which only peeks,
// this returns a copy and clears the buffer.
func (e *Emu) ConsumeSamples() []float32 {
	return e.Bus.APU.ConsumeSamples()
}

// ButtonPressed sets the bits in mask as pressed on controller 1. mask
// uses the canonical external bitmask (§6): A=1, B=2, Select=4, Start=8,
// Up=16, Down=32, Left=64, Right=128.
func (e *Emu) ButtonPressed(mask uint8) {
	e.setButtons(e.Bus.Input.Controller1, mask, true)
}

// ButtonReleased clears the bits in mask on controller 1.
func (e *Emu) ButtonReleased(mask uint8) {
	e.setButtons(e.Bus.Input.Controller1, mask, false)
}

// ButtonPressed2/ButtonReleased2 mirror ButtonPressed/ButtonReleased for
// controller 2 (§4.2, $4017), beyond the single-pad contract spec.md's §6
// describes but consistent with the two-controller plumbing it assumes.
func (e *Emu) ButtonPressed2(mask uint8) {
	e.setButtons(e.Bus.Input.Controller2, mask, true)
}

func (e *Emu) ButtonReleased2(mask uint8) {
	e.setButtons(e.Bus.Input.Controller2, mask, false)
}

func (e *Emu) setButtons(c *input.Controller, mask uint8, pressed bool) {
	for bit := input.Button(1); bit != 0; bit <<= 1 {
		if uint8(bit)&mask != 0 {
			c.SetButton(bit, pressed)
		}
	}
}

// SaveSRAM returns a copy of the cartridge's battery-backed work RAM, or
// nil if the cartridge has no battery (§6, §9 host SRAM persistence
// policy).
func (e *Emu) SaveSRAM() []byte {
	if !e.loaded || !e.Cart.HasBattery() {
		return nil
	}
	return e.Cart.SaveSRAM()
}

// LoadSRAM restores a previously saved work-RAM image (§6).
func (e *Emu) LoadSRAM(data []byte) {
	if !e.loaded {
		return
	}
	e.Cart.LoadSRAM(data)
}

// GetFPS reports the nominal frame rate for the Emu's configured region
// (§1: ~60 Hz NTSC, ~50 Hz PAL).
func (e *Emu) GetFPS() int {
	if e.Region == RegionPAL {
		return palFPS
	}
	return ntscFPS
}

// LoadFromEmu performs a whole-state transfer from other into e (§6): the
// CPU, PPU, APU and controller state plus SRAM contents are copied over,
// provided the two Emus were booted from cartridges with matching
// content fingerprints. Mapper bank-switch registers are cartridge state
// and are not part of this transfer (see DESIGN.md); for mappers that
// bank-switch infrequently (most games at scene boundaries) this is not
// observable, but a save captured mid-bankswitch on a heavy bank-switcher
// can come back on the wrong bank.
func (e *Emu) LoadFromEmu(other *Emu) error {
	if !e.loaded || other == nil || !other.loaded {
		return cartridge.ErrStateMismatch
	}
	if e.Cart.Fingerprint() != other.Cart.Fingerprint() {
		return cartridge.ErrStateMismatch
	}
	e.Bus.CopyStateFrom(other.Bus)
	e.Cart.LoadSRAM(other.Cart.SaveSRAM())
	return nil
}
