// Package graphics abstracts the host window/input surface the emulator
// core (§6) is driven through; none of this is part of the emulator
// proper (§1 scopes windowing/audio/input devices out as the host's
// concern), so it stays a thin adapter over whichever backend is picked.
package graphics

// Backend is a rendering/input backend selectable at startup.
type Backend interface {
	Initialize(config Config) error
	CreateWindow(title string, width, height int) (Window, error)
	Cleanup() error
	IsHeadless() bool
	GetName() string
}

// Window is a single on-screen (or virtual, for headless/terminal)
// render target plus its input queue.
type Window interface {
	SetTitle(title string)
	GetSize() (width, height int)
	ShouldClose() bool
	SwapBuffers()
	PollEvents() []InputEvent
	RenderFrame(frameBuffer [256 * 240]uint32) error
	Cleanup() error
}

// Config carries the subset of backend knobs the reference host exposes.
type Config struct {
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool
	Filter       string // "nearest", "linear"
	Headless     bool
}

// InputEvent is a single translated input occurrence: a raw key for
// backends that expose one, or a joypad button already resolved from the
// backend's own keymap.
type InputEvent struct {
	Type    InputEventType
	Key     Key
	Button  Button
	Pressed bool
}

// InputEventType discriminates InputEvent's payload.
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key enumerates the small set of host keys the reference host binds to
// joypad buttons or application actions (quit). Backends translate their
// own native key codes down to this set.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyZ
	KeyX
)

// Button mirrors the NES controller 1 bitmask from §6 (A, B, Select,
// Start, Up, Down, Left, Right) as individual values for event dispatch.
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// BackendType selects a concrete Backend implementation.
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
	BackendTerminal   BackendType = "terminal"
)

// CreateBackend constructs the named backend, defaulting to the GUI
// backend (Ebitengine) when the type is unrecognized.
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	case BackendTerminal:
		return NewTerminalBackend(), nil
	default:
		return NewEbitengineBackend(), nil
	}
}
