//go:build headless
// +build headless

package graphics

import "fmt"

// EbitengineBackend is a stub standing in for the real ebiten-backed
// implementation in headless builds (no GPU/display context available),
// so gones still links with -tags headless on a machine with no display.
type EbitengineBackend struct{}

// EbitengineWindow stub; every method that would touch a real window
// reports unavailability instead.
type EbitengineWindow struct{}

func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

func (b *EbitengineBackend) Initialize(config Config) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	return nil, fmt.Errorf("ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) Cleanup() error { return nil }

func (b *EbitengineBackend) IsHeadless() bool { return true }

func (b *EbitengineBackend) GetName() string { return "Ebitengine-Stub" }

func (w *EbitengineWindow) SetTitle(title string)          {}
func (w *EbitengineWindow) GetSize() (width, height int)   { return 0, 0 }
func (w *EbitengineWindow) ShouldClose() bool              { return true }
func (w *EbitengineWindow) SwapBuffers()                   {}
func (w *EbitengineWindow) PollEvents() []InputEvent       { return nil }
func (w *EbitengineWindow) QueueSamples(samples []float32) {}

func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}

func (w *EbitengineWindow) Cleanup() error { return nil }

func (w *EbitengineWindow) Run(step func() error) error {
	return fmt.Errorf("ebitengine backend not available in headless build")
}
