package graphics

import (
	"fmt"
	"os"
)

// HeadlessBackend drives the emulator with no real display or input
// device attached -- the mode cmd/gones uses for scripted/automated runs
// (e.g. comparing a ROM's rendered frame against a golden PPM).
type HeadlessBackend struct {
	initialized bool
	config      Config
}

// HeadlessWindow retains the most recent frame in memory and, if
// DumpInterval is set, periodically writes it to disk as a PPM image.
type HeadlessWindow struct {
	title   string
	width   int
	height  int
	running bool

	frameCount int
	lastFrame  [256 * 240]uint32

	// DumpInterval, if nonzero, makes RenderFrame write every Nth frame
	// to OutputDir as a PPM image; zero disables dumping entirely.
	DumpInterval int
	OutputDir    string
}

// NewHeadlessBackend constructs the headless backend.
func NewHeadlessBackend() Backend {
	return &HeadlessBackend{}
}

func (b *HeadlessBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("headless backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

func (b *HeadlessBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	return &HeadlessWindow{
		title:     title,
		width:     width,
		height:    height,
		running:   true,
		OutputDir: ".",
	}, nil
}

func (b *HeadlessBackend) Cleanup() error {
	b.initialized = false
	return nil
}

func (b *HeadlessBackend) IsHeadless() bool { return true }

func (b *HeadlessBackend) GetName() string { return "Headless" }

func (w *HeadlessWindow) SetTitle(title string) { w.title = title }

func (w *HeadlessWindow) GetSize() (width, height int) { return w.width, w.height }

func (w *HeadlessWindow) ShouldClose() bool { return !w.running }

func (w *HeadlessWindow) SwapBuffers() {}

// PollEvents always returns nil: headless runs have no input device.
func (w *HeadlessWindow) PollEvents() []InputEvent { return nil }

// RenderFrame retains the frame for GetLastFrame and, if DumpInterval is
// set, writes every Nth frame out as a PPM image under OutputDir.
func (w *HeadlessWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	w.frameCount++
	w.lastFrame = frameBuffer

	if w.DumpInterval > 0 && w.frameCount%w.DumpInterval == 0 {
		path := fmt.Sprintf("%s/frame_%06d.ppm", w.OutputDir, w.frameCount)
		return w.dumpPPM(frameBuffer, path)
	}
	return nil
}

func (w *HeadlessWindow) dumpPPM(frameBuffer [256 * 240]uint32, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	fmt.Fprintf(file, "P3\n256 240\n255\n")
	for y := 0; y < 240; y++ {
		for x := 0; x < 256; x++ {
			px := frameBuffer[y*256+x]
			fmt.Fprintf(file, "%d %d %d ", (px>>16)&0xFF, (px>>8)&0xFF, px&0xFF)
		}
		fmt.Fprintln(file)
	}
	return nil
}

func (w *HeadlessWindow) Cleanup() error {
	w.running = false
	return nil
}

// GetLastFrame returns a copy of the most recently rendered frame, for
// tests driving the emulator headlessly and asserting on pixel output.
func (w *HeadlessWindow) GetLastFrame() [256 * 240]uint32 { return w.lastFrame }

// GetFrameCount reports how many frames RenderFrame has been called with.
func (w *HeadlessWindow) GetFrameCount() int { return w.frameCount }
