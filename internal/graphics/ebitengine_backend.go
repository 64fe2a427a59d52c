//go:build !headless
// +build !headless

package graphics

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// ErrQuit is returned by Window.Run (and may be checked for after a
// host-driven ShouldClose loop) when the user closed the window rather
// than the step function failing; callers treat it as a clean exit.
var ErrQuit = errors.New("graphics: window closed")

const sampleRate = 44100

// audioContext is process-global because ebiten panics if audio.NewContext
// is called more than once; a single EbitengineBackend instance is
// expected per process, but guard it with sync.Once regardless.
var (
	audioContextOnce sync.Once
	audioContext     *audio.Context
)

func sharedAudioContext() *audio.Context {
	audioContextOnce.Do(func() {
		audioContext = audio.NewContext(sampleRate)
	})
	return audioContext
}

// EbitengineBackend implements Backend on top of hajimehoshi/ebiten.
type EbitengineBackend struct {
	initialized bool
	config      Config
}

// NewEbitengineBackend constructs the GUI backend.
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

func (b *EbitengineBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("ebitengine backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.config.Headless {
		return nil, fmt.Errorf("cannot create a window in headless mode")
	}

	stream := &pcmStream{}
	player, err := sharedAudioContext().NewPlayer(stream)
	if err != nil {
		return nil, fmt.Errorf("creating audio player: %w", err)
	}
	player.Play()

	w := &EbitengineWindow{
		title:       title,
		width:       width,
		height:      height,
		running:     true,
		audioStream: stream,
		audioPlayer: player,
	}
	w.game = &ebitengineGame{window: w, frameImage: ebiten.NewImage(256, 240)}

	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetVsyncEnabled(b.config.VSync)
	ebiten.SetFullscreen(b.config.Fullscreen)
	ebiten.SetScreenFilterEnabled(b.config.Filter == "linear")

	return w, nil
}

func (b *EbitengineBackend) Cleanup() error {
	b.initialized = false
	return nil
}

func (b *EbitengineBackend) IsHeadless() bool { return b.config.Headless }

func (b *EbitengineBackend) GetName() string { return "Ebitengine" }

// EbitengineWindow drives an ebiten.Game and an ebiten/audio stream.
type EbitengineWindow struct {
	title   string
	width   int
	height  int
	running bool

	game *ebitengineGame

	audioStream *pcmStream
	audioPlayer *audio.Player
}

func (w *EbitengineWindow) SetTitle(title string) {
	w.title = title
	ebiten.SetWindowTitle(title)
}

func (w *EbitengineWindow) GetSize() (width, height int) { return w.width, w.height }

func (w *EbitengineWindow) ShouldClose() bool { return !w.running }

func (w *EbitengineWindow) SwapBuffers() {
	// ebiten presents automatically at the end of each Draw.
}

func (w *EbitengineWindow) PollEvents() []InputEvent {
	events := w.game.events
	w.game.events = nil
	return events
}

func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	w.game.setFrame(frameBuffer)
	return nil
}

// QueueSamples feeds host-rate mono samples to the ebiten audio player,
// duplicated to stereo (§4.5's mixer output is a single mono stream; the
// NES's own audio output pin is mono, so both channels carry it).
func (w *EbitengineWindow) QueueSamples(samples []float32) {
	w.audioStream.write(samples)
}

func (w *EbitengineWindow) Cleanup() error {
	w.running = false
	return nil
}

// Run hands the frame-step loop to ebiten: ebiten owns the ticking
// (RunGame blocks the calling goroutine, as ebiten requires on some
// platforms), calling step once per tick after this tick's input events
// have been collected so step's own PollEvents call sees them.
func (w *EbitengineWindow) Run(step func() error) error {
	w.game.step = step
	return ebiten.RunGame(w.game)
}

// ebitengineGame implements ebiten.Game, translating ebiten's own input
// polling into InputEvents the reference host drains via PollEvents.
type ebitengineGame struct {
	window     *EbitengineWindow
	frameImage *ebiten.Image
	frame      [256 * 240]uint32
	events     []InputEvent
	step       func() error
}

func (g *ebitengineGame) setFrame(fb [256 * 240]uint32) {
	g.frame = fb
	pix := make([]byte, 256*240*4)
	for i, px := range fb {
		pix[i*4+0] = byte(px >> 16)
		pix[i*4+1] = byte(px >> 8)
		pix[i*4+2] = byte(px)
		pix[i*4+3] = 0xFF
	}
	g.frameImage.WritePixels(pix)
}

var keymap = map[ebiten.Key]Key{
	ebiten.KeyEscape:     KeyEscape,
	ebiten.KeyEnter:      KeyEnter,
	ebiten.KeySpace:      KeySpace,
	ebiten.KeyArrowUp:    KeyUp,
	ebiten.KeyArrowDown:  KeyDown,
	ebiten.KeyArrowLeft:  KeyLeft,
	ebiten.KeyArrowRight: KeyRight,
	ebiten.KeyZ:          KeyZ,
	ebiten.KeyX:          KeyX,
}

var buttonmap = map[Key]Button{
	KeyUp:    ButtonUp,
	KeyDown:  ButtonDown,
	KeyLeft:  ButtonLeft,
	KeyRight: ButtonRight,
	KeyZ:     ButtonA,
	KeyX:     ButtonB,
	KeyEnter: ButtonStart,
	KeySpace: ButtonSelect,
}

func (g *ebitengineGame) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ErrQuit
	}
	for ek, key := range keymap {
		button, isButton := buttonmap[key]
		if inpututil.IsKeyJustPressed(ek) {
			if isButton {
				g.events = append(g.events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: true})
			}
		} else if inpututil.IsKeyJustReleased(ek) {
			if isButton {
				g.events = append(g.events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: false})
			}
		}
	}
	if g.step != nil {
		return g.step()
	}
	return nil
}

func (g *ebitengineGame) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{A: 0xFF})

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()
	scaleX, scaleY := float64(sw)/256, float64(sh)/240
	scale := scaleX
	if scaleY < scaleX {
		scale = scaleY
	}
	offsetX := (float64(sw) - 256*scale) / 2
	offsetY := (float64(sh) - 240*scale) / 2

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(offsetX, offsetY)
	screen.DrawImage(g.frameImage, op)
}

func (g *ebitengineGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// pcmStream is an io.Reader feeding ebiten's audio.Player: Read drains
// whatever has been queued by write and pads with silence rather than
// blocking, since the player pulls on ebiten's own audio goroutine.
type pcmStream struct {
	mu  sync.Mutex
	buf []byte
}

func (s *pcmStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (s *pcmStream) write(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		v := int16(f * 32767)
		lo, hi := byte(v), byte(v>>8)
		s.buf = append(s.buf, lo, hi, lo, hi) // mono duplicated to stereo L/R
	}
	const maxBuffered = sampleRate * 4 * 2 // ~2s of stereo 16-bit audio
	if len(s.buf) > maxBuffered {
		s.buf = s.buf[len(s.buf)-maxBuffered:]
	}
}
