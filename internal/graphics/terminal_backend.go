package graphics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TerminalBackend implements the Backend interface with a bubbletea TUI,
// rendering the NES framebuffer as a grid of truecolor blocks in a terminal.
type TerminalBackend struct {
	initialized bool
	config      Config
}

// NewTerminalBackend creates a new terminal graphics backend.
func NewTerminalBackend() Backend {
	return &TerminalBackend{}
}

// Initialize initializes the terminal backend
func (b *TerminalBackend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("terminal backend already initialized")
	}
	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow starts a bubbletea program driving a TerminalWindow
func (b *TerminalBackend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	w := &TerminalWindow{
		title:   title,
		width:   width,
		height:  height,
		running: true,
		events:  make(chan InputEvent, 64),
		frames:  make(chan *[256 * 240]uint32, 1),
	}

	m := tuiModel{window: w}
	w.program = tea.NewProgram(m, tea.WithoutSignalHandler())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.program.Run()
		w.running = false
	}()

	return w, nil
}

// Cleanup releases all terminal resources
func (b *TerminalBackend) Cleanup() error {
	b.initialized = false
	return nil
}

// IsHeadless returns false (terminal has basic output)
func (b *TerminalBackend) IsHeadless() bool {
	return false
}

// GetName returns the backend name
func (b *TerminalBackend) GetName() string {
	return "Terminal"
}

// TerminalWindow drives a bubbletea program as the Window implementation.
type TerminalWindow struct {
	title   string
	width   int
	height  int
	program *tea.Program

	events chan InputEvent
	frames chan *[256 * 240]uint32

	running bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// SetTitle sets the window title (for terminal title)
func (w *TerminalWindow) SetTitle(title string) {
	w.title = title
	fmt.Printf("\033]0;%s\007", title) // Set terminal title
}

// GetSize returns window dimensions
func (w *TerminalWindow) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true if window should close
func (w *TerminalWindow) ShouldClose() bool {
	return w.closed.Load() || !w.running
}

// SwapBuffers does nothing for terminal; bubbletea repaints on every Msg.
func (w *TerminalWindow) SwapBuffers() {
}

// PollEvents drains key events queued by the bubbletea Update loop since the
// last call, translating them into the NES button vocabulary.
func (w *TerminalWindow) PollEvents() []InputEvent {
	var out []InputEvent
	for {
		select {
		case ev := <-w.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// RenderFrame pushes a new frame to the bubbletea model; non-blocking so the
// emulation loop never stalls waiting on the terminal redraw.
func (w *TerminalWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	if w.program == nil {
		return nil
	}
	select {
	case w.frames <- &frameBuffer:
	default:
		select {
		case <-w.frames:
		default:
		}
		w.frames <- &frameBuffer
	}
	w.program.Send(frameMsg{})
	return nil
}

// Cleanup releases window resources
func (w *TerminalWindow) Cleanup() error {
	w.closed.Store(true)
	if w.program != nil {
		w.program.Quit()
	}
	w.wg.Wait()
	return nil
}

// tuiModel is the bubbletea model backing TerminalWindow.
type tuiModel struct {
	window *TerminalWindow
	last   [256 * 240]uint32
	have   bool
}

type frameMsg struct{}

// tuiKeymap mirrors hejops-gone's single-rune debugger key scheme, extended
// to the NES controller's eight buttons.
var tuiKeymap = map[string]Button{
	"z":     ButtonA,
	"x":     ButtonB,
	"enter": ButtonStart,
	"tab":   ButtonSelect,
	"up":    ButtonUp,
	"down":  ButtonDown,
	"left":  ButtonLeft,
	"right": ButtonRight,
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := msg.String()
		if s == "q" || s == "ctrl+c" || s == "esc" {
			m.window.closed.Store(true)
			return m, tea.Quit
		}
		if btn, ok := tuiKeymap[s]; ok {
			select {
			case m.window.events <- InputEvent{Type: InputEventTypeButton, Button: btn, Pressed: true}:
			default:
			}
		}
		return m, nil
	case frameMsg:
		select {
		case fb := <-m.window.frames:
			m.last = *fb
			m.have = true
		default:
		}
		return m, nil
	}
	return m, nil
}

// View renders the framebuffer downsampled to a block grid, one cell per
// 4x8 pixel region, colored with the average RGB of the covered region.
func (m tuiModel) View() string {
	if !m.have {
		return lipgloss.NewStyle().Faint(true).Render("waiting for first frame... (q to quit)")
	}

	const cellW, cellH = 4, 8
	var b strings.Builder
	for y := 0; y+cellH <= 240; y += cellH {
		for x := 0; x+cellW <= 256; x += cellW {
			r, g, bl := avgColor(&m.last, x, y, cellW, cellH)
			style := lipgloss.NewStyle().Background(lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r, g, bl)))
			b.WriteString(style.Render(" "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func avgColor(fb *[256 * 240]uint32, x, y, w, h int) (r, g, bl uint32) {
	var rs, gs, bs, n uint32
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			px := fb[(y+dy)*256+(x+dx)]
			rs += (px >> 16) & 0xFF
			gs += (px >> 8) & 0xFF
			bs += px & 0xFF
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return rs / n, gs / n, bs / n
}
