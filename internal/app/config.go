// Package app is the reference host: the smallest wiring that boots a
// ROM through internal/bus, pumps it into a graphics.Backend every
// frame, and persists save states to disk (cartridge SRAM is not written
// to disk). It exists to give
// cmd/gones something to drive; nothing under internal/emu or the
// emulator core packages depends on it (§1, §6).
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the reference host's own settings -- none of this reaches
// the emulator core, which has no concept of a window, a config file, or
// a filesystem beyond the ROM/SRAM/save-state bytes handed to it.
type Config struct {
	Window    WindowConfig    `json:"window"`
	Video     VideoConfig     `json:"video"`
	Audio     AudioConfig     `json:"audio"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	configPath string
	loaded     bool
}

// WindowConfig controls the graphics.Backend's window.
type WindowConfig struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	Fullscreen bool `json:"fullscreen"`
	Scale      int  `json:"scale"` // NES resolution multiplier
}

// VideoConfig selects the rendering backend and its presentation knobs.
type VideoConfig struct {
	VSync   bool   `json:"vsync"`
	Filter  string `json:"filter"`  // "nearest", "linear"
	Backend string `json:"backend"` // "ebitengine", "headless", "terminal"
}

// AudioConfig controls whether/how host-rate samples reach an audio
// device; the emulator core always produces samples (§4.5) regardless.
type AudioConfig struct {
	Enabled bool    `json:"enabled"`
	Volume  float32 `json:"volume"`
}

// EmulationConfig selects console timing and save-state behavior.
type EmulationConfig struct {
	Region         string `json:"region"` // "NTSC", "PAL"
	SaveStateSlots int    `json:"save_state_slots"`
	AutoSaveSRAM   bool   `json:"auto_save_sram"`
}

// DebugConfig controls host-side logging verbosity; none of it changes
// emulation behavior.
type DebugConfig struct {
	EnableLogging bool   `json:"enable_logging"`
	LogLevel      string `json:"log_level"` // "debug", "info", "warn", "error"
}

// PathsConfig is where the reference host looks for ROMs and writes
// persistent state.
type PathsConfig struct {
	ROMs       string `json:"roms"`
	SaveData   string `json:"save_data"`
	SaveStates string `json:"save_states"`
}

// NewConfig returns the reference host's defaults.
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  512,
			Height: 480,
			Scale:  2,
		},
		Video: VideoConfig{
			VSync:   true,
			Filter:  "nearest",
			Backend: "ebitengine",
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  0.8,
		},
		Emulation: EmulationConfig{
			Region:         "NTSC",
			SaveStateSlots: 4,
			AutoSaveSRAM:   true,
		},
		Debug: DebugConfig{
			EnableLogging: false,
			LogLevel:      "info",
		},
		Paths: PathsConfig{
			ROMs:       "./roms",
			SaveData:   "./saves",
			SaveStates: "./states",
		},
	}
}

// LoadFromFile loads configuration from a JSON file, writing the
// defaults out first if the file doesn't exist yet.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.createDirectories(); err != nil {
		return fmt.Errorf("creating directories: %w", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile writes configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	c.configPath = path
	return nil
}

// Save writes back to the path Config was last loaded from or saved to.
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("no config file path set")
	}
	return c.SaveToFile(c.configPath)
}

func (c *Config) validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("invalid window dimensions: %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}
	if c.Audio.Volume < 0.0 || c.Audio.Volume > 1.0 {
		c.Audio.Volume = 0.8
	}
	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = 4
	}
	if c.Emulation.Region != "NTSC" && c.Emulation.Region != "PAL" {
		c.Emulation.Region = "NTSC"
	}
	return nil
}

func (c *Config) createDirectories() error {
	for _, dir := range []string{c.Paths.ROMs, c.Paths.SaveData, c.Paths.SaveStates} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetNESResolution returns the native NES output resolution.
func (c *Config) GetNESResolution() (int, int) { return 256, 240 }

// GetWindowResolution returns the window resolution implied by Window.Scale.
func (c *Config) GetWindowResolution() (int, int) {
	w, h := c.GetNESResolution()
	return w * c.Window.Scale, h * c.Window.Scale
}

// IsLoaded reports whether LoadFromFile has populated this Config.
func (c *Config) IsLoaded() bool { return c.loaded }

// GetConfigPath returns the path Config was loaded from or saved to.
func (c *Config) GetConfigPath() string { return c.configPath }

// GetDefaultConfigPath returns the conventional config file location.
func GetDefaultConfigPath() string { return "./config/gones.json" }
