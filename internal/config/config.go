// Package config loads, persists, and live-reloads the borrowscope
// configuration file.
//
// Configuration lives in a single TOML file under the user config directory
// (borrowscope/config.toml). Every field has a default; a missing file is not
// an error. Display-mode toggles are persisted by writing the file back, so
// the file is the single source of truth for presentation state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DisplayMode controls when cursor-driven analysis queries are issued.
type DisplayMode string

const (
	// DisplayModeSelected queries on every (debounced) cursor movement.
	DisplayModeSelected DisplayMode = "selected"
	// DisplayModeManual queries only on the explicit analyze command.
	DisplayModeManual DisplayMode = "manual"
	// DisplayModeDisabled suppresses all queries and clears overlays.
	DisplayModeDisabled DisplayMode = "disabled"
)

// Valid reports whether m is one of the known display modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case DisplayModeSelected, DisplayModeManual, DisplayModeDisabled:
		return true
	}
	return false
}

// Cycle returns the next display mode in toggle order.
func (m DisplayMode) Cycle() DisplayMode {
	switch m {
	case DisplayModeSelected:
		return DisplayModeManual
	case DisplayModeManual:
		return DisplayModeDisabled
	default:
		return DisplayModeSelected
	}
}

// Decorations holds the per-kind paint configuration.
// Colors are hex strings ("#rrggbb"); they are parsed fresh on every render
// so edits take effect on the next query.
type Decorations struct {
	Lifetime  string `toml:"lifetime"`
	ImmBorrow string `toml:"imm_borrow"`
	MutBorrow string `toml:"mut_borrow"`
	Move      string `toml:"move"`
	Outlive   string `toml:"outlive"`
	SharedMut string `toml:"shared_mut"`

	// UnderlineThickness is carried for hosts that support it; the terminal
	// viewer treats any value above 1 as a double underline.
	UnderlineThickness int `toml:"underline_thickness"`

	// HighlightBackground paints ranges as background color instead of
	// underline.
	HighlightBackground bool `toml:"highlight_background"`
}

// Config is the full borrowscope configuration.
type Config struct {
	// ServerPath is an explicit rustowl binary override. When set, it must
	// validate; resolution never silently falls back past it.
	ServerPath string `toml:"server_path"`

	DisplayMode DisplayMode `toml:"display_mode"`

	// DisplayDelayMS is the cursor debounce quiet period in milliseconds.
	DisplayDelayMS int `toml:"display_delay_ms"`

	Decorations Decorations `toml:"decorations"`

	// CacheDir overrides the rustowl source/build cache location.
	CacheDir string `toml:"cache_dir"`

	// LogFile routes slog output away from the terminal UI.
	LogFile string `toml:"log_file"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DisplayMode:    DisplayModeSelected,
		DisplayDelayMS: 500,
		Decorations: Decorations{
			Lifetime:           "#00cc00",
			ImmBorrow:          "#0000cc",
			MutBorrow:          "#cc00cc",
			Move:               "#cccc00",
			Outlive:            "#cc0000",
			SharedMut:          "#cc8800",
			UnderlineThickness: 2,
		},
	}
}

// DisplayDelay returns the debounce quiet period as a duration.
func (c Config) DisplayDelay() time.Duration {
	if c.DisplayDelayMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.DisplayDelayMS) * time.Millisecond
}

// DefaultPath returns the expected config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "borrowscope", "config.toml"), nil
}

// Load reads the configuration from path, applying defaults for absent
// fields. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// Save writes the configuration back to path, creating parent directories
// as needed. Used to persist display-mode toggles.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// normalize clamps out-of-range values back to defaults.
func (c *Config) normalize() {
	if !c.DisplayMode.Valid() {
		c.DisplayMode = DisplayModeSelected
	}
	if c.DisplayDelayMS < 0 {
		c.DisplayDelayMS = 500
	}
	if c.Decorations.UnderlineThickness <= 0 {
		c.Decorations.UnderlineThickness = 2
	}
}
