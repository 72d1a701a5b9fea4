package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"evepanel/internal/bt81x"
)

// SPIConfig names the SPI port and the GPIOs wired to the controller.
type SPIConfig struct {
	// Port is a periph port name such as "SPI0.0"; empty picks the first.
	Port string `yaml:"port" json:"port"`
	// ClockHz is the operating SPI clock after bring-up.
	ClockHz int64 `yaml:"clock_hz" json:"clock_hz"`
	// CSPin and PDPin are GPIO names resolved through gpioreg.
	CSPin string `yaml:"cs_pin" json:"cs_pin"`
	PDPin string `yaml:"pd_pin" json:"pd_pin"`
}

// ChipConfig selects the controller's clock source.
type ChipConfig struct {
	ExternalClock bool `yaml:"external_clock" json:"external_clock"`
	// SystemClockHz of zero means 60MHz.
	SystemClockHz int64 `yaml:"system_clock_hz" json:"system_clock_hz"`
}

// TouchConfig holds the resistive touch threshold and, once calibrated, the
// touch transform so calibration survives restarts.
type TouchConfig struct {
	Threshold uint16 `yaml:"threshold" json:"threshold"`
	// Matrix holds REG_TOUCH_TRANSFORM_A..F. Empty means not calibrated.
	Matrix []uint32 `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

// Calibration returns the stored transform, if there is a complete one.
func (t TouchConfig) Calibration() ([6]uint32, bool) {
	var m [6]uint32
	if len(t.Matrix) != len(m) {
		return m, false
	}
	copy(m[:], t.Matrix)
	return m, true
}

// SetCalibration stores a transform read back from the chip.
func (t *TouchConfig) SetCalibration(m [6]uint32) {
	t.Matrix = append(t.Matrix[:0], m[:]...)
}

// BacklightConfig sets the PWM backlight level.
type BacklightConfig struct {
	// Brightness is a percentage, 1..100. Zero picks the default.
	Brightness uint8 `yaml:"brightness" json:"brightness"`
}

// ICSConfig describes a single ICS subscription shown on the agenda.
type ICSConfig struct {
	// ID is an internal identifier used for logging.
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// AgendaConfig controls what the panel lists.
type AgendaConfig struct {
	// Timezone is the IANA zone entries are shown in (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`
	// HorizonHours is how far ahead events are listed.
	HorizonHours int `yaml:"horizon_hours" json:"horizon_hours"`
	// MaxLines caps the number of entries drawn.
	MaxLines int `yaml:"max_lines" json:"max_lines"`
	// CacheDir keeps the last body and ETag of every source so a failed
	// fetch still has something to show. Empty disables the cache.
	CacheDir string      `yaml:"cache_dir" json:"cache_dir"`
	Sources  []ICSConfig `yaml:"sources" json:"sources"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	SPI       SPIConfig              `yaml:"spi" json:"spi"`
	Chip      ChipConfig             `yaml:"chip" json:"chip"`
	Screen    bt81x.ScreenParameters `yaml:"screen" json:"screen"`
	Touch     TouchConfig            `yaml:"touch" json:"touch"`
	Backlight BacklightConfig        `yaml:"backlight" json:"backlight"`

	// RefreshCron redraws the agenda (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`
	// HealthCheckCron polls the command FIFO so a coprocessor fault is
	// recovered even while nothing is drawn.
	HealthCheckCron string `yaml:"health_check" json:"health_check"`

	Agenda AgendaConfig `yaml:"agenda" json:"agenda"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultClockHz     = 20_000_000
	defaultCSPin       = "GPIO8"
	defaultPDPin       = "GPIO25"
	defaultThreshold   = 1200
	defaultBrightness  = 80
	defaultRefresh     = "*/15 * * * *"
	defaultHealthCheck = "@every 30s"
	defaultTimezone    = "Asia/Seoul"
	defaultHorizon     = 48
	defaultMaxLines    = 8
	defaultCacheDir    = "./var/ics-cache"
)

// defaultScreen is a 480x272 panel.
var defaultScreen = bt81x.ScreenParameters{
	Width: 480, Height: 272,
	HOffset: 43, VOffset: 12,
	HCycle: 548, VCycle: 292,
	HFrontPorch: 8, VFrontPorch: 8,
	HPulseWidth: 4, VPulseWidth: 4,
	PclkDivisor: 5, PclkPolarity: 1, Dither: 1,
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		LogLevel: "info",
		SPI: SPIConfig{
			ClockHz: defaultClockHz,
			CSPin:   defaultCSPin,
			PDPin:   defaultPDPin,
		},
		Screen:          defaultScreen,
		Touch:           TouchConfig{Threshold: defaultThreshold},
		Backlight:       BacklightConfig{Brightness: defaultBrightness},
		RefreshCron:     defaultRefresh,
		HealthCheckCron: defaultHealthCheck,
		Agenda: AgendaConfig{
			Timezone:     defaultTimezone,
			HorizonHours: defaultHorizon,
			MaxLines:     defaultMaxLines,
			CacheDir:     defaultCacheDir,
			Sources:      []ICSConfig{},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SPI.ClockHz <= 0 {
		c.SPI.ClockHz = defaultClockHz
	}
	if c.SPI.CSPin == "" {
		c.SPI.CSPin = defaultCSPin
	}
	if c.SPI.PDPin == "" {
		c.SPI.PDPin = defaultPDPin
	}
	// A zero sized screen means the section was left out entirely.
	if c.Screen.Width == 0 || c.Screen.Height == 0 {
		c.Screen = defaultScreen
	}
	if c.Touch.Threshold == 0 {
		c.Touch.Threshold = defaultThreshold
	}
	if _, ok := c.Touch.Calibration(); !ok {
		c.Touch.Matrix = nil
	}
	// Zero means unset, not off.
	if c.Backlight.Brightness == 0 {
		c.Backlight.Brightness = defaultBrightness
	}
	if c.Backlight.Brightness > 100 {
		c.Backlight.Brightness = 100
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HealthCheckCron == "" {
		c.HealthCheckCron = defaultHealthCheck
	}
	if c.Agenda.Timezone == "" {
		c.Agenda.Timezone = defaultTimezone
	}
	if c.Agenda.HorizonHours <= 0 {
		c.Agenda.HorizonHours = defaultHorizon
	}
	if c.Agenda.MaxLines <= 0 {
		c.Agenda.MaxLines = defaultMaxLines
	}
	if c.Agenda.Sources == nil {
		c.Agenda.Sources = []ICSConfig{}
	}
	for i := range c.Agenda.Sources {
		s := &c.Agenda.Sources[i]
		s.URL = strings.TrimSpace(s.URL)
		if s.ID == "" {
			s.ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".evepanel-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: replace %s: %w", path, err)
	}
	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
