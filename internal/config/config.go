package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	MusicDirectories []string     `json:"music_directories" yaml:"music_directories"`
	BeatsDirectory   string       `json:"beats_directory" yaml:"beats_directory"`
	DefaultVolume    float64      `json:"default_volume" yaml:"default_volume"`
	Loop             bool         `json:"loop" yaml:"loop"`
	DataDir          string       `json:"data_dir" yaml:"data_dir"`
	EnableCache      bool         `json:"enable_cache" yaml:"enable_cache"`
	LogLevel         string       `json:"log_level" yaml:"log_level"`
	LogFile          string       `json:"log_file" yaml:"log_file"`
	Beats            BeatsConfig  `json:"beats" yaml:"beats"`
	Lights           LightsConfig `json:"lights" yaml:"lights"`
	Remote           RemoteConfig `json:"remote" yaml:"remote"`
}

// BeatsConfig tunes the beat scheduler
type BeatsConfig struct {
	TickInterval   Duration `json:"tick_interval" yaml:"tick_interval"`
	ClockMode      string   `json:"clock_mode" yaml:"clock_mode"`
	DriftThreshold Duration `json:"drift_threshold" yaml:"drift_threshold"`
	CatchUpWindow  Duration `json:"catch_up_window" yaml:"catch_up_window"`
}

// LightsConfig selects light outputs. The grid is always on.
type LightsConfig struct {
	Blink  Duration     `json:"blink" yaml:"blink"`
	Serial SerialConfig `json:"serial" yaml:"serial"`
	MIDI   MIDIConfig   `json:"midi" yaml:"midi"`
	OSC    OSCConfig    `json:"osc" yaml:"osc"`
}

type SerialConfig struct {
	Device string `json:"device" yaml:"device"`
	Baud   int    `json:"baud" yaml:"baud"`
}

type MIDIConfig struct {
	Port     string `json:"port" yaml:"port"`
	Channel  uint8  `json:"channel" yaml:"channel"`
	BaseNote uint8  `json:"base_note" yaml:"base_note"`
}

type OSCConfig struct {
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Address string `json:"address" yaml:"address"`
}

// RemoteConfig controls the HTTP control API
type RemoteConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Addr           string   `json:"addr" yaml:"addr"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// Duration is a time.Duration written as "10ms" in config files
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// bare numbers are nanoseconds
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.Errorf("invalid duration %s", b)
		}
		*d = Duration(n)
		return nil
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		MusicDirectories: []string{},
		DefaultVolume:    0.5,
		DataDir:          "./data",
		EnableCache:      true,
		LogLevel:         "info",
		Beats: BeatsConfig{
			TickInterval:   Duration(10 * time.Millisecond),
			ClockMode:      "wallclock",
			DriftThreshold: Duration(80 * time.Millisecond),
			CatchUpWindow:  Duration(500 * time.Millisecond),
		},
		Lights: LightsConfig{
			Blink:  Duration(50 * time.Millisecond),
			Serial: SerialConfig{Baud: 115200},
			MIDI:   MIDIConfig{BaseNote: 36},
			OSC:    OSCConfig{Port: 9000, Address: "/lights/beat"},
		},
		Remote: RemoteConfig{
			Addr:           "127.0.0.1:8089",
			AllowedOrigins: []string{"*"},
		},
	}
}

const maxBaseNote = 127 - 15

// Validate rejects values the player cannot run with
func (c *Config) Validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		return errors.Errorf("default_volume %v out of range [0,1]", c.DefaultVolume)
	}
	if c.Beats.TickInterval <= 0 {
		return errors.New("beats.tick_interval must be positive")
	}
	if c.Beats.DriftThreshold < 0 {
		return errors.New("beats.drift_threshold must not be negative")
	}
	if c.Beats.CatchUpWindow < 0 {
		return errors.New("beats.catch_up_window must not be negative")
	}
	switch c.Beats.ClockMode {
	case "", "wallclock", "nominal":
	default:
		return errors.Errorf("unknown beats.clock_mode %q", c.Beats.ClockMode)
	}
	if c.Lights.Blink < 0 {
		return errors.New("lights.blink must not be negative")
	}
	if c.Lights.MIDI.Channel > 15 {
		return errors.Errorf("lights.midi.channel %d out of range [0,15]", c.Lights.MIDI.Channel)
	}
	// every one of the 16 light slots needs a key at or below 127
	if c.Lights.MIDI.BaseNote > maxBaseNote {
		return errors.Errorf("lights.midi.base_note %d out of range [0,%d]", c.Lights.MIDI.BaseNote, maxBaseNote)
	}
	return nil
}

// LoadConfig reads and unmarshals configuration from file. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON. Fields missing
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(config)
			return config, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config %s", path)
	}

	applyEnv(config)
	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists
func LoadOrCreate(path string) (*Config, error) {
	_, statErr := os.Stat(path)

	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}

	if os.IsNotExist(statErr) {
		if err := SaveConfig(config, path); err != nil {
			return nil, errors.Wrap(err, "failed to save default config")
		}
	}

	return config, nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("LIGHTSHOW_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "lightshow", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(home, ".config", "lightshow", "config.json")
}

func applyEnv(c *Config) {
	if v := os.Getenv("LIGHTSHOW_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LIGHTSHOW_BEATS_DIR"); v != "" {
		c.BeatsDirectory = v
	}
	if v := os.Getenv("LIGHTSHOW_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
