// Package config provides configuration management for thirdtime.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/viper"
	"github.com/xvierd/thirdtime/internal/domain"
	"github.com/xvierd/thirdtime/internal/planner"
)

const defaultDataDir = "~/.thirdtime"

// Config holds all configuration for the thirdtime application.
type Config struct {
	Cycle         CycleConfig         `mapstructure:"cycle"`
	Presets       map[string]Duration `mapstructure:"presets"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Log           LogConfig           `mapstructure:"log"`
}

// CycleConfig holds the scheduling parameters.
type CycleConfig struct {
	WorkLength          Duration `mapstructure:"work_length"`
	BreakToWorkRatio    float64  `mapstructure:"break_to_work_ratio"`
	MinimumBreakLength  Duration `mapstructure:"minimum_break_length"`
	LongBreakLength     Duration `mapstructure:"long_break_length"`
	DefaultEndInMinutes float64  `mapstructure:"default_end_in_minutes"`
	// ConfirmTransitions keeps an interval in overtime at its deadline
	// until it is ended explicitly. Off by default: a break hands over to
	// work on time, so only early returns reach the bank. Turn it on to
	// have late returns from a break shorten the next one.
	ConfirmTransitions bool `mapstructure:"confirm_transitions"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Sound   bool `mapstructure:"sound"`
}

// ServerConfig holds the local control API settings.
type ServerConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Preset is a named work length.
type Preset struct {
	Name     string
	Duration time.Duration
}

// Duration is a wrapper around time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cycle: CycleConfig{
			WorkLength:          Duration(25 * time.Minute),
			BreakToWorkRatio:    1.0 / 3.0,
			MinimumBreakLength:  Duration(time.Minute),
			LongBreakLength:     Duration(20 * time.Minute),
			DefaultEndInMinutes: 5,
		},
		Presets: map[string]Duration{
			"focus": Duration(25 * time.Minute),
			"deep":  Duration(50 * time.Minute),
			"quick": Duration(15 * time.Minute),
		},
		Notifications: NotificationConfig{
			Enabled: true,
			Sound:   true,
		},
		Server: ServerConfig{
			Enabled:        true,
			Addr:           "127.0.0.1:7419",
			AllowedOrigins: []string{"http://localhost"},
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the configuration from the default config file, creating it
// with defaults when missing.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(configPath)
}

// LoadFile loads and validates the configuration stored at path.
func LoadFile(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveFile(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dataDir, err := expandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveFile writes cfg to path as TOML.
func SaveFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(path)
	v.Set("cycle.work_length", cfg.Cycle.WorkLength.String())
	v.Set("cycle.break_to_work_ratio", cfg.Cycle.BreakToWorkRatio)
	v.Set("cycle.minimum_break_length", cfg.Cycle.MinimumBreakLength.String())
	v.Set("cycle.long_break_length", cfg.Cycle.LongBreakLength.String())
	v.Set("cycle.default_end_in_minutes", cfg.Cycle.DefaultEndInMinutes)
	v.Set("cycle.confirm_transitions", cfg.Cycle.ConfirmTransitions)
	presets := make(map[string]string, len(cfg.Presets))
	for name, d := range cfg.Presets {
		presets[name] = d.String()
	}
	v.Set("presets", presets)
	v.Set("notifications.enabled", cfg.Notifications.Enabled)
	v.Set("notifications.sound", cfg.Notifications.Sound)
	v.Set("server.enabled", cfg.Server.Enabled)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	return v.WriteConfigAs(path)
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".thirdtime", "config.toml"), nil
}

// GetDBPath returns the path to the database file.
func GetDBPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "thirdtime.db")
}

// CycleConfig converts the file settings to the domain configuration.
// Call Validate first; an invalid default_end_in_minutes converts to zero.
func (c *Config) CycleConfig() domain.CycleConfig {
	endIn, err := MinutesToDuration(c.Cycle.DefaultEndInMinutes)
	if err != nil {
		endIn = 0
	}
	return domain.CycleConfig{
		WorkLength:         time.Duration(c.Cycle.WorkLength),
		BreakToWorkRatio:   c.Cycle.BreakToWorkRatio,
		MinimumBreakLength: time.Duration(c.Cycle.MinimumBreakLength),
		LongBreakLength:    time.Duration(c.Cycle.LongBreakLength),
		DefaultEndIn:       endIn,
		ConfirmTransitions: c.Cycle.ConfirmTransitions,
	}
}

// Validate rejects settings the scheduler cannot work with.
func (c *Config) Validate() error {
	if _, err := MinutesToDuration(c.Cycle.DefaultEndInMinutes); err != nil {
		return &domain.ConfigurationError{
			Field:  "default_end_in_minutes",
			Value:  c.Cycle.DefaultEndInMinutes,
			Reason: "must be a non-negative number",
		}
	}
	if err := planner.Validate(c.CycleConfig()); err != nil {
		return err
	}
	for name, d := range c.Presets {
		if d <= 0 {
			return &domain.ConfigurationError{Field: "presets." + name, Value: d, Reason: "must be positive"}
		}
	}
	return nil
}

// PresetList returns the configured presets sorted by name.
func (c *Config) PresetList() []Preset {
	presets := make([]Preset, 0, len(c.Presets))
	for name, d := range c.Presets {
		presets = append(presets, Preset{Name: name, Duration: time.Duration(d)})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets
}

// MatchPreset finds the preset whose name best matches query. Exact
// matches win; otherwise the best fuzzy match is used.
func (c *Config) MatchPreset(query string) (Preset, bool) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return Preset{}, false
	}
	presets := c.PresetList()
	names := make([]string, len(presets))
	for i, p := range presets {
		if strings.ToLower(p.Name) == query {
			return p, true
		}
		names[i] = strings.ToLower(p.Name)
	}
	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return Preset{}, false
	}
	return presets[matches[0].Index], true
}

// MinutesToDuration converts a fractional number of minutes.
func MinutesToDuration(minutes float64) (time.Duration, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return 0, domain.InvalidArgument("minutes", minutes)
	}
	nanos := math.Round(minutes * float64(time.Minute))
	if nanos >= math.MaxInt64 {
		return 0, domain.InvalidArgument("minutes", minutes)
	}
	return time.Duration(nanos), nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)
	return v
}

func expandHome(dir string) (string, error) {
	if dir == "" {
		dir = defaultDataDir
	}
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(dir, "~")), nil
}

// setDefaults sets default values for viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("cycle.work_length", "25m0s")
	v.SetDefault("cycle.break_to_work_ratio", 1.0/3.0)
	v.SetDefault("cycle.minimum_break_length", "1m0s")
	v.SetDefault("cycle.long_break_length", "20m0s")
	v.SetDefault("cycle.default_end_in_minutes", 5)
	v.SetDefault("cycle.confirm_transitions", false)
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.sound", true)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", "127.0.0.1:7419")
	v.SetDefault("server.allowed_origins", []string{"http://localhost"})
	v.SetDefault("storage.data_dir", defaultDataDir)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
