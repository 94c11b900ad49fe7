package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/thirdtime/internal/domain"
)

func TestDefaultConfig_CycleConfig(t *testing.T) {
	cfg := DefaultConfig()
	cc := cfg.CycleConfig()

	if cc.WorkLength != 25*time.Minute {
		t.Errorf("expected work length 25m, got %v", cc.WorkLength)
	}
	if cc.MinimumBreakLength != time.Minute {
		t.Errorf("expected minimum break 1m, got %v", cc.MinimumBreakLength)
	}
	if cc.DefaultEndIn != 5*time.Minute {
		t.Errorf("expected default end-in 5m, got %v", cc.DefaultEndIn)
	}
	if cc.ConfirmTransitions {
		t.Errorf("expected transitions to advance on their own by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFile_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
	assert.Equal(t, Duration(25*time.Minute), cfg.Cycle.WorkLength)
	assert.InDelta(t, 1.0/3.0, cfg.Cycle.BreakToWorkRatio, 1e-9)
	assert.Equal(t, "127.0.0.1:7419", cfg.Server.Addr)
	assert.Equal(t, Duration(50*time.Minute), cfg.Presets["deep"])
	assert.NotContains(t, cfg.Storage.DataDir, "~")
}

func TestLoadFile_ReadsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[cycle]
work_length = "45m"
break_to_work_ratio = 0.25
minimum_break_length = "2m"
long_break_length = "30m"
default_end_in_minutes = 2.5
confirm_transitions = true

[presets]
sprint = "10m"

[storage]
data_dir = "/tmp/thirdtime-data"

[log]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	cc := cfg.CycleConfig()
	assert.Equal(t, 45*time.Minute, cc.WorkLength)
	assert.Equal(t, 0.25, cc.BreakToWorkRatio)
	assert.Equal(t, 2*time.Minute, cc.MinimumBreakLength)
	assert.Equal(t, 30*time.Minute, cc.LongBreakLength)
	assert.Equal(t, 150*time.Second, cc.DefaultEndIn)
	assert.True(t, cc.ConfirmTransitions)
	assert.Equal(t, Duration(10*time.Minute), cfg.Presets["sprint"])
	assert.Equal(t, "/tmp/thirdtime-data", cfg.Storage.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFile_RejectsNegativeRatio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cycle]\nbreak_to_work_ratio = -1.0\n"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestSaveFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Cycle.WorkLength = Duration(40 * time.Minute)
	cfg.Presets["long"] = Duration(90 * time.Minute)
	require.NoError(t, SaveFile(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(40*time.Minute), loaded.Cycle.WorkLength)
	assert.Equal(t, Duration(90*time.Minute), loaded.Presets["long"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative minimum", func(c *Config) { c.Cycle.MinimumBreakLength = Duration(-time.Second) }, "minimum_break_length"},
		{"nan ratio", func(c *Config) { c.Cycle.BreakToWorkRatio = math.NaN() }, "break_to_work_ratio"},
		{"zero work length", func(c *Config) { c.Cycle.WorkLength = 0 }, "work_length"},
		{"negative end in", func(c *Config) { c.Cycle.DefaultEndInMinutes = -1 }, "default_end_in_minutes"},
		{"empty preset", func(c *Config) { c.Presets["empty"] = 0 }, "presets.empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestMatchPreset(t *testing.T) {
	cfg := DefaultConfig()

	p, ok := cfg.MatchPreset("deep")
	require.True(t, ok)
	assert.Equal(t, 50*time.Minute, p.Duration)

	p, ok = cfg.MatchPreset("Fcs")
	require.True(t, ok)
	assert.Equal(t, "focus", p.Name)

	_, ok = cfg.MatchPreset("zzz")
	assert.False(t, ok)

	_, ok = cfg.MatchPreset("")
	assert.False(t, ok)
}

func TestMinutesToDuration(t *testing.T) {
	d, err := MinutesToDuration(1.5)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = MinutesToDuration(0)
	require.NoError(t, err)
	assert.Zero(t, d)

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1), 1e300} {
		_, err := MinutesToDuration(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "minutes=%v", bad)
	}
}
