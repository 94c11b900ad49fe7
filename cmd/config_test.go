package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/thirdtime/internal/config"
)

func TestConfigCmd(t *testing.T) {
	cfg := testConfig(t)
	run := func(args ...string) (string, error) {
		resetFlags(t)
		stdout, _, err := executeCmd(rootCmd, append([]string{"--config", cfg}, args...)...)
		return stdout, err
	}

	out, err := run("config", "path")
	require.NoError(t, err)
	assert.Equal(t, cfg, strings.TrimSpace(out))

	out, err = run("config")
	require.NoError(t, err)
	assert.Contains(t, out, "Work length:          25m")
	assert.Contains(t, out, "deep")
	assert.Contains(t, out, "127.0.0.1:7419 (on)")

	out, err = run("config", "preset", "Sprint", "10m")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved preset sprint: 10m")

	loaded, err := config.LoadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.Duration(10*time.Minute), loaded.Presets["sprint"])

	_, err = run("config", "preset", "deep", "--remove")
	require.NoError(t, err)
	loaded, err = config.LoadFile(cfg)
	require.NoError(t, err)
	assert.NotContains(t, loaded.Presets, "deep")
	assert.Contains(t, loaded.Presets, "sprint")

	_, err = run("config", "preset", "nope", "--remove")
	assert.Error(t, err)

	_, err = run("config", "preset", "broken", "-5m")
	assert.Error(t, err)
}
