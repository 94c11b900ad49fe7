package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// executeCmd is a helper to execute a cobra command in tests
func executeCmd(cmd *cobra.Command, args ...string) (stdout string, stderr string, err error) {
	bufOut := new(bytes.Buffer)
	bufErr := new(bytes.Buffer)

	cmd.SetOut(bufOut)
	cmd.SetErr(bufErr)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return bufOut.String(), bufErr.String(), err
}

// resetFlags restores flag variables between executions of the shared
// command tree.
func resetFlags(t *testing.T) {
	t.Helper()
	configPath, dbPath, apiAddr = "", "", ""
	jsonOutput, inlineMode = false, false
	timerPreset, timerLabel = "", ""
	startLabel, startPreset, startUntil = "", "", ""
	historySince, historySearch, historyLimit = "", "", 20
	bankSince = ""
	statsDays = 7
	exportFormat, exportSince, exportOutput = "json", "", ""
	_ = configPresetCmd.Flags().Set("remove", "false")
	t.Cleanup(func() { _ = cleanupServices() })
}

// testConfig returns a --config argument pointing at a fresh file.
func testConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.toml")
}

func TestRootCmd_Structure(t *testing.T) {
	if rootCmd.Use != "thirdtime" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "thirdtime")
	}

	want := []string{"run", "serve", "mcp", "start", "end-in", "end-at", "end-now", "long-break", "kill", "status", "history", "bank", "stats", "export", "config"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q is not registered", name)
		}
	}
}

func TestRootCmd_Help(t *testing.T) {
	resetFlags(t)
	stdout, _, err := executeCmd(rootCmd, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	if !strings.Contains(stdout, "Third Time") {
		t.Error("help output should mention Third Time")
	}
}

func TestRootCmd_Flags(t *testing.T) {
	for _, name := range []string{"config", "db", "addr", "json"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag should be registered", name)
		}
	}
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		for _, name := range []string{"inline", "preset", "label"} {
			if c.Flags().Lookup(name) == nil {
				t.Errorf("%s: --%s flag should be registered", c.Name(), name)
			}
		}
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"25 minutes", 25 * time.Minute, "25m"},
		{"60 minutes", 60 * time.Minute, "1h"},
		{"90 minutes", 90 * time.Minute, "1h30m"},
		{"under a minute", 40 * time.Second, "0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMinutes(tt.duration); got != tt.want {
				t.Errorf("formatMinutes(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatClockAndSigned(t *testing.T) {
	tests := []struct {
		d      time.Duration
		clock  string
		signed string
	}{
		{25 * time.Minute, "25:00", "+25:00"},
		{5*time.Minute + 30*time.Second, "05:30", "+05:30"},
		{-100 * time.Second, "01:40", "-01:40"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03", "+1:02:03"},
		{0, "00:00", "+00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			if got := formatClock(tt.d); got != tt.clock {
				t.Errorf("formatClock(%v) = %q, want %q", tt.d, got, tt.clock)
			}
			if got := formatSigned(tt.d); got != tt.signed {
				t.Errorf("formatSigned(%v) = %q, want %q", tt.d, got, tt.signed)
			}
		})
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Time
	}{
		{"", now.Add(-24 * time.Hour)},
		{"all", time.Time{}},
		{"today", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)},
		{"48h", now.Add(-48 * time.Hour)},
		{"2025-03-01", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-03-09T08:00:00Z", time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseSince(tt.value, now, 24*time.Hour)
			if err != nil {
				t.Fatalf("parseSince(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseSince(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}

	if _, err := parseSince("last tuesday", now, time.Hour); err == nil {
		t.Error("parseSince should reject unknown values")
	}
}
