package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xvierd/thirdtime/internal/config"
	"github.com/xvierd/thirdtime/internal/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View the configuration and manage presets",
	Long:  `Show the effective configuration, print the config file location or edit the named work presets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowCmd.RunE(cmd, args)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.config
		out := cmd.OutOrStdout()
		onOff := func(b bool) string {
			if b {
				return "on"
			}
			return "off"
		}

		fmt.Fprintln(out, "Cycle:")
		fmt.Fprintf(out, "   Work length:          %s\n", formatMinutes(time.Duration(cfg.Cycle.WorkLength)))
		fmt.Fprintf(out, "   Break ratio:          %.3g\n", cfg.Cycle.BreakToWorkRatio)
		fmt.Fprintf(out, "   Minimum break:        %s\n", time.Duration(cfg.Cycle.MinimumBreakLength))
		fmt.Fprintf(out, "   Long break:           %s\n", formatMinutes(time.Duration(cfg.Cycle.LongBreakLength)))
		fmt.Fprintf(out, "   Default end-in:       %gm\n", cfg.Cycle.DefaultEndInMinutes)
		fmt.Fprintf(out, "   Confirm transitions:  %s\n", onOff(cfg.Cycle.ConfirmTransitions))

		fmt.Fprintln(out, "\nPresets:")
		for _, p := range cfg.PresetList() {
			fmt.Fprintf(out, "   %-12s %s\n", p.Name, formatMinutes(p.Duration))
		}

		notif := onOff(cfg.Notifications.Enabled)
		if cfg.Notifications.Enabled && cfg.Notifications.Sound {
			notif = "on (with sound)"
		}
		fmt.Fprintf(out, "\nNotifications:  %s\n", notif)
		fmt.Fprintf(out, "Control API:    %s (%s)\n", controlAddr(), onOff(cfg.Server.Enabled))
		fmt.Fprintf(out, "Data dir:       %s\n", cfg.Storage.DataDir)
		fmt.Fprintf(out, "Log:            %s, %s\n", cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := currentConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configPresetCmd = &cobra.Command{
	Use:   "preset <name> [duration]",
	Short: "Add, change or remove a work preset",
	Long: `Set a named work length, e.g. "thirdtime config preset deep 50m".
Use --remove to delete a preset.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(strings.TrimSpace(args[0]))
		if name == "" {
			return domain.InvalidArgument("name", args[0])
		}
		cfg := app.config
		if cfg.Presets == nil {
			cfg.Presets = make(map[string]config.Duration)
		}

		remove, _ := cmd.Flags().GetBool("remove")
		switch {
		case remove:
			if _, ok := cfg.Presets[name]; !ok {
				return fmt.Errorf("no preset named %q", name)
			}
			delete(cfg.Presets, name)
		case len(args) == 2:
			d, err := time.ParseDuration(args[1])
			if err != nil || d <= 0 {
				return domain.InvalidArgument("duration", args[1])
			}
			cfg.Presets[name] = config.Duration(d)
		default:
			return fmt.Errorf("a duration is required unless --remove is set")
		}

		path, err := currentConfigPath()
		if err != nil {
			return err
		}
		if err := config.SaveFile(path, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		if remove {
			fmt.Fprintf(cmd.OutOrStdout(), "Removed preset %s\n", name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %s: %s\n", name, formatMinutes(time.Duration(cfg.Presets[name])))
		}
		return nil
	},
}

func currentConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func init() {
	configPresetCmd.Flags().Bool("remove", false, "Remove the preset")
	configCmd.AddCommand(configShowCmd, configPathCmd, configPresetCmd)
}
