package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage WindowAccordion configuration",
	Long:  `View and manage WindowAccordion configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, file and environment.`,
	Example: `  # Show configuration as YAML (default)
  accordion config show

  # Show configuration as JSON
  accordion config show --format json`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value and write it to the config file.`,
	Example: `  # Set server port
  accordion config set server_port 9090

  # Poll every five seconds
  accordion config set monitor.refresh_interval 5s`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Example: `  # Get server port
  accordion config get server_port

  # Get the focus policy
  accordion config get focus.policy`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", formatYAML, "output format (yaml or json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return encode(cmd.OutOrStdout(), configFormat, cfg)
}

// parseValue converts value to the type of key's default
func parseValue(v *viper.Viper, key, value string) (any, error) {
	switch v.Get(key).(type) {
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return n, nil
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean for %s: %s (use: true or false)", key, value)
		}
		return b, nil
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %s (e.g. 2s, 500ms)", key, value)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	v := viper.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	parsed, err := parseValue(v, key, value)
	if err != nil {
		return err
	}
	v.Set(key, parsed)

	var check config.Config
	if err := v.Unmarshal(&check); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	check.Registry.Path = cfg.Registry.Path
	if err := check.Validate(); err != nil {
		return err
	}

	path, err := configPath()
	if err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	v := viper.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key not found: %s", key)
	}

	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// configPath is the file that was read, or where a new one would be written
func configPath() (string, error) {
	if cfg.File != "" {
		return cfg.File, nil
	}
	dir, err := config.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
