package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ACCORDION_MONITOR_REFRESH_INTERVAL=5s
const EnvPrefix = "ACCORDION"

// Focus success policies
const (
	PolicyAny = "any"
	PolicyAll = "all"
)

// Config represents the application configuration
type Config struct {
	LogLevel   string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty  bool   `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	ServerPort int    `json:"server_port" yaml:"server_port" mapstructure:"server_port"`

	Monitor  MonitorConfig  `json:"monitor" yaml:"monitor" mapstructure:"monitor"`
	Focus    FocusConfig    `json:"focus" yaml:"focus" mapstructure:"focus"`
	Registry RegistryConfig `json:"registry" yaml:"registry" mapstructure:"registry"`

	// File is the config file that was read, empty when running on defaults
	File string `json:"-" yaml:"-" mapstructure:"-"`
}

// MonitorConfig controls the window reconciliation loop
type MonitorConfig struct {
	RefreshInterval      time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`
	LaunchDelay          time.Duration `json:"launch_delay" yaml:"launch_delay" mapstructure:"launch_delay"`
	MinWindowWidth       int           `json:"min_window_width" yaml:"min_window_width" mapstructure:"min_window_width"`
	MinWindowHeight      int           `json:"min_window_height" yaml:"min_window_height" mapstructure:"min_window_height"`
	SystemBundlePrefixes []string      `json:"system_bundle_prefixes" yaml:"system_bundle_prefixes" mapstructure:"system_bundle_prefixes"`
	AllowedSystemApps    []string      `json:"allowed_system_apps" yaml:"allowed_system_apps" mapstructure:"allowed_system_apps"`
}

// MinWindowSize returns the configured minimum window size
func (m MonitorConfig) MinWindowSize() model.Size {
	return model.Size{Width: m.MinWindowWidth, Height: m.MinWindowHeight}
}

// FocusConfig controls live window resolution
type FocusConfig struct {
	LiveWindowLimit   int    `json:"live_window_limit" yaml:"live_window_limit" mapstructure:"live_window_limit"`
	GeometryTolerance int    `json:"geometry_tolerance" yaml:"geometry_tolerance" mapstructure:"geometry_tolerance"`
	Policy            string `json:"policy" yaml:"policy" mapstructure:"policy"`
}

// RegistryConfig controls application profile persistence
type RegistryConfig struct {
	Path           string   `json:"path" yaml:"path" mapstructure:"path"`
	DefaultEnabled []string `json:"default_enabled" yaml:"default_enabled" mapstructure:"default_enabled"`
	Watch          bool     `json:"watch" yaml:"watch" mapstructure:"watch"`
}

// DefaultSystemBundlePrefixes match desktop shell components that own windows
// but are not applications a user switches between
var DefaultSystemBundlePrefixes = []string{"org.gnome.", "org.kde.", "xfce4-"}

// DefaultAllowedSystemApps are shell-bundled applications kept despite
// matching a system prefix
var DefaultAllowedSystemApps = []string{
	"org.gnome.nautilus",
	"org.gnome.texteditor",
	"org.gnome.terminal",
	"org.gnome.evince",
	"org.kde.dolphin",
	"org.kde.konsole",
	"org.kde.kate",
	"xfce4-terminal",
}

// DefaultEnabledApps are enabled in a fresh registry
var DefaultEnabledApps = []string{
	"firefox",
	"google-chrome",
	"code",
	"org.gnome.nautilus",
	"org.gnome.texteditor",
}

// DefaultDir returns ~/.config/accordion
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "accordion"), nil
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("server_port", 8080)

	v.SetDefault("monitor.refresh_interval", 2*time.Second)
	v.SetDefault("monitor.launch_delay", time.Second)
	v.SetDefault("monitor.min_window_width", 50)
	v.SetDefault("monitor.min_window_height", 50)
	v.SetDefault("monitor.system_bundle_prefixes", DefaultSystemBundlePrefixes)
	v.SetDefault("monitor.allowed_system_apps", DefaultAllowedSystemApps)

	v.SetDefault("focus.live_window_limit", 100)
	v.SetDefault("focus.geometry_tolerance", 5)
	v.SetDefault("focus.policy", PolicyAny)

	v.SetDefault("registry.path", "")
	v.SetDefault("registry.default_enabled", DefaultEnabledApps)
	v.SetDefault("registry.watch", true)
}

// Load reads configuration into v from configFile, or from
// ~/.config/accordion/config.yaml when configFile is empty. A missing default
// file is not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configDir, err := DefaultDir()
	if err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Debug().
			Str("dir", configDir).
			Msg("No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = filepath.Join(configDir, "registry.yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.WithComponent("config").Debug().
		Str("path", cfg.File).
		Str("registry", cfg.Registry.Path).
		Dur("refresh_interval", cfg.Monitor.RefreshInterval).
		Msg("Config loaded")

	return &cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("server_port %d out of range", c.ServerPort))
	}
	if c.Monitor.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.refresh_interval must be positive, got %s", c.Monitor.RefreshInterval))
	}
	if c.Monitor.LaunchDelay < 0 {
		errs = append(errs, fmt.Errorf("monitor.launch_delay must not be negative, got %s", c.Monitor.LaunchDelay))
	}
	if c.Monitor.MinWindowWidth < 0 || c.Monitor.MinWindowHeight < 0 {
		errs = append(errs, errors.New("monitor.min_window_width and min_window_height must not be negative"))
	}
	if c.Focus.LiveWindowLimit <= 0 {
		errs = append(errs, fmt.Errorf("focus.live_window_limit must be positive, got %d", c.Focus.LiveWindowLimit))
	}
	if c.Focus.GeometryTolerance <= 0 {
		errs = append(errs, fmt.Errorf("focus.geometry_tolerance must be positive, got %d", c.Focus.GeometryTolerance))
	}
	switch c.Focus.Policy {
	case PolicyAny, PolicyAll:
	default:
		errs = append(errs, fmt.Errorf("focus.policy must be %q or %q, got %q", PolicyAny, PolicyAll, c.Focus.Policy))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
