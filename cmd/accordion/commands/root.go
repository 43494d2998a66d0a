package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/WindowAccordion/internal/config"
	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set at build time
var Version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "accordion",
		Short: "WindowAccordion - per-application window switcher for X11",
		Long: `WindowAccordion watches the windows of the applications you enable and
lets you focus, minimize, close, move and resize them from one place.

Features:
  • Poll on-screen windows and running applications via X11
  • React to application launch, exit and activation (X11 and D-Bus)
  • Enable applications and give them profiles with accent colours
  • Persistent, hand-editable registry file
  • REST API and WebSocket stream for integration
  • MCP tools for agents`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
		Version:           Version,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/accordion/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 8080, "server port")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "human readable log output")
	rootCmd.PersistentFlags().String("registry", "", "registry file (default is $HOME/.config/accordion/registry.yaml)")

	// Bind flags to viper
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"port":       "server_port",
		"log-level":  "log_level",
		"log-pretty": "log_pretty",
		"registry":   "registry.path",
	})
}

// bindFlags binds each flag name to its viper key
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
