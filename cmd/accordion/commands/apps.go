package commands

import (
	"fmt"
	"strconv"

	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage enabled applications and their profiles",
	Long: `Enable or disable applications and manage their profiles. Bundle
identifiers are the lowercased WM_CLASS class, e.g. "firefox" or
"org.gnome.nautilus".`,
}

var appsEnableCmd = &cobra.Command{
	Use:   "enable BUNDLE...",
	Short: "Enable one or more applications",
	Example: `  # Enable Firefox
  accordion apps enable firefox

  # Enable several at once
  accordion apps enable code org.gnome.nautilus`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAppsEnable,
}

var appsDisableCmd = &cobra.Command{
	Use:   "disable BUNDLE",
	Short: "Disable an application",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsDisable,
}

var appsToggleCmd = &cobra.Command{
	Use:   "toggle BUNDLE",
	Short: "Flip an application's enablement",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsToggle,
}

var appsRemoveCmd = &cobra.Command{
	Use:   "remove BUNDLE",
	Short: "Delete an application's profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runAppsRemove,
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List application profiles",
	Long:  `Display profiles, highest priority first.`,
	RunE:  runAppsList,
}

var appsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default profiles and enabled set",
	RunE:  runAppsReset,
}

var appsDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Create profiles for running applications",
	Long:  `Snapshot the running applications and create a profile for every one that has none.`,
	RunE:  runAppsDiscover,
}

var (
	appsFormat      string
	appsEnabledOnly bool
	appsDisableAll  bool
)

func init() {
	rootCmd.AddCommand(appsCmd)
	appsCmd.AddCommand(appsEnableCmd)
	appsCmd.AddCommand(appsDisableCmd)
	appsCmd.AddCommand(appsToggleCmd)
	appsCmd.AddCommand(appsRemoveCmd)
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsResetCmd)
	appsCmd.AddCommand(appsDiscoverCmd)

	appsListCmd.Flags().StringVarP(&appsFormat, "format", "f", formatTable, "output format (table, json or yaml)")
	appsListCmd.Flags().BoolVarP(&appsEnabledOnly, "enabled", "e", false, "show only enabled applications")
	appsDisableCmd.Flags().BoolVar(&appsDisableAll, "all", false, "disable every application")
	appsDisableCmd.Args = func(cmd *cobra.Command, args []string) error {
		if appsDisableAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	}
}

func runAppsEnable(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	if err := reg.EnableMany(args); err != nil {
		return fmt.Errorf("failed to enable: %w", err)
	}
	for _, id := range args {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Enabled '%s'\n", id)
	}
	return nil
}

func runAppsDisable(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	if appsDisableAll {
		if err := reg.DisableAll(); err != nil {
			return fmt.Errorf("failed to disable: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✅ Disabled all applications")
		return nil
	}
	if err := reg.Disable(args[0]); err != nil {
		return fmt.Errorf("failed to disable: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Disabled '%s'\n", args[0])
	return nil
}

func runAppsToggle(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	enabled, err := reg.Toggle(args[0])
	if err != nil {
		return fmt.Errorf("failed to toggle: %w", err)
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ '%s' is now %s\n", args[0], state)
	return nil
}

func runAppsRemove(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	if err := reg.RemoveProfile(args[0]); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Removed profile '%s'\n", args[0])
	return nil
}

func runAppsList(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	profiles := reg.Profiles()
	if appsEnabledOnly {
		profiles = reg.EnabledProfiles()
	}
	return printProfiles(cmd, profiles)
}

func printProfiles(cmd *cobra.Command, profiles []registry.Profile) error {
	out := cmd.OutOrStdout()
	if appsFormat != formatTable {
		return encode(out, appsFormat, profiles)
	}
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			p.BundleIdentifier,
			p.DisplayName,
			yesNo(p.IsEnabled),
			strconv.Itoa(p.Priority),
			string(p.WindowBehavior),
			p.AccentColorHex,
		})
	}
	return printTable(out, []string{"BUNDLE", "NAME", "ENABLED", "PRIORITY", "BEHAVIOR", "COLOR"}, rows)
}

func runAppsReset(cmd *cobra.Command, args []string) error {
	reg := openRegistry(cfg)
	if err := reg.ResetToDefaults(); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Registry reset (%d profiles)\n", len(reg.Profiles()))
	return nil
}

func runAppsDiscover(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refresh(); err != nil {
		return err
	}
	added, err := a.registry.Discover(a.monitor.Applications())
	if err != nil {
		return fmt.Errorf("failed to save discovered profiles: %w", err)
	}
	if len(added) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No new applications")
		return nil
	}
	for _, p := range added {
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Added '%s' (%s)\n", p.BundleIdentifier, p.DisplayName)
	}
	return nil
}
