package commands

import (
	"fmt"
	"strconv"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List windows of enabled applications",
	Long: `Take one snapshot of the desktop and list the windows of enabled
applications, or the running applications and their cached state.`,
	Example: `  # List windows in table format (default)
  accordion list

  # List windows in JSON format
  accordion list --format json

  # List running applications
  accordion list --apps

  # List application state (enabled, priority, last used)
  accordion list --states

  # Group windows per application
  accordion list --groups`,
	RunE: runList,
}

var (
	listFormat string
	listApps   bool
	listStates bool
	listGroups bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "output format (table, json or yaml)")
	listCmd.Flags().BoolVarP(&listApps, "apps", "a", false, "list running applications")
	listCmd.Flags().BoolVarP(&listStates, "states", "s", false, "list application states")
	listCmd.Flags().BoolVarP(&listGroups, "groups", "g", false, "group windows per application")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refresh(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case listApps:
		apps := a.monitor.Applications()
		if listFormat != formatTable {
			return encode(out, listFormat, apps)
		}
		rows := make([][]string, 0, len(apps))
		for _, app := range apps {
			rows = append(rows, []string{
				app.DisplayName,
				app.BundleIdentifier,
				strconv.Itoa(app.ProcessID),
				yesNo(a.registry.IsApplicationEnabled(app.BundleIdentifier)),
			})
		}
		return printTable(out, []string{"NAME", "BUNDLE", "PID", "ENABLED"}, rows)

	case listStates:
		states := a.monitor.ApplicationStates()
		if listFormat != formatTable {
			return encode(out, listFormat, states)
		}
		rows := make([][]string, 0, len(states))
		for _, s := range states {
			lastUsed := "-"
			if s.LastUsed != nil {
				lastUsed = s.LastUsed.Local().Format("2006-01-02 15:04:05")
			}
			rows = append(rows, []string{s.BundleIdentifier, yesNo(s.IsEnabled), strconv.Itoa(s.Priority), lastUsed})
		}
		return printTable(out, []string{"BUNDLE", "ENABLED", "PRIORITY", "LAST USED"}, rows)

	case listGroups:
		groups := a.monitor.Groups()
		if listFormat != formatTable {
			return encode(out, listFormat, groups)
		}
		rows := make([][]string, 0)
		for _, g := range groups {
			for _, w := range g.Windows {
				rows = append(rows, windowRow(w))
			}
		}
		return printTable(out, windowHeaders, rows)

	default:
		windows := a.monitor.Windows()
		if listFormat != formatTable {
			return encode(out, listFormat, windows)
		}
		rows := make([][]string, 0, len(windows))
		for _, w := range windows {
			rows = append(rows, windowRow(w))
		}
		return printTable(out, windowHeaders, rows)
	}
}

var windowHeaders = []string{"ID", "APP", "TITLE", "PID", "GEOMETRY", "MAIN"}

func windowRow(w model.Window) []string {
	return []string{
		strconv.FormatUint(uint64(w.ID), 10),
		w.Application.DisplayName,
		w.DisplayTitle(),
		strconv.Itoa(w.OwnerPID),
		fmt.Sprintf("%dx%d at (%d, %d)", w.Bounds.Width, w.Bounds.Height, w.Bounds.X, w.Bounds.Y),
		yesNo(w.IsMainWindow()),
	}
}
