package commands

import (
	"fmt"
	"strconv"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/spf13/cobra"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Control a window of an enabled application",
	Long: `Focus, minimize, close, move or resize a window by the ID shown in
'accordion list'.`,
	Example: `  # Bring window 6291467 to the front
  accordion window focus 6291467

  # Move it to the top-left corner
  accordion window move 6291467 0 0

  # Resize it
  accordion window resize 6291467 1280 720`,
}

// windowAction is one of the single-argument window operations
type windowAction struct {
	use   string
	short string
	run   func(a *app, w model.Window) bool
}

var windowActions = []windowAction{
	{"focus", "Raise and focus a window", func(a *app, w model.Window) bool { return a.controller.Focus(w) }},
	{"minimize", "Minimize a window", func(a *app, w model.Window) bool { return a.controller.Minimize(w) }},
	{"unminimize", "Restore a minimized window", func(a *app, w model.Window) bool { return a.controller.Unminimize(w) }},
	{"close", "Close a window", func(a *app, w model.Window) bool { return a.controller.Close(w) }},
}

var windowMoveCmd = &cobra.Command{
	Use:   "move ID X Y",
	Short: "Move a window's top-left corner",
	Args:  cobra.ExactArgs(3),
	RunE:  runWindowMove,
}

var windowResizeCmd = &cobra.Command{
	Use:   "resize ID WIDTH HEIGHT",
	Short: "Resize a window",
	Args:  cobra.ExactArgs(3),
	RunE:  runWindowResize,
}

var windowBoundsCmd = &cobra.Command{
	Use:   "bounds ID",
	Short: "Show a window's live bounds",
	Args:  cobra.ExactArgs(1),
	RunE:  runWindowBounds,
}

func init() {
	rootCmd.AddCommand(windowCmd)
	for _, action := range windowActions {
		windowCmd.AddCommand(&cobra.Command{
			Use:   action.use + " ID",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE:  runWindowAction(action),
		})
	}
	windowCmd.AddCommand(windowMoveCmd)
	windowCmd.AddCommand(windowResizeCmd)
	windowCmd.AddCommand(windowBoundsCmd)
}

func parseWindowID(raw string) (model.WindowID, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window ID: %s", raw)
	}
	return model.WindowID(id), nil
}

func parseInts(raw ...string) ([]int, error) {
	out := make([]int, len(raw))
	for i, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", s)
		}
		out[i] = n
	}
	return out, nil
}

// withWindow refreshes the snapshot and looks up the window by ID
func withWindow(rawID string, fn func(a *app, w model.Window) error) error {
	id, err := parseWindowID(rawID)
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.refresh(); err != nil {
		return err
	}
	w, ok := a.monitor.Window(id)
	if !ok {
		return fmt.Errorf("window %d not found among enabled applications", id)
	}
	return fn(a, w)
}

func runWindowAction(action windowAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withWindow(args[0], func(a *app, w model.Window) error {
			if !action.run(a, w) {
				return fmt.Errorf("failed to %s window %d (%s)", action.use, w.ID, w.DisplayTitle())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %s\n", action.use, w.DisplayTitle())
			return nil
		})
	}
}

func runWindowMove(cmd *cobra.Command, args []string) error {
	nums, err := parseInts(args[1:]...)
	if err != nil {
		return err
	}
	return withWindow(args[0], func(a *app, w model.Window) error {
		to := model.Point{X: nums[0], Y: nums[1]}
		if !a.controller.Move(w, to) {
			return fmt.Errorf("failed to move window %d", w.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Moved %s to (%d, %d)\n", w.DisplayTitle(), to.X, to.Y)
		return nil
	})
}

func runWindowResize(cmd *cobra.Command, args []string) error {
	nums, err := parseInts(args[1:]...)
	if err != nil {
		return err
	}
	if nums[0] <= 0 || nums[1] <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	return withWindow(args[0], func(a *app, w model.Window) error {
		to := model.Size{Width: nums[0], Height: nums[1]}
		if !a.controller.Resize(w, to) {
			return fmt.Errorf("failed to resize window %d", w.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Resized %s to %dx%d\n", w.DisplayTitle(), to.Width, to.Height)
		return nil
	})
}

func runWindowBounds(cmd *cobra.Command, args []string) error {
	return withWindow(args[0], func(a *app, w model.Window) error {
		r, ok := a.controller.Bounds(w)
		if !ok {
			return fmt.Errorf("failed to read bounds of window %d", w.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%dx%d at (%d, %d), minimized: %s\n",
			r.Width, r.Height, r.X, r.Y, yesNo(a.controller.IsMinimized(w)))
		return nil
	})
}
