// Package focus acts on windows owned by other processes. A window observed
// by the monitor carries no handle that survives between snapshot and
// action, so every operation re-resolves it against the process's live
// windows by title and then by geometry.
package focus

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/rs/zerolog"
)

// DefaultLiveWindowLimit caps live window enumeration per action
const DefaultLiveWindowLimit = 100

// Policy decides how the raise, set-main and set-focused results of a focus
// combine
type Policy string

const (
	// PolicyAny succeeds when at least one sub-action succeeds
	PolicyAny Policy = "any"
	// PolicyAll succeeds only when every sub-action succeeds
	PolicyAll Policy = "all"
)

// Options configures a Controller
type Options struct {
	Provider        *platform.Provider
	LiveWindowLimit int
	Tolerance       int
	Policy          Policy
}

// Controller performs focus, minimize, close, move and resize on observed
// windows. Every operation reports success as a boolean and never panics.
type Controller struct {
	provider  *platform.Provider
	limit     int
	tolerance int
	policy    Policy
	log       *zerolog.Logger
}

// New creates a controller. A missing collaborator is a configuration error.
func New(opts Options) (*Controller, error) {
	if opts.Provider == nil {
		return nil, errors.New("focus: platform provider not configured")
	}
	if err := opts.Provider.Validate(); err != nil {
		return nil, fmt.Errorf("focus: %w", err)
	}

	c := &Controller{
		provider:  opts.Provider,
		limit:     opts.LiveWindowLimit,
		tolerance: opts.Tolerance,
		policy:    opts.Policy,
		log:       logger.WithComponent("focus"),
	}
	if c.limit <= 0 {
		c.limit = DefaultLiveWindowLimit
	}
	if c.tolerance <= 0 {
		c.tolerance = DefaultTolerance
	}
	switch c.policy {
	case PolicyAny, PolicyAll:
	case "":
		c.policy = PolicyAny
	default:
		return nil, fmt.Errorf("focus: unknown policy %q", c.policy)
	}
	return c, nil
}

// resolve runs the shared precondition: permission, activation of the owning
// process, then matching against its live windows
func (c *Controller) resolve(w model.Window) (lw platform.LiveWindow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: control surface panicked: %v", model.ErrResolutionFailure, r)
		}
	}()

	if !c.provider.Permission.IsPermissionGranted() {
		return lw, model.ErrPermissionDenied
	}
	if !c.provider.Activator.ActivateProcess(w.OwnerPID) {
		return lw, fmt.Errorf("%w: pid %d", model.ErrActivationFailure, w.OwnerPID)
	}

	live := c.provider.Control.LiveWindows(w.OwnerPID, c.limit)
	if len(live) > c.limit {
		live = live[:c.limit]
	}

	lw, ok := Match(w, live, c.tolerance)
	if !ok {
		return lw, fmt.Errorf("%w: %q among %d live windows", model.ErrResolutionFailure, w.Title, len(live))
	}
	return lw, nil
}

// act resolves w and runs fn on the match, logging any failure
func (c *Controller) act(op string, w model.Window, fn func(platform.LiveWindow) bool) (ok bool) {
	log := c.log.With().
		Str("op", op).
		Uint32("window", uint32(w.ID)).
		Int("pid", w.OwnerPID).
		Logger()

	lw, err := c.resolve(w)
	if err != nil {
		log.Warn().Err(err).Msg("Window action failed")
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Control action panicked")
			ok = false
		}
	}()

	ok = fn(lw)
	if !ok {
		log.Warn().Msg("Control action rejected")
		return false
	}
	log.Debug().Msg("Window action succeeded")
	return true
}

func (c *Controller) perform(lw platform.LiveWindow, action platform.Action, value any) bool {
	return c.provider.Control.PerformControlAction(lw.Handle, action, value)
}

// focusLive raises the window and makes it main and focused. All three
// sub-actions are attempted; the policy combines their results.
func (c *Controller) focusLive(lw platform.LiveWindow) bool {
	raised := c.perform(lw, platform.ActionRaise, nil)
	main := c.perform(lw, platform.ActionSetMain, true)
	focused := c.perform(lw, platform.ActionSetFocused, true)

	c.log.Debug().
		Bool("raise", raised).
		Bool("main", main).
		Bool("focused", focused).
		Msg("Focus results")

	if c.policy == PolicyAll {
		return raised && main && focused
	}
	return raised || main || focused
}

// Focus brings w to the front and gives it keyboard focus
func (c *Controller) Focus(w model.Window) bool {
	return c.act("focus", w, c.focusLive)
}

// Minimize minimizes w
func (c *Controller) Minimize(w model.Window) bool {
	return c.act("minimize", w, func(lw platform.LiveWindow) bool {
		return c.perform(lw, platform.ActionSetMinimized, true)
	})
}

// Unminimize restores w by clearing the minimized attribute and focusing it.
// Success follows the focus result.
func (c *Controller) Unminimize(w model.Window) bool {
	return c.act("unminimize", w, func(lw platform.LiveWindow) bool {
		if lw.IsMinimized {
			c.perform(lw, platform.ActionSetMinimized, false)
		}
		return c.focusLive(lw)
	})
}

// Close presses the close control of w
func (c *Controller) Close(w model.Window) bool {
	return c.act("close", w, func(lw platform.LiveWindow) bool {
		return c.perform(lw, platform.ActionClose, nil)
	})
}

// Move sets the position of w
func (c *Controller) Move(w model.Window, to model.Point) bool {
	return c.act("move", w, func(lw platform.LiveWindow) bool {
		return c.perform(lw, platform.ActionSetPosition, to)
	})
}

// Resize sets the size of w
func (c *Controller) Resize(w model.Window, to model.Size) bool {
	return c.act("resize", w, func(lw platform.LiveWindow) bool {
		return c.perform(lw, platform.ActionSetSize, to)
	})
}

// Bounds returns the live bounds of w
func (c *Controller) Bounds(w model.Window) (model.Rect, bool) {
	var bounds model.Rect
	ok := c.act("bounds", w, func(lw platform.LiveWindow) bool {
		bounds = lw.Bounds
		return true
	})
	return bounds, ok
}

// IsMinimized reports whether the live window behind w is minimized. It
// returns false when w cannot be resolved.
func (c *Controller) IsMinimized(w model.Window) bool {
	var minimized bool
	c.act("is_minimized", w, func(lw platform.LiveWindow) bool {
		minimized = lw.IsMinimized
		return true
	})
	return minimized
}

// ActivateApplication brings the first running process of bundleID to the
// foreground
func (c *Controller) ActivateApplication(bundleID string) bool {
	for _, app := range c.provider.Apps.RunningApplications() {
		if app.BundleIdentifier != bundleID {
			continue
		}
		if c.provider.Activator.ActivateProcess(app.PID) {
			return true
		}
		c.log.Warn().Err(model.ErrActivationFailure).Str("bundle", bundleID).Int("pid", app.PID).Msg("Activation failed")
		return false
	}
	c.log.Warn().Str("bundle", bundleID).Msg("No running application for bundle")
	return false
}
