package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/config"
	"github.com/bryanchriswhite/WindowAccordion/internal/focus"
	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/monitor"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform/dbuswatch"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform/x11"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
)

const refreshTimeout = 10 * time.Second

// app is the wired set of services shared by the commands
type app struct {
	provider   *platform.Provider
	registry   *registry.Registry
	monitor    *monitor.Monitor
	controller *focus.Controller

	cancel context.CancelFunc
	done   chan struct{}
}

func openRegistry(cfg *config.Config) *registry.Registry {
	return registry.New(registry.Options{
		Store:          registry.NewStore(cfg.Registry.Path),
		DefaultEnabled: cfg.Registry.DefaultEnabled,
	})
}

func monitorFilter(cfg *config.Config) monitor.Filter {
	return monitor.Filter{
		MinWindowSize:        cfg.Monitor.MinWindowSize(),
		SystemBundlePrefixes: cfg.Monitor.SystemBundlePrefixes,
		AllowedSystemApps:    model.NewBundleSet(cfg.Monitor.AllowedSystemApps...),
	}
}

// newApp connects to the display and starts draining the monitor queue. The
// session bus watcher is optional; without a bus only X11 events are used.
func newApp(cfg *config.Config) (*app, error) {
	log := logger.WithComponent("app")

	log.Debug().Msg("Connecting to X11 server...")
	provider, err := x11.NewProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize window backend: %w", err)
	}
	provider.Lifecycle = append(provider.Lifecycle, dbuswatch.New())

	reg := openRegistry(cfg)

	m, err := monitor.New(monitor.Options{
		Provider:        provider,
		Registry:        reg,
		RefreshInterval: cfg.Monitor.RefreshInterval,
		LaunchDelay:     cfg.Monitor.LaunchDelay,
		Filter:          monitorFilter(cfg),
	})
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to initialize monitor: %w", err)
	}

	ctrl, err := focus.New(focus.Options{
		Provider:        provider,
		LiveWindowLimit: cfg.Focus.LiveWindowLimit,
		Tolerance:       cfg.Focus.GeometryTolerance,
		Policy:          focus.Policy(cfg.Focus.Policy),
	})
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to initialize focus controller: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &app{
		provider:   provider,
		registry:   reg,
		monitor:    m,
		controller: ctrl,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		if err := m.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Monitor stopped")
		}
	}()
	return a, nil
}

// refresh runs one tick so one-shot commands see the current desktop
func (a *app) refresh() error {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := a.monitor.RefreshNow(ctx); err != nil {
		return fmt.Errorf("failed to refresh windows: %w", err)
	}
	return nil
}

func (a *app) close() {
	a.cancel()
	<-a.done
	if err := a.provider.Close(); err != nil {
		logger.WithComponent("app").Debug().Err(err).Msg("Failed to close backend")
	}
}
