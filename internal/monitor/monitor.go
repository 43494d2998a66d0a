// Package monitor keeps the authoritative list of on-screen windows and
// running applications by reconciling periodic OS snapshots.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/rs/zerolog"
)

const (
	// DefaultRefreshInterval is the scheduled tick cadence
	DefaultRefreshInterval = 2 * time.Second
	// DefaultLaunchDelay lets a new process map its windows before the tick
	DefaultLaunchDelay = time.Second

	defaultQueueSize = 64
)

// Registry is the part of the application registry the monitor consumes
type Registry interface {
	IsApplicationEnabled(bundleID string) bool
	EnabledApplications() model.BundleSet
	Subscribe(o registry.Observer) func()
}

// Ticker drives scheduled ticks
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Options configures a Monitor
type Options struct {
	Provider        *platform.Provider
	Registry        Registry
	RefreshInterval time.Duration
	LaunchDelay     time.Duration
	Filter          Filter
	QueueSize       int

	// NewTicker and Now are replaced in tests
	NewTicker func(time.Duration) Ticker
	Now       func() time.Time
}

type taskKind int

const (
	taskTick taskKind = iota
	taskRegistry
	taskActivated
)

type task struct {
	kind  taskKind
	gen   uint64
	force bool
	event platform.LifecycleEvent
	done  chan struct{}
}

// pendingRegistry coalesces registry notifications between queue drains.
// The latest enabled set wins.
type pendingRegistry struct {
	mu       sync.Mutex
	enabled  model.BundleSet
	profiles map[string]registry.Profile
	removed  map[string]struct{}
}

// Monitor runs the reconciliation loop.
//
// All published state is written only by the goroutine running Run. Start and
// Stop control the scheduled cadence and lifecycle watchers; RefreshNow runs
// one tick on demand.
type Monitor struct {
	provider  *platform.Provider
	registry  Registry
	interval  time.Duration
	delay     time.Duration
	filter    Filter
	newTicker func(time.Duration) Ticker
	now       func() time.Time
	log       *zerolog.Logger

	tasks chan task

	lifeMu     sync.Mutex
	monitoring atomic.Bool
	generation atomic.Uint64
	cancel     context.CancelFunc
	prompted   bool

	// consumer-owned
	states map[string]model.ApplicationState

	windows   atomic.Pointer[[]model.Window]
	apps      atomic.Pointer[[]model.Application]
	published atomic.Pointer[map[string]model.ApplicationState]

	pending     pendingRegistry
	unsubscribe func()

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

// New creates a monitor and subscribes it to the registry. A missing
// collaborator is a configuration error.
func New(opts Options) (*Monitor, error) {
	if opts.Provider == nil {
		return nil, errors.New("monitor: platform provider not configured")
	}
	if err := opts.Provider.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	if opts.Registry == nil {
		return nil, errors.New("monitor: registry not configured")
	}

	m := &Monitor{
		provider:  opts.Provider,
		registry:  opts.Registry,
		interval:  opts.RefreshInterval,
		delay:     opts.LaunchDelay,
		filter:    opts.Filter,
		newTicker: opts.NewTicker,
		now:       opts.Now,
		log:       logger.WithComponent("monitor"),
		states:    make(map[string]model.ApplicationState),
		observers: make(map[int]Observer),
	}
	if m.interval <= 0 {
		m.interval = DefaultRefreshInterval
	}
	if m.delay < 0 {
		m.delay = DefaultLaunchDelay
	}
	if m.filter.MinWindowSize == (model.Size{}) {
		m.filter.MinWindowSize = DefaultMinWindowSize
	}
	if m.newTicker == nil {
		m.newTicker = newTimeTicker
	}
	if m.now == nil {
		m.now = time.Now
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	m.tasks = make(chan task, size)

	empty := []model.Window{}
	m.windows.Store(&empty)
	noApps := []model.Application{}
	m.apps.Store(&noApps)
	noStates := map[string]model.ApplicationState{}
	m.published.Store(&noStates)

	m.unsubscribe = m.registry.Subscribe(registryObserver{m})
	return m, nil
}

// Run drains the task queue until ctx is done, then stops monitoring and
// unsubscribes from the registry. Only one Run may be active.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.unsubscribe()
	defer m.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-m.tasks:
			m.handle(t)
		}
	}
}

// Start enters the Monitoring state and reports whether monitoring is active.
// It is a no-op when already monitoring. Without permission it asks for access
// once per monitor, logs, stays idle and returns false.
func (m *Monitor) Start() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.monitoring.Load() {
		return true
	}
	if !m.provider.Permission.IsPermissionGranted() {
		if !m.prompted {
			m.prompted = true
			m.provider.Permission.PromptForPermission()
		}
		m.log.Warn().Err(model.ErrPermissionDenied).Msg("Cannot start window monitoring")
		return false
	}

	gen := m.generation.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.monitoring.Store(true)

	go m.schedule(ctx, m.newTicker(m.interval), gen)
	for _, src := range m.provider.Lifecycle {
		go m.watchLifecycle(ctx, src, gen)
	}
	m.enqueue(task{kind: taskTick, gen: gen})

	m.log.Info().
		Dur("interval", m.interval).
		Str("backend", m.provider.BackendName).
		Msg("Window monitoring started")
	return true
}

// Stop cancels the scheduler and lifecycle watchers. Ticks already computed
// but not yet applied are discarded.
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if !m.monitoring.Load() {
		return
	}
	m.monitoring.Store(false)
	m.generation.Add(1)
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.log.Info().Msg("Window monitoring stopped")
}

// IsMonitoring reports whether the monitor is in the Monitoring state
func (m *Monitor) IsMonitoring() bool {
	return m.monitoring.Load()
}

// RefreshNow runs one tick and waits until it has been applied. It works in
// both states but needs Run to be draining the queue.
func (m *Monitor) RefreshNow(ctx context.Context) error {
	t := task{kind: taskTick, gen: m.generation.Load(), force: true, done: make(chan struct{})}
	select {
	case m.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Windows returns the last published window list
func (m *Monitor) Windows() []model.Window {
	return slices.Clone(*m.windows.Load())
}

// Applications returns the last published application list
func (m *Monitor) Applications() []model.Application {
	return slices.Clone(*m.apps.Load())
}

// Groups returns the published windows grouped per application
func (m *Monitor) Groups() []model.AppGroup {
	return model.GroupByApplication(*m.windows.Load())
}

// Window returns the published window with the given ID
func (m *Monitor) Window(id model.WindowID) (model.Window, bool) {
	for _, w := range *m.windows.Load() {
		if w.ID == id {
			return w, true
		}
	}
	return model.Window{}, false
}

// ApplicationStates returns the cached states ordered by bundle identifier
func (m *Monitor) ApplicationStates() []model.ApplicationState {
	states := *m.published.Load()
	out := make([]model.ApplicationState, 0, len(states))
	for _, s := range states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BundleIdentifier < out[j].BundleIdentifier })
	return out
}

// ApplicationState returns the cached state for bundleID
func (m *Monitor) ApplicationState(bundleID string) (model.ApplicationState, bool) {
	s, ok := (*m.published.Load())[bundleID]
	return s, ok
}

// IsApplicationEnabled reports the registry's view of bundleID
func (m *Monitor) IsApplicationEnabled(bundleID string) bool {
	return m.registry.IsApplicationEnabled(bundleID)
}

// EnabledApplications returns the registry's enabled set
func (m *Monitor) EnabledApplications() model.BundleSet {
	return m.registry.EnabledApplications()
}

func (m *Monitor) enqueue(t task) {
	select {
	case m.tasks <- t:
	default:
		m.log.Debug().Int("kind", int(t.kind)).Msg("Task queue full, dropping")
	}
}

func (m *Monitor) schedule(ctx context.Context, ticker Ticker, gen uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.enqueue(task{kind: taskTick, gen: gen})
		}
	}
}

func (m *Monitor) watchLifecycle(ctx context.Context, src platform.LifecycleSource, gen uint64) {
	err := src.WatchLifecycle(ctx, func(ev platform.LifecycleEvent) {
		m.onLifecycle(ctx, gen, ev)
	})
	if err != nil && ctx.Err() == nil {
		m.log.Warn().Err(err).Msg("Lifecycle source stopped")
	}
}

func (m *Monitor) onLifecycle(ctx context.Context, gen uint64, ev platform.LifecycleEvent) {
	m.log.Debug().
		Str("kind", string(ev.Kind)).
		Int("pid", ev.PID).
		Str("bundle", ev.BundleIdentifier).
		Msg("Application lifecycle event")

	switch ev.Kind {
	case platform.Launched:
		time.AfterFunc(m.delay, func() {
			if ctx.Err() != nil {
				return
			}
			m.enqueue(task{kind: taskTick, gen: gen})
		})
	case platform.Terminated:
		m.enqueue(task{kind: taskTick, gen: gen})
	case platform.Activated:
		m.enqueue(task{kind: taskActivated, gen: gen, event: ev})
	}
}

// handle runs on the Run goroutine only
func (m *Monitor) handle(t task) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in monitor tick")
		}
		if t.done != nil {
			close(t.done)
		}
	}()

	// A registry wake-up may have been dropped on a full queue
	m.applyRegistryChanges()

	switch t.kind {
	case taskRegistry:
		if !m.monitoring.Load() {
			return
		}
		t.gen = m.generation.Load()
	case taskActivated:
		if t.gen != m.generation.Load() {
			return
		}
		m.markUsed(t.event)
	}

	m.tick(t)
}

func (m *Monitor) current(t task) bool {
	if t.gen != m.generation.Load() {
		return false
	}
	return t.force || m.monitoring.Load()
}

func (m *Monitor) tick(t task) {
	if !m.current(t) {
		return
	}

	snap := Snapshot{
		Windows:      m.snapshotWindows(),
		Applications: m.runningApplications(),
	}
	resolver, _ := m.provider.Apps.(platform.ApplicationResolver)
	enabled := m.registry.EnabledApplications()
	windows, apps := Reconcile(snap, resolver, enabled, m.filter)

	// Stop or restart may have happened while the collaborators were busy
	if !m.current(t) {
		m.log.Debug().Msg("Discarding stale tick")
		return
	}

	m.publish(windows, apps, enabled)
}

func (m *Monitor) snapshotWindows() (windows []platform.RawWindow) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn().Err(model.ErrSnapshotUnavailable).Interface("panic", r).Msg("Window snapshot failed")
			windows = nil
		}
	}()
	return m.provider.Windows.SnapshotWindows()
}

func (m *Monitor) runningApplications() (apps []platform.RawApplication) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn().Err(model.ErrSnapshotUnavailable).Interface("panic", r).Msg("Application enumeration failed")
			apps = nil
		}
	}()
	return m.provider.Apps.RunningApplications()
}

func (m *Monitor) publish(windows []model.Window, apps []model.Application, enabled model.BundleSet) {
	prev := *m.windows.Load()
	added, removed := diffWindowIDs(prev, windows)

	statesChanged := false
	for _, app := range apps {
		if _, ok := m.states[app.BundleIdentifier]; ok {
			continue
		}
		m.states[app.BundleIdentifier] = model.ApplicationState{
			BundleIdentifier: app.BundleIdentifier,
			IsEnabled:        enabled.Has(app.BundleIdentifier),
		}
		statesChanged = true
	}
	if statesChanged {
		m.publishStates()
	}

	m.windows.Store(&windows)
	m.apps.Store(&apps)

	m.log.Debug().
		Int("windows", len(windows)).
		Int("applications", len(apps)).
		Int("added", len(added)).
		Int("removed", len(removed)).
		Msg("Published snapshot")

	for _, o := range m.snapshotObservers() {
		o.WindowsUpdated(slices.Clone(windows))
		o.ApplicationsUpdated(slices.Clone(apps))
		if d, ok := o.(DeltaObserver); ok && (len(added) > 0 || len(removed) > 0) {
			d.WindowsChanged(added, removed)
		}
		if c, ok := o.(WindowCloseObserver); ok {
			for _, id := range removed {
				c.WindowClosed(id)
			}
		}
	}
}

func (m *Monitor) publishStates() {
	states := make(map[string]model.ApplicationState, len(m.states))
	for id, s := range m.states {
		states[id] = s
	}
	m.published.Store(&states)
}

// markUsed stamps LastUsed on the activated application's cached state
func (m *Monitor) markUsed(ev platform.LifecycleEvent) {
	bundleID := ev.BundleIdentifier
	if bundleID == "" {
		for _, app := range *m.apps.Load() {
			if app.ProcessID == ev.PID {
				bundleID = app.BundleIdentifier
				break
			}
		}
	}
	if bundleID == "" {
		return
	}

	state, ok := m.states[bundleID]
	if !ok {
		state = model.ApplicationState{
			BundleIdentifier: bundleID,
			IsEnabled:        m.registry.IsApplicationEnabled(bundleID),
		}
	}
	m.states[bundleID] = state.MarkUsed(m.now())
	m.publishStates()
}
