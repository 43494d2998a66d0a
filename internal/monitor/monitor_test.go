package monitor

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform/platformtest"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()                  { t.stopped.Store(true) }

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) Last() *manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickers[len(f.tickers)-1]
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	m       *Monitor
	desktop *platformtest.Desktop
	reg     *registry.Registry
	tickers *tickerFactory
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	logger.SetOutput(io.Discard)

	h := &harness{
		desktop: platformtest.NewDesktop(),
		reg:     registry.New(registry.Options{DefaultProfiles: []registry.Profile{}}),
		tickers: &tickerFactory{},
		done:    make(chan error, 1),
	}
	opts := Options{
		Provider:    h.desktop.Provider(),
		Registry:    h.reg,
		LaunchDelay: 0,
		Filter:      Filter{MinWindowSize: DefaultMinWindowSize},
		NewTicker:   h.tickers.New,
		Now:         func() time.Time { return fixedNow },
	}
	for _, c := range configure {
		c(&opts)
	}

	m, err := New(opts)
	require.NoError(t, err)
	h.m = m

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- m.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) refresh(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.m.RefreshNow(ctx))
}

// scenarioDesktop loads five windows across two processes, one undersized
func scenarioDesktop(d *platformtest.Desktop) {
	d.SetApplications(
		platform.RawApplication{BundleIdentifier: "app.a", DisplayName: "Alpha", PID: 100},
		platform.RawApplication{BundleIdentifier: "app.b", DisplayName: "Beta", PID: 200},
	)
	d.SetWindows(
		rawWindow(1, 100, "Report", 800, 600),
		rawWindow(2, 200, "Inbox", 800, 600),
		rawWindow(3, 100, "Notes", 640, 480),
		rawWindow(4, 100, "Badge", 30, 30),
		rawWindow(5, 200, "Calendar", 1024, 768),
	)
}

func TestNewRequiresCollaborators(t *testing.T) {
	logger.SetOutput(io.Discard)
	reg := registry.New(registry.Options{})

	_, err := New(Options{Registry: reg})
	assert.Error(t, err)

	p := platformtest.NewDesktop().Provider()
	p.Control = nil
	_, err = New(Options{Provider: p, Registry: reg})
	assert.ErrorContains(t, err, "control surface")

	_, err = New(Options{Provider: platformtest.NewDesktop().Provider()})
	assert.ErrorContains(t, err, "registry")
}

func TestEndToEndScenario(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)
	require.NoError(t, h.reg.Enable("app.a"))

	h.refresh(t)

	windows := h.m.Windows()
	assert.Equal(t, []model.WindowID{3, 1}, ids(windows), "app.a windows without the undersized badge, by title")
	for _, w := range windows {
		assert.Equal(t, "Alpha", w.Application.DisplayName)
	}

	apps := h.m.Applications()
	require.Len(t, apps, 2)
	assert.Equal(t, "Alpha", apps[0].DisplayName)
	assert.Equal(t, "Beta", apps[1].DisplayName)

	groups := h.m.Groups()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Windows, 2)

	w, ok := h.m.Window(1)
	require.True(t, ok)
	assert.Equal(t, "Report", w.Title)
}

func TestStartRequiresPermission(t *testing.T) {
	h := newHarness(t)
	h.desktop.SetPermission(false)

	assert.False(t, h.m.Start())
	assert.False(t, h.m.IsMonitoring())
	assert.Zero(t, h.tickers.Count())
	assert.Equal(t, 1, h.desktop.Prompts())

	// Denied again: still idle, no second prompt
	assert.False(t, h.m.Start())
	assert.Equal(t, 1, h.desktop.Prompts())

	h.desktop.SetPermission(true)
	assert.True(t, h.m.Start())
	assert.Equal(t, 1, h.desktop.Prompts())
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)

	assert.True(t, h.m.Start())
	assert.True(t, h.m.Start())
	assert.True(t, h.m.IsMonitoring())
	assert.Equal(t, 1, h.tickers.Count())

	// The initial tick runs without waiting for the ticker
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 4 }, waitFor, 10*time.Millisecond)
}

func TestScheduledTicks(t *testing.T) {
	h := newHarness(t)
	require.True(t, h.m.Start())
	assert.Eventually(t, func() bool { return h.desktop.SnapshotCalls() >= 1 }, waitFor, 10*time.Millisecond)

	scenarioDesktop(h.desktop)
	h.tickers.Last().ch <- time.Now()
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 4 }, waitFor, 10*time.Millisecond)

	ticker := h.tickers.Last()
	h.m.Stop()
	assert.False(t, h.m.IsMonitoring())
	assert.Eventually(t, ticker.stopped.Load, waitFor, 10*time.Millisecond)

	// Restarting creates a fresh cadence
	require.True(t, h.m.Start())
	assert.Equal(t, 2, h.tickers.Count())
}

// gatedSnapshotter blocks inside SnapshotWindows until released
type gatedSnapshotter struct {
	*platformtest.Desktop
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSnapshotter) SnapshotWindows() []platform.RawWindow {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Desktop.SnapshotWindows()
}

func TestStopDiscardsInFlightTick(t *testing.T) {
	gate := &gatedSnapshotter{
		Desktop: platformtest.NewDesktop(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	scenarioDesktop(gate.Desktop)

	var updates atomic.Int32
	h := newHarness(t, func(o *Options) {
		p := gate.Desktop.Provider()
		p.Windows = gate
		o.Provider = p
	})
	h.m.Subscribe(ObserverFuncs{OnWindows: func([]model.Window) { updates.Add(1) }})

	require.True(t, h.m.Start())
	select {
	case <-gate.entered:
	case <-time.After(waitFor):
		t.Fatal("tick never reached the snapshotter")
	}

	h.m.Stop()
	close(gate.release)

	// The forced refresh queues behind the stale tick, so once it returns
	// the stale result has been handled
	h.refresh(t)
	assert.Equal(t, int32(1), updates.Load(), "only the forced refresh was applied")
	assert.Len(t, h.m.Windows(), 4)
}

func TestObserversReceiveFullListsAndClosures(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)

	var mu sync.Mutex
	var lastWindows []model.Window
	var lastApps []model.Application
	var closed []model.WindowID
	var deltas [][2][]model.WindowID
	unsubscribe := h.m.Subscribe(ObserverFuncs{
		OnWindows: func(w []model.Window) {
			mu.Lock()
			defer mu.Unlock()
			lastWindows = w
		},
		OnApplications: func(a []model.Application) {
			mu.Lock()
			defer mu.Unlock()
			lastApps = a
		},
		OnWindowClosed: func(id model.WindowID) {
			mu.Lock()
			defer mu.Unlock()
			closed = append(closed, id)
		},
		OnDelta: func(added, removed []model.WindowID) {
			mu.Lock()
			defer mu.Unlock()
			deltas = append(deltas, [2][]model.WindowID{added, removed})
		},
	})

	h.refresh(t)
	mu.Lock()
	assert.Len(t, lastWindows, 4)
	assert.Len(t, lastApps, 2)
	assert.Empty(t, closed)
	require.Len(t, deltas, 1)
	assert.Equal(t, []model.WindowID{1, 2, 3, 5}, deltas[0][0])
	mu.Unlock()

	h.desktop.SetWindows(
		rawWindow(1, 100, "Report", 800, 600),
		rawWindow(6, 200, "Inbox", 800, 600),
	)
	h.refresh(t)
	mu.Lock()
	assert.Len(t, lastWindows, 2, "observers get the full list, not a diff")
	assert.Equal(t, []model.WindowID{2, 3, 5}, closed)
	require.Len(t, deltas, 2)
	assert.Equal(t, []model.WindowID{6}, deltas[1][0])
	assert.Equal(t, []model.WindowID{2, 3, 5}, deltas[1][1])
	mu.Unlock()

	// Unchanged snapshot: full lists again, no delta
	h.refresh(t)
	mu.Lock()
	assert.Len(t, deltas, 2)
	mu.Unlock()

	unsubscribe()
	h.desktop.SetWindows()
	h.refresh(t)
	mu.Lock()
	assert.Len(t, lastWindows, 2)
	mu.Unlock()
}

func TestRegistryChangesMergeIntoStateCache(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)

	h.refresh(t)
	s, ok := h.m.ApplicationState("app.a")
	require.True(t, ok, "observed applications get a cache entry")
	assert.False(t, s.IsEnabled)

	require.NoError(t, h.reg.Enable("app.a"))
	h.refresh(t)
	s, _ = h.m.ApplicationState("app.a")
	assert.True(t, s.IsEnabled)
	assert.Equal(t, []model.WindowID{3, 1}, ids(h.m.Windows()))

	p := registry.NewProfile("app.b", "Beta")
	p.Priority = 7
	p.IsEnabled = true
	require.NoError(t, h.reg.UpdateProfile(p))
	h.refresh(t)
	s, _ = h.m.ApplicationState("app.b")
	assert.True(t, s.IsEnabled)
	assert.Equal(t, 7, s.Priority)

	require.NoError(t, h.reg.RemoveProfile("app.b"))
	h.refresh(t)
	s, ok = h.m.ApplicationState("app.b")
	require.True(t, ok, "merge keeps the entry")
	assert.False(t, s.IsEnabled)
	assert.Equal(t, 7, s.Priority, "unrelated metadata survives")

	require.NoError(t, h.reg.Enable("app.unseen"))
	h.refresh(t)
	s, ok = h.m.ApplicationState("app.unseen")
	require.True(t, ok)
	assert.True(t, s.IsEnabled)

	states := h.m.ApplicationStates()
	require.Len(t, states, 3)
	assert.Equal(t, "app.a", states[0].BundleIdentifier)
}

func TestRegistryChangeTriggersTickWhileMonitoring(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)
	require.True(t, h.m.Start())
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 4 }, waitFor, 10*time.Millisecond)

	require.NoError(t, h.reg.Enable("app.b"))
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 2 }, waitFor, 10*time.Millisecond)
}

func TestLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)
	require.True(t, h.m.Start())
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 4 }, waitFor, 10*time.Millisecond)

	// Activation without a bundle identifier resolves through the published apps
	assert.Eventually(t, func() bool {
		return h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Activated, PID: 200})
	}, waitFor, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		s, ok := h.m.ApplicationState("app.b")
		return ok && s.LastUsed != nil && s.LastUsed.Equal(fixedNow)
	}, waitFor, 10*time.Millisecond)

	h.desktop.SetWindows(rawWindow(1, 100, "Report", 800, 600))
	require.True(t, h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Terminated, PID: 200}))
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 1 }, waitFor, 10*time.Millisecond)

	h.desktop.SetWindows(
		rawWindow(1, 100, "Report", 800, 600),
		rawWindow(7, 100, "New", 800, 600),
	)
	require.True(t, h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Launched, PID: 100}))
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 2 }, waitFor, 10*time.Millisecond)

	h.m.Stop()
	assert.Eventually(t, func() bool {
		return !h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Terminated, PID: 100})
	}, waitFor, 10*time.Millisecond, "stop cancels lifecycle watchers")
}

func TestLaunchTickIsDeferred(t *testing.T) {
	const delay = 300 * time.Millisecond
	h := newHarness(t, func(o *Options) { o.LaunchDelay = delay })
	scenarioDesktop(h.desktop)
	require.True(t, h.m.Start())
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 4 }, waitFor, 10*time.Millisecond)

	// Terminate ticks at once
	calls := h.desktop.SnapshotCalls()
	assert.Eventually(t, func() bool {
		return h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Terminated, PID: 300})
	}, waitFor, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.desktop.SnapshotCalls() > calls }, delay/2, 5*time.Millisecond)

	// Launch waits for the delay
	h.desktop.SetWindows(
		rawWindow(1, 100, "Report", 800, 600),
		rawWindow(2, 200, "Inbox", 800, 600),
		rawWindow(3, 100, "Notes", 640, 480),
		rawWindow(5, 200, "Calendar", 1024, 768),
		rawWindow(6, 100, "Draft", 800, 600),
	)
	calls = h.desktop.SnapshotCalls()
	require.True(t, h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Launched, PID: 100}))
	assert.Never(t, func() bool { return h.desktop.SnapshotCalls() > calls }, delay/2, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(h.m.Windows()) == 5 }, waitFor, 10*time.Millisecond)

	// Stopping before the delay elapses cancels the deferred tick
	calls = h.desktop.SnapshotCalls()
	require.True(t, h.desktop.Emit(platform.LifecycleEvent{Kind: platform.Launched, PID: 100}))
	h.m.Stop()
	assert.Never(t, func() bool { return h.desktop.SnapshotCalls() > calls }, 2*delay, 10*time.Millisecond)
}

func TestRegistryChangeSurvivesDroppedWakeUp(t *testing.T) {
	logger.SetOutput(io.Discard)
	reg := registry.New(registry.Options{DefaultProfiles: []registry.Profile{}})
	m, err := New(Options{
		Provider:  platformtest.NewDesktop().Provider(),
		Registry:  reg,
		QueueSize: 1,
	})
	require.NoError(t, err)
	defer m.unsubscribe()

	// Occupy the only slot so the registry wake-up is dropped
	m.enqueue(task{kind: taskTick, gen: m.generation.Load()})
	require.NoError(t, reg.Enable("app.b"))
	require.Len(t, m.tasks, 1)

	m.handle(<-m.tasks)
	s, ok := m.ApplicationState("app.b")
	require.True(t, ok)
	assert.True(t, s.IsEnabled)
}

func TestTickRecoversFromPanics(t *testing.T) {
	h := newHarness(t)
	scenarioDesktop(h.desktop)

	var calls atomic.Int32
	h.m.Subscribe(ObserverFuncs{OnWindows: func([]model.Window) {
		if calls.Add(1) == 1 {
			panic("observer bug")
		}
	}})

	h.refresh(t)
	h.refresh(t)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, h.m.Windows(), 4)
}

type panickingSnapshotter struct{}

func (panickingSnapshotter) SnapshotWindows() []platform.RawWindow { panic("snapshot exploded") }

func TestSnapshotFailureDegradesToEmpty(t *testing.T) {
	d := platformtest.NewDesktop()
	scenarioDesktop(d)
	h := newHarness(t, func(o *Options) {
		p := d.Provider()
		p.Windows = panickingSnapshotter{}
		o.Provider = p
	})

	h.refresh(t)
	assert.Empty(t, h.m.Windows())
	assert.Len(t, h.m.Applications(), 2)
}

type countingRegistry struct {
	*registry.Registry
	active atomic.Int32
}

func (c *countingRegistry) Subscribe(o registry.Observer) func() {
	c.active.Add(1)
	unsubscribe := c.Registry.Subscribe(o)
	return func() {
		c.active.Add(-1)
		unsubscribe()
	}
}

func TestRunUnsubscribesOnExit(t *testing.T) {
	logger.SetOutput(io.Discard)
	reg := &countingRegistry{Registry: registry.New(registry.Options{})}
	m, err := New(Options{Provider: platformtest.NewDesktop().Provider(), Registry: reg, NewTicker: (&tickerFactory{}).New})
	require.NoError(t, err)
	assert.Equal(t, int32(1), reg.active.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	require.True(t, m.Start())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("run did not return")
	}
	assert.Equal(t, int32(0), reg.active.Load())
	assert.False(t, m.IsMonitoring())
}

func TestRefreshNowHonoursContext(t *testing.T) {
	logger.SetOutput(io.Discard)
	m, err := New(Options{
		Provider:  platformtest.NewDesktop().Provider(),
		Registry:  registry.New(registry.Options{}),
		QueueSize: 1,
	})
	require.NoError(t, err)

	// Nothing drains the queue
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.RefreshNow(ctx), context.DeadlineExceeded)
}
