package monitor

import (
	"sort"

	"github.com/bryanchriswhite/WindowAccordion/internal/model"
)

// Observer receives the full published lists after every applied tick.
// Callbacks run on the goroutine draining the monitor's queue, so they must
// not call RefreshNow.
type Observer interface {
	WindowsUpdated(windows []model.Window)
	ApplicationsUpdated(apps []model.Application)
}

// WindowCloseObserver is implemented by observers that also want to hear
// about each window that disappeared since the previous tick
type WindowCloseObserver interface {
	WindowClosed(id model.WindowID)
}

// DeltaObserver is implemented by observers that want the added and removed
// window IDs of each tick. It is only called when something changed.
type DeltaObserver interface {
	WindowsChanged(added, removed []model.WindowID)
}

// ObserverFuncs adapts plain functions to Observer, WindowCloseObserver and
// DeltaObserver. Nil fields are skipped.
type ObserverFuncs struct {
	OnWindows      func([]model.Window)
	OnApplications func([]model.Application)
	OnWindowClosed func(model.WindowID)
	OnDelta        func(added, removed []model.WindowID)
}

func (f ObserverFuncs) WindowsUpdated(windows []model.Window) {
	if f.OnWindows != nil {
		f.OnWindows(windows)
	}
}

func (f ObserverFuncs) ApplicationsUpdated(apps []model.Application) {
	if f.OnApplications != nil {
		f.OnApplications(apps)
	}
}

func (f ObserverFuncs) WindowClosed(id model.WindowID) {
	if f.OnWindowClosed != nil {
		f.OnWindowClosed(id)
	}
}

func (f ObserverFuncs) WindowsChanged(added, removed []model.WindowID) {
	if f.OnDelta != nil {
		f.OnDelta(added, removed)
	}
}

// Subscribe registers o and returns a function that unsubscribes it
func (m *Monitor) Subscribe(o Observer) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = o
	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()
		delete(m.observers, id)
	}
}

func (m *Monitor) snapshotObservers() []Observer {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.observers[id])
	}
	return out
}

// diffWindowIDs returns IDs present only in next (added) and only in prev
// (removed), each in ascending order
func diffWindowIDs(prev, next []model.Window) (added, removed []model.WindowID) {
	prevIDs := model.WindowIDs(prev)
	nextIDs := model.WindowIDs(next)
	for id := range nextIDs {
		if _, ok := prevIDs[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range prevIDs {
		if _, ok := nextIDs[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed
}
