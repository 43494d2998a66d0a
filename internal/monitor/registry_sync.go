package monitor

import (
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
)

// registryObserver records registry notifications and wakes the queue. It
// runs on whichever goroutine changed the registry, so it never touches the
// state cache directly.
type registryObserver struct{ m *Monitor }

func (o registryObserver) ProfileUpdated(p registry.Profile) {
	pr := &o.m.pending
	pr.mu.Lock()
	if pr.profiles == nil {
		pr.profiles = make(map[string]registry.Profile)
	}
	pr.profiles[p.BundleIdentifier] = p
	delete(pr.removed, p.BundleIdentifier)
	pr.mu.Unlock()
	o.m.enqueue(task{kind: taskRegistry})
}

func (o registryObserver) ProfileRemoved(bundleID string) {
	pr := &o.m.pending
	pr.mu.Lock()
	if pr.removed == nil {
		pr.removed = make(map[string]struct{})
	}
	pr.removed[bundleID] = struct{}{}
	delete(pr.profiles, bundleID)
	pr.mu.Unlock()
	o.m.enqueue(task{kind: taskRegistry})
}

func (o registryObserver) EnabledSetChanged(enabled model.BundleSet) {
	pr := &o.m.pending
	pr.mu.Lock()
	pr.enabled = enabled.Clone()
	pr.mu.Unlock()
	o.m.enqueue(task{kind: taskRegistry})
}

// applyRegistryChanges merges pending notifications into the state cache.
// Entries are updated in place; nothing is dropped, so LastUsed survives.
func (m *Monitor) applyRegistryChanges() {
	pr := &m.pending
	pr.mu.Lock()
	profiles, removed, enabled := pr.profiles, pr.removed, pr.enabled
	pr.profiles, pr.removed, pr.enabled = nil, nil, nil
	pr.mu.Unlock()

	if len(profiles) == 0 && len(removed) == 0 && enabled == nil {
		return
	}

	for id, p := range profiles {
		s, ok := m.states[id]
		if !ok {
			s = model.ApplicationState{BundleIdentifier: id}
		}
		s.IsEnabled = p.IsEnabled
		s.Priority = p.Priority
		m.states[id] = s
	}
	for id := range removed {
		if s, ok := m.states[id]; ok {
			s.IsEnabled = false
			m.states[id] = s
		}
	}
	if enabled != nil {
		mergeEnabled(m.states, enabled)
	}
	m.publishStates()
}

// mergeEnabled marks cached entries enabled or disabled by membership and adds
// entries for members not yet cached
func mergeEnabled(states map[string]model.ApplicationState, enabled model.BundleSet) {
	for id, s := range states {
		s.IsEnabled = enabled.Has(id)
		states[id] = s
	}
	for id := range enabled {
		if _, ok := states[id]; !ok {
			states[id] = model.ApplicationState{BundleIdentifier: id, IsEnabled: true}
		}
	}
}
