// Package registry owns the per-application profiles and the enabled set
// that gates which applications the monitor publishes.
package registry

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"sync"

	"github.com/bryanchriswhite/WindowAccordion/internal/logger"
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/rs/zerolog"
)

// ErrProfileNotFound is returned when an operation names an unknown profile
var ErrProfileNotFound = errors.New("profile not found")

// ErrInvalidProfile is returned when a profile fails validation
var ErrInvalidProfile = errors.New("invalid profile")

// Observer receives registry change notifications. Callbacks run on the
// goroutine that made the change and must not block.
type Observer interface {
	ProfileUpdated(p Profile)
	ProfileRemoved(bundleID string)
	EnabledSetChanged(enabled model.BundleSet)
}

// Options configures a Registry
type Options struct {
	// Store persists changes. Nil keeps the registry in memory.
	Store *Store
	// DefaultEnabled seeds the enabled set of a fresh registry
	DefaultEnabled []string
	// DefaultProfiles are added whenever missing. Nil uses DefaultProfiles().
	DefaultProfiles []Profile
}

// Registry holds application profiles and the enabled set. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	enabled  model.BundleSet

	store           *Store
	defaultEnabled  []string
	defaultProfiles []Profile

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int

	log *zerolog.Logger
}

// New creates a registry and loads persisted state. A missing or corrupt
// store falls back to defaults; load errors are logged, never returned.
func New(opts Options) *Registry {
	r := &Registry{
		profiles:        make(map[string]Profile),
		enabled:         model.NewBundleSet(),
		store:           opts.Store,
		defaultEnabled:  append([]string(nil), opts.DefaultEnabled...),
		defaultProfiles: opts.DefaultProfiles,
		observers:       make(map[int]Observer),
		log:             logger.WithComponent("registry"),
	}
	if r.defaultProfiles == nil {
		r.defaultProfiles = DefaultProfiles()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store == nil {
		r.seedDefaultsLocked()
		return r
	}

	doc, err := r.store.Load()
	switch {
	case err == nil:
		r.applyDocumentLocked(doc)
		r.addMissingDefaultsLocked()
	case errors.Is(err, os.ErrNotExist):
		r.log.Info().Str("path", r.store.Path()).Msg("Registry not found, creating with defaults")
		r.seedDefaultsLocked()
	default:
		r.log.Warn().Err(err).Str("path", r.store.Path()).Msg("Registry unreadable, using defaults")
		r.seedDefaultsLocked()
	}

	if err := r.saveLocked(); err != nil {
		r.log.Error().Err(err).Msg("Failed to save registry")
	}

	r.log.Info().
		Int("profiles", len(r.profiles)).
		Int("enabled", len(r.enabled)).
		Msg("Registry loaded")
	return r
}

func (r *Registry) seedDefaultsLocked() {
	r.profiles = make(map[string]Profile)
	r.enabled = model.NewBundleSet(r.defaultEnabled...)
	r.addMissingDefaultsLocked()
	for _, id := range r.defaultEnabled {
		if _, ok := r.profiles[id]; !ok {
			r.profiles[id] = NewProfile(id, "").normalize()
		}
	}
	r.syncProfilesLocked()
}

func (r *Registry) addMissingDefaultsLocked() {
	for _, p := range r.defaultProfiles {
		if _, ok := r.profiles[p.BundleIdentifier]; ok {
			continue
		}
		p = p.normalize()
		p.IsEnabled = r.enabled.Has(p.BundleIdentifier)
		r.profiles[p.BundleIdentifier] = p
	}
}

// applyDocumentLocked replaces state with doc. The enabled list is
// authoritative over each profile's own flag.
func (r *Registry) applyDocumentLocked(doc *Document) {
	r.profiles = make(map[string]Profile, len(doc.Profiles))
	for _, p := range doc.Profiles {
		r.profiles[p.BundleIdentifier] = p
	}
	r.enabled = model.NewBundleSet(doc.Enabled...)
	r.syncProfilesLocked()
}

// syncProfilesLocked makes every profile's IsEnabled agree with the enabled set
func (r *Registry) syncProfilesLocked() {
	for id, p := range r.profiles {
		p.IsEnabled = r.enabled.Has(id)
		r.profiles[id] = p
	}
}

func (r *Registry) documentLocked() Document {
	doc := Document{
		Enabled:  r.enabled.Sorted(),
		Profiles: r.sortedProfilesLocked(func(Profile) bool { return true }),
	}
	return doc
}

func (r *Registry) saveLocked() error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(r.documentLocked())
}

// Subscribe registers o for change notifications. The returned function
// unsubscribes; calling it more than once is harmless.
func (r *Registry) Subscribe(o Observer) func() {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	id := r.nextObsID
	r.nextObsID++
	r.observers[id] = o

	var once sync.Once
	return func() {
		once.Do(func() {
			r.obsMu.Lock()
			defer r.obsMu.Unlock()
			delete(r.observers, id)
		})
	}
}

func (r *Registry) snapshotObservers() []Observer {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	ids := make([]int, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, r.observers[id])
	}
	return obs
}

func (r *Registry) notifyUpdated(p Profile) {
	for _, o := range r.snapshotObservers() {
		o.ProfileUpdated(p)
	}
}

func (r *Registry) notifyRemoved(id string) {
	for _, o := range r.snapshotObservers() {
		o.ProfileRemoved(id)
	}
}

func (r *Registry) notifyEnabled(enabled model.BundleSet) {
	for _, o := range r.snapshotObservers() {
		o.EnabledSetChanged(enabled.Clone())
	}
}

// IsApplicationEnabled reports whether bundleID is in the enabled set
func (r *Registry) IsApplicationEnabled(bundleID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled.Has(bundleID)
}

// EnabledApplications returns a copy of the enabled set
func (r *Registry) EnabledApplications() model.BundleSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled.Clone()
}

// Profile returns the profile for bundleID
func (r *Registry) Profile(bundleID string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[bundleID]
	return p, ok
}

// Profiles returns every profile, highest priority first
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedProfilesLocked(func(Profile) bool { return true })
}

// EnabledProfiles returns enabled profiles, highest priority first
func (r *Registry) EnabledProfiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedProfilesLocked(func(p Profile) bool { return p.IsEnabled })
}

func (r *Registry) sortedProfilesLocked(keep func(Profile) bool) []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].BundleIdentifier < out[j].BundleIdentifier
	})
	return out
}

// ProfileFor returns the stored profile for app, or the profile that would be
// created for it: a built-in default if one exists, otherwise a basic profile
// enabled when app is in the default enabled list. Nothing is stored.
func (r *Registry) ProfileFor(app model.Application) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[app.BundleIdentifier]; ok {
		return p
	}
	return r.newProfileForLocked(app)
}

func (r *Registry) newProfileForLocked(app model.Application) Profile {
	for _, p := range r.defaultProfiles {
		if p.BundleIdentifier == app.BundleIdentifier {
			p = p.normalize()
			p.IsEnabled = r.isDefaultEnabled(app.BundleIdentifier)
			return p
		}
	}
	p := NewProfile(app.BundleIdentifier, app.DisplayName).normalize()
	p.IsEnabled = r.isDefaultEnabled(app.BundleIdentifier)
	return p
}

func (r *Registry) isDefaultEnabled(bundleID string) bool {
	for _, id := range r.defaultEnabled {
		if id == bundleID {
			return true
		}
	}
	return false
}

// AddProfile stores p, replacing any profile with the same bundle identifier.
// p.IsEnabled updates the enabled set.
func (r *Registry) AddProfile(p Profile) error {
	return r.putProfile(p, false)
}

// UpdateProfile stores p and always announces the enabled set, even when it
// did not change
func (r *Registry) UpdateProfile(p Profile) error {
	return r.putProfile(p, true)
}

func (r *Registry) putProfile(p Profile, announceEnabled bool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.normalize()

	r.mu.Lock()
	wasEnabled := r.enabled.Has(p.BundleIdentifier)
	if p.IsEnabled {
		r.enabled.Add(p.BundleIdentifier)
	} else {
		r.enabled.Remove(p.BundleIdentifier)
	}
	r.profiles[p.BundleIdentifier] = p
	enabled := r.enabled.Clone()
	err := r.saveLocked()
	r.mu.Unlock()

	r.notifyUpdated(p)
	if announceEnabled || wasEnabled != p.IsEnabled {
		r.notifyEnabled(enabled)
	}
	return err
}

// RemoveProfile deletes the profile and drops it from the enabled set
func (r *Registry) RemoveProfile(bundleID string) error {
	r.mu.Lock()
	if _, ok := r.profiles[bundleID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProfileNotFound, bundleID)
	}
	delete(r.profiles, bundleID)
	r.enabled.Remove(bundleID)
	enabled := r.enabled.Clone()
	err := r.saveLocked()
	r.mu.Unlock()

	r.notifyRemoved(bundleID)
	r.notifyEnabled(enabled)
	return err
}

// Enable adds bundleID to the enabled set. A profile without a stored record
// is enabled all the same.
func (r *Registry) Enable(bundleID string) error {
	return r.setEnabled([]string{bundleID}, true)
}

// Disable removes bundleID from the enabled set
func (r *Registry) Disable(bundleID string) error {
	return r.setEnabled([]string{bundleID}, false)
}

// EnableMany enables every listed application with a single notification
func (r *Registry) EnableMany(bundleIDs []string) error {
	return r.setEnabled(bundleIDs, true)
}

// Toggle flips bundleID and reports whether it is now enabled
func (r *Registry) Toggle(bundleID string) (bool, error) {
	if r.IsApplicationEnabled(bundleID) {
		return false, r.Disable(bundleID)
	}
	return true, r.Enable(bundleID)
}

func (r *Registry) setEnabled(bundleIDs []string, on bool) error {
	r.mu.Lock()
	for _, id := range bundleIDs {
		if id == "" {
			continue
		}
		if on {
			r.enabled.Add(id)
		} else {
			r.enabled.Remove(id)
		}
		if p, ok := r.profiles[id]; ok {
			p.IsEnabled = on
			r.profiles[id] = p
		}
	}
	enabled := r.enabled.Clone()
	err := r.saveLocked()
	r.mu.Unlock()

	r.notifyEnabled(enabled)
	return err
}

// DisableAll empties the enabled set
func (r *Registry) DisableAll() error {
	r.mu.Lock()
	r.enabled = model.NewBundleSet()
	r.syncProfilesLocked()
	err := r.saveLocked()
	r.mu.Unlock()

	r.notifyEnabled(model.NewBundleSet())
	return err
}

// Discover registers a profile for every application that has none and
// returns the profiles it created
func (r *Registry) Discover(apps []model.Application) ([]Profile, error) {
	r.mu.Lock()
	var added []Profile
	for _, app := range apps {
		if app.BundleIdentifier == "" {
			continue
		}
		if _, ok := r.profiles[app.BundleIdentifier]; ok {
			continue
		}
		p := r.newProfileForLocked(app)
		r.profiles[p.BundleIdentifier] = p
		if p.IsEnabled {
			r.enabled.Add(p.BundleIdentifier)
		}
		added = append(added, p)
	}
	enabled := r.enabled.Clone()
	var err error
	if len(added) > 0 {
		err = r.saveLocked()
	}
	r.mu.Unlock()

	for _, p := range added {
		r.notifyUpdated(p)
	}
	r.notifyEnabled(enabled)

	if len(added) > 0 {
		r.log.Info().Int("added", len(added)).Msg("Discovered applications")
	}
	return added, err
}

// ResetToDefaults discards every profile and restores the built-in state
func (r *Registry) ResetToDefaults() error {
	r.mu.Lock()
	before := r.profiles
	r.seedDefaultsLocked()
	var removed []string
	for id := range before {
		if _, ok := r.profiles[id]; !ok {
			removed = append(removed, id)
		}
	}
	enabled := r.enabled.Clone()
	err := r.saveLocked()
	r.mu.Unlock()

	sort.Strings(removed)
	for _, id := range removed {
		r.notifyRemoved(id)
	}
	r.notifyEnabled(enabled)
	r.log.Info().Msg("Registry reset to defaults")
	return err
}

// Reload re-reads the store after an external edit. It is a no-op when the
// file still holds what this registry last wrote.
func (r *Registry) Reload() error {
	if r.store == nil || !r.store.Changed() {
		return nil
	}

	doc, err := r.store.Load()
	if err != nil {
		if errors.Is(err, model.ErrPersistedStateCorrupt) {
			r.log.Warn().Err(err).Msg("Ignoring corrupt registry edit")
			return nil
		}
		return err
	}

	r.mu.Lock()
	before := r.profiles
	beforeEnabled := r.enabled
	r.applyDocumentLocked(doc)
	r.addMissingDefaultsLocked()

	var updated []Profile
	var removed []string
	for id, p := range r.profiles {
		if old, ok := before[id]; !ok || !reflect.DeepEqual(old, p) {
			updated = append(updated, p)
		}
	}
	for id := range before {
		if _, ok := r.profiles[id]; !ok {
			removed = append(removed, id)
		}
	}
	enabledChanged := !setEqual(beforeEnabled, r.enabled)
	enabled := r.enabled.Clone()
	r.mu.Unlock()

	sort.Slice(updated, func(i, j int) bool { return updated[i].BundleIdentifier < updated[j].BundleIdentifier })
	sort.Strings(removed)
	for _, p := range updated {
		r.notifyUpdated(p)
	}
	for _, id := range removed {
		r.notifyRemoved(id)
	}
	if enabledChanged {
		r.notifyEnabled(enabled)
	}

	r.log.Info().
		Int("updated", len(updated)).
		Int("removed", len(removed)).
		Bool("enabled_changed", enabledChanged).
		Msg("Registry reloaded")
	return nil
}

func setEqual(a, b model.BundleSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if !b.Has(id) {
			return false
		}
	}
	return true
}
