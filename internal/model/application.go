package model

import (
	"fmt"
	"image"
	"time"
)

// Application represents a running application observed during one poll.
//
// Two observations of the same process are the same application. A relaunch
// under a new process ID is a different application even though the bundle
// identifier is unchanged.
type Application struct {
	BundleIdentifier string      `json:"bundle_identifier" yaml:"bundle_identifier"`
	DisplayName      string      `json:"display_name" yaml:"display_name"`
	Icon             image.Image `json:"-" yaml:"-"`
	ProcessID        int         `json:"pid" yaml:"pid"`
}

// AppKey identifies an application instance
type AppKey struct {
	BundleIdentifier string
	ProcessID        int
}

// Key returns the identity of the application
func (a Application) Key() AppKey {
	return AppKey{BundleIdentifier: a.BundleIdentifier, ProcessID: a.ProcessID}
}

// Equal reports whether both values describe the same process of the same application
func (a Application) Equal(other Application) bool {
	return a.Key() == other.Key()
}

// String returns a short human readable description
func (a Application) String() string {
	return fmt.Sprintf("%s (%s, pid %d)", a.DisplayName, a.BundleIdentifier, a.ProcessID)
}

// ApplicationState is the per-application enablement metadata kept alongside
// the published model. Identity is the bundle identifier.
type ApplicationState struct {
	BundleIdentifier string     `json:"bundle_identifier" yaml:"bundle_identifier"`
	IsEnabled        bool       `json:"is_enabled" yaml:"is_enabled"`
	Priority         int        `json:"priority" yaml:"priority"`
	LastUsed         *time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`
}

// MarkUsed returns a copy of the state with LastUsed set to now
func (s ApplicationState) MarkUsed(now time.Time) ApplicationState {
	t := now
	s.LastUsed = &t
	return s
}
