package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// Provider bundles the OS collaborators the monitor and controller depend on
type Provider struct {
	Windows     WindowSnapshotter
	Apps        ApplicationEnumerator
	Permission  PermissionGate
	Activator   ProcessActivator
	Control     ControlSurface
	Lifecycle   []LifecycleSource
	CloseFunc   func() error
	BackendName string
}

// ErrUnsupported is returned when no backend is available for this OS
var ErrUnsupported = fmt.Errorf("no window backend available on %s/%s", runtime.GOOS, runtime.GOARCH)

// Validate reports missing collaborators. A missing collaborator is a
// startup configuration error.
func (p *Provider) Validate() error {
	var errs []error
	if p.Windows == nil {
		errs = append(errs, errors.New("window snapshotter not configured"))
	}
	if p.Apps == nil {
		errs = append(errs, errors.New("application enumerator not configured"))
	}
	if p.Permission == nil {
		errs = append(errs, errors.New("permission gate not configured"))
	}
	if p.Activator == nil {
		errs = append(errs, errors.New("process activator not configured"))
	}
	if p.Control == nil {
		errs = append(errs, errors.New("control surface not configured"))
	}
	return errors.Join(errs...)
}

// Close releases backend resources
func (p *Provider) Close() error {
	if p.CloseFunc == nil {
		return nil
	}
	return p.CloseFunc()
}
