package model

import "errors"

var (
	// ErrPermissionDenied means the accessibility permission has not been granted
	ErrPermissionDenied = errors.New("accessibility permission denied")
	// ErrSnapshotUnavailable means the OS did not return a window or application snapshot
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrResolutionFailure means no live window matched a previously observed window
	ErrResolutionFailure = errors.New("no matching live window")
	// ErrActivationFailure means the owning process could not be brought to the foreground
	ErrActivationFailure = errors.New("failed to activate application")
	// ErrPersistedStateCorrupt means stored registry data could not be decoded
	ErrPersistedStateCorrupt = errors.New("persisted state corrupt")
)
