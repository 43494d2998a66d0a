package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultAccentColor is used for profiles created without one
const DefaultAccentColor = "#007AFF"

// WindowBehavior controls how an application's windows react when one of
// them is expanded
type WindowBehavior string

const (
	BehaviorNormal         WindowBehavior = "normal"
	BehaviorAutoCollapse   WindowBehavior = "auto_collapse"
	BehaviorStayExpanded   WindowBehavior = "stay_expanded"
	BehaviorMinimizeOthers WindowBehavior = "minimize_others"
)

// Valid reports whether b is a known behavior
func (b WindowBehavior) Valid() bool {
	switch b {
	case BehaviorNormal, BehaviorAutoCollapse, BehaviorStayExpanded, BehaviorMinimizeOthers:
		return true
	}
	return false
}

// Shortcut is a per-application key binding
type Shortcut struct {
	Key       string   `json:"key" yaml:"key"`
	Modifiers []string `json:"modifiers,omitempty" yaml:"modifiers,omitempty"`
	Action    string   `json:"action" yaml:"action"`
}

// Profile is the per-application configuration record
type Profile struct {
	BundleIdentifier string         `json:"bundle_identifier" yaml:"bundle_identifier"`
	DisplayName      string         `json:"display_name" yaml:"display_name"`
	AccentColorHex   string         `json:"accent_color" yaml:"accent_color"`
	Shortcuts        []Shortcut     `json:"shortcuts,omitempty" yaml:"shortcuts,omitempty"`
	WindowBehavior   WindowBehavior `json:"window_behavior" yaml:"window_behavior"`
	ShowPreviews     bool           `json:"show_previews" yaml:"show_previews"`
	IsEnabled        bool           `json:"enabled" yaml:"enabled"`
	Priority         int            `json:"priority" yaml:"priority"`
}

// NewProfile returns a disabled profile with default presentation
func NewProfile(bundleID, displayName string) Profile {
	return Profile{
		BundleIdentifier: bundleID,
		DisplayName:      displayName,
		AccentColorHex:   DefaultAccentColor,
		WindowBehavior:   BehaviorNormal,
	}
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// normalize fills unset presentation fields
func (p Profile) normalize() Profile {
	if p.DisplayName == "" {
		p.DisplayName = displayNameFromBundle(p.BundleIdentifier)
	}
	if p.AccentColorHex == "" {
		p.AccentColorHex = DefaultAccentColor
	}
	if p.WindowBehavior == "" {
		p.WindowBehavior = BehaviorNormal
	}
	return p
}

// Validate checks a profile before it is stored
func (p Profile) Validate() error {
	if strings.TrimSpace(p.BundleIdentifier) == "" {
		return fmt.Errorf("%w: no bundle identifier", ErrInvalidProfile)
	}
	if p.AccentColorHex != "" && !hexColorPattern.MatchString(p.AccentColorHex) {
		return fmt.Errorf("%w: %s: accent color %q", ErrInvalidProfile, p.BundleIdentifier, p.AccentColorHex)
	}
	if p.WindowBehavior != "" && !p.WindowBehavior.Valid() {
		return fmt.Errorf("%w: %s: window behavior %q", ErrInvalidProfile, p.BundleIdentifier, p.WindowBehavior)
	}
	return nil
}

// displayNameFromBundle derives a readable name from the last dotted
// component, e.g. "org.gnome.nautilus" -> "Nautilus"
func displayNameFromBundle(bundleID string) string {
	name := bundleID
	if i := strings.LastIndex(bundleID, "."); i >= 0 && i < len(bundleID)-1 {
		name = bundleID[i+1:]
	}
	if name == "" {
		return bundleID
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// DefaultProfiles returns the built-in profiles for well-known applications
func DefaultProfiles() []Profile {
	return []Profile{
		{
			BundleIdentifier: "libreoffice-writer",
			DisplayName:      "LibreOffice Writer",
			AccentColorHex:   "#2B579A",
			WindowBehavior:   BehaviorNormal,
			ShowPreviews:     true,
		},
		{
			BundleIdentifier: "gimp",
			DisplayName:      "GIMP",
			AccentColorHex:   "#31A8FF",
			WindowBehavior:   BehaviorNormal,
			ShowPreviews:     true,
		},
		{
			BundleIdentifier: "code",
			DisplayName:      "Visual Studio Code",
			AccentColorHex:   "#007ACC",
			WindowBehavior:   BehaviorNormal,
		},
		{
			BundleIdentifier: "firefox",
			DisplayName:      "Firefox",
			AccentColorHex:   "#FF7139",
			WindowBehavior:   BehaviorNormal,
		},
		{
			BundleIdentifier: "google-chrome",
			DisplayName:      "Google Chrome",
			AccentColorHex:   "#4285F4",
			WindowBehavior:   BehaviorNormal,
		},
	}
}
