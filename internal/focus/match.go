package focus

import (
	"github.com/bryanchriswhite/WindowAccordion/internal/model"
	"github.com/bryanchriswhite/WindowAccordion/internal/platform"
)

// DefaultTolerance is the largest geometry drift, exclusive, still treated
// as the same window
const DefaultTolerance = 5

// Match picks the live window corresponding to target. An exact title match
// wins regardless of geometry; otherwise the first live window whose
// position and size are all within tolerance is chosen. With several
// candidates the first enumerated one wins, so the result depends on the
// order the control surface reports.
func Match(target model.Window, live []platform.LiveWindow, tolerance int) (platform.LiveWindow, bool) {
	if target.Title != "" {
		for _, lw := range live {
			if lw.Title == target.Title {
				return lw, true
			}
		}
	}
	for _, lw := range live {
		if lw.Bounds.Within(target.Bounds, tolerance) {
			return lw, true
		}
	}
	return platform.LiveWindow{}, false
}
