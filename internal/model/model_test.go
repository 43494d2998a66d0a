package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationIdentity(t *testing.T) {
	a := Application{BundleIdentifier: "org.mozilla.firefox", DisplayName: "Firefox", ProcessID: 100}
	sameProcess := Application{BundleIdentifier: "org.mozilla.firefox", DisplayName: "Firefox Nightly", ProcessID: 100}
	relaunched := Application{BundleIdentifier: "org.mozilla.firefox", DisplayName: "Firefox", ProcessID: 200}

	assert.True(t, a.Equal(sameProcess))
	assert.False(t, a.Equal(relaunched))
	assert.Equal(t, a.Key(), sameProcess.Key())
}

func TestWindowIdentity(t *testing.T) {
	w1 := Window{ID: 7, Title: "one"}
	w2 := Window{ID: 7, Title: "two"}
	w3 := Window{ID: 8, Title: "one"}

	assert.True(t, w1.Equal(w2))
	assert.False(t, w1.Equal(w3))
}

func TestWindowDisplayTitle(t *testing.T) {
	assert.Equal(t, "Untitled", Window{}.DisplayTitle())
	assert.Equal(t, "Notes", Window{Title: "Notes"}.DisplayTitle())
}

func TestWindowIsMainWindow(t *testing.T) {
	tests := []struct {
		name string
		w    Window
		want bool
	}{
		{"visible main layer", Window{Layer: 0, IsVisible: true}, true},
		{"minimized", Window{Layer: 0, IsVisible: true, IsMinimized: true}, false},
		{"hidden", Window{Layer: 0}, false},
		{"floating layer", Window{Layer: 3, IsVisible: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.IsMainWindow())
		})
	}
}

func TestRectWithin(t *testing.T) {
	live := Rect{X: 100, Y: 100, Width: 800, Height: 600}

	assert.True(t, live.Within(Rect{X: 103, Y: 97, Width: 804, Height: 603}, 5))
	assert.False(t, live.Within(Rect{X: 100, Y: 100, Width: 820, Height: 600}, 5))
	assert.False(t, live.Within(Rect{X: 105, Y: 100, Width: 800, Height: 600}, 5), "a delta equal to the tolerance is not a match")
}

func TestRectSmallerThan(t *testing.T) {
	min := Size{Width: 50, Height: 50}

	assert.False(t, Rect{Width: 50, Height: 50}.SmallerThan(min))
	assert.True(t, Rect{Width: 49, Height: 400}.SmallerThan(min))
	assert.True(t, Rect{Width: 400, Height: 10}.SmallerThan(min))
}

func TestApplicationStateMarkUsed(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	s := ApplicationState{BundleIdentifier: "code", IsEnabled: true}

	used := s.MarkUsed(now)

	require.NotNil(t, used.LastUsed)
	assert.Equal(t, now, *used.LastUsed)
	assert.Nil(t, s.LastUsed, "original value is left untouched")
}

func TestBundleSet(t *testing.T) {
	s := NewBundleSet("b", "a")
	s.Add("c")
	s.Remove("b")

	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))
	assert.Equal(t, []string{"a", "c"}, s.Sorted())

	clone := s.Clone()
	clone.Add("z")
	assert.False(t, s.Has("z"))
}

func TestGroupByApplication(t *testing.T) {
	a := Application{BundleIdentifier: "app.a", DisplayName: "A", ProcessID: 1}
	b := Application{BundleIdentifier: "app.b", DisplayName: "B", ProcessID: 2}
	windows := []Window{
		{ID: 1, Application: a, IsVisible: true},
		{ID: 2, Application: b, IsVisible: true, IsMinimized: true},
		{ID: 3, Application: a, IsVisible: true, Layer: 0},
	}

	groups := GroupByApplication(windows)

	require.Len(t, groups, 2)
	assert.Equal(t, "app.a", groups[0].Application.BundleIdentifier)
	assert.Len(t, groups[0].Windows, 2)
	assert.Empty(t, groups[1].VisibleWindows())

	main, ok := groups[0].MainWindow()
	require.True(t, ok)
	assert.Equal(t, WindowID(1), main.ID)

	_, ok = groups[1].MainWindow()
	assert.False(t, ok)
}
