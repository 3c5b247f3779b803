package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyAlways, ParsePolicy("always"))
	assert.Equal(t, PolicyFirstVisit, ParsePolicy("first-visit"))
	assert.Equal(t, PolicyFirstVisit, ParsePolicy(""))
	assert.Equal(t, PolicyFirstVisit, ParsePolicy("nonsense"))
}

func TestAutoStartShouldStart(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		policy    AutoStartPolicy
		threads   int
		completed bool
		want      bool
	}{
		{"no text configured", "", PolicyAlways, 0, false, false},
		{"first visit with no threads", "hi", PolicyFirstVisit, 0, false, true},
		{"first visit with existing threads", "hi", PolicyFirstVisit, 2, false, false},
		{"always fires despite threads", "hi", PolicyAlways, 2, false, true},
		{"completed marker wins", "hi", PolicyAlways, 0, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAutoStart(tc.text, false, tc.policy, time.Minute)
			assert.Equal(t, tc.want, a.ShouldStart(tc.threads, tc.completed))
		})
	}
}

func TestAutoStartBeginIsNotReentrant(t *testing.T) {
	a := NewAutoStart("hi", false, PolicyFirstVisit, time.Minute)
	assert.True(t, a.Begin())
	assert.False(t, a.Begin())
	assert.False(t, a.ShouldStart(0, false))
}

func TestAutoStartVisibleFlowFinishesOnSent(t *testing.T) {
	a := NewAutoStart("hi", false, PolicyFirstVisit, time.Minute)
	a.Begin()
	a.Sending()
	a.Sent()
	assert.Equal(t, AutoStartDone, a.State())
	assert.False(t, a.Armed())
}

func TestAutoStartHiddenFlowArmsAndMatchesEcho(t *testing.T) {
	a := NewAutoStart("I need help", true, PolicyFirstVisit, time.Minute)
	a.Begin()
	a.Sending()
	a.Sent()
	assert.Equal(t, AutoStartAwaiting, a.State())
	assert.True(t, a.Armed())

	assert.False(t, a.ObserveEcho("unrelated message"))
	assert.True(t, a.ObserveEcho("  i need help "))
	assert.Equal(t, AutoStartDone, a.State())

	// Once disarmed the same text passes through.
	assert.False(t, a.ObserveEcho("I need help"))
}

func TestAutoStartEchoSuppressExpires(t *testing.T) {
	a := NewAutoStart("hi", true, PolicyFirstVisit, 10*time.Second)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	a.Begin()
	a.Sending()
	a.Sent()
	assert.True(t, a.Armed())

	now = now.Add(11 * time.Second)
	assert.False(t, a.Armed())
	assert.Equal(t, AutoStartDone, a.State())
	assert.False(t, a.ObserveEcho("hi"))
}

func TestAutoStartHiddenStartFilter(t *testing.T) {
	visible := NewAutoStart("hi", false, PolicyFirstVisit, time.Minute)
	assert.False(t, visible.HiddenStartFilter().Active)

	hidden := NewAutoStart("hi", true, PolicyFirstVisit, time.Minute)
	filter := hidden.HiddenStartFilter()
	assert.True(t, filter.Active)
	assert.Equal(t, "hi", filter.Text)
}
