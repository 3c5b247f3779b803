package engine

import (
	"strings"
	"time"
)

// AutoStartPolicy decides when a configured start message fires.
type AutoStartPolicy string

const (
	// PolicyFirstVisit starts a conversation only when the user has no
	// threads yet, so a page reload for a returning user does not open a
	// fresh chat.
	PolicyFirstVisit AutoStartPolicy = "first-visit"
	// PolicyAlways starts a conversation on every bootstrap.
	PolicyAlways AutoStartPolicy = "always"
)

// ParsePolicy maps a configuration string onto a policy, defaulting to
// first-visit.
func ParsePolicy(s string) AutoStartPolicy {
	if AutoStartPolicy(strings.TrimSpace(s)) == PolicyAlways {
		return PolicyAlways
	}
	return PolicyFirstVisit
}

// AutoStartState enumerates controller states.
type AutoStartState int

const (
	AutoStartIdle AutoStartState = iota
	AutoStartCreating
	AutoStartSending
	AutoStartAwaiting
	AutoStartDone
)

// AutoStart drives the start-message flow: create a thread, open it, send
// the configured text visibly or invisibly, and for hidden sends keep echo
// suppression armed until the echo arrives or a bounded timeout passes.
type AutoStart struct {
	text        string
	hidden      bool
	policy      AutoStartPolicy
	echoTimeout time.Duration

	state   AutoStartState
	armedAt time.Time
	now     func() time.Time
}

// NewAutoStart builds a controller for one widget session.
func NewAutoStart(text string, hidden bool, policy AutoStartPolicy, echoTimeout time.Duration) *AutoStart {
	return &AutoStart{
		text:        strings.TrimSpace(text),
		hidden:      hidden,
		policy:      policy,
		echoTimeout: echoTimeout,
		now:         time.Now,
	}
}

// Configured reports whether a non-empty start message is present.
func (a *AutoStart) Configured() bool {
	return a != nil && a.text != ""
}

// Text returns the configured start message.
func (a *AutoStart) Text() string { return a.text }

// Hidden reports whether the start message is sent without a visible bubble.
func (a *AutoStart) Hidden() bool { return a.hidden }

// State returns the current controller state.
func (a *AutoStart) State() AutoStartState { return a.state }

// ShouldStart decides whether auto-start fires at bootstrap. A completed
// marker from a previous page load within the session always wins.
func (a *AutoStart) ShouldStart(threadCount int, alreadyCompleted bool) bool {
	if !a.Configured() || a.state != AutoStartIdle || alreadyCompleted {
		return false
	}
	if a.policy == PolicyAlways {
		return true
	}
	return threadCount == 0
}

// Begin moves Idle to Creating. A re-entrant trigger is rejected so the
// start message cannot be double-sent.
func (a *AutoStart) Begin() bool {
	if a.state != AutoStartIdle {
		return false
	}
	a.state = AutoStartCreating
	return true
}

// Sending records that the thread exists and the send is in flight.
func (a *AutoStart) Sending() {
	if a.state == AutoStartCreating {
		a.state = AutoStartSending
	}
}

// Sent completes the flow. Visible sends finish immediately; hidden sends
// arm echo suppression and wait.
func (a *AutoStart) Sent() {
	if a.state != AutoStartSending {
		return
	}
	if a.hidden {
		a.state = AutoStartAwaiting
		a.armedAt = a.now()
		return
	}
	a.state = AutoStartDone
}

// Fail abandons the flow so the widget falls back to the thread list
// instead of being stuck mid-transition.
func (a *AutoStart) Fail() {
	a.state = AutoStartDone
}

// Armed reports whether hidden-echo suppression is active, force-finishing
// when the bounded wait has elapsed so the flag cannot suppress an
// unrelated later message with the same text.
func (a *AutoStart) Armed() bool {
	if a == nil || a.state != AutoStartAwaiting {
		return false
	}
	if a.now().Sub(a.armedAt) > a.echoTimeout {
		a.state = AutoStartDone
		return false
	}
	return true
}

// ObserveEcho matches a live event text against the start message while
// armed. A match disarms suppression and reports that the event must be
// swallowed.
func (a *AutoStart) ObserveEcho(text string) bool {
	if !a.Armed() {
		return false
	}
	if normalizeText(text) != normalizeText(a.text) {
		return false
	}
	a.state = AutoStartDone
	return true
}

// HiddenStartFilter describes the history-suppression rule while the
// hidden flow is configured for this session.
func (a *AutoStart) HiddenStartFilter() HiddenStart {
	if a == nil || !a.Configured() || !a.hidden {
		return HiddenStart{}
	}
	return HiddenStart{Active: true, Text: a.text}
}
