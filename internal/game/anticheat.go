package game

import (
	"fmt"
	"time"
)

const (
	// DefaultMaxSwitches is the tab-switch count that flags a round
	DefaultMaxSwitches = 3
	// WarningTTL is how long a tab-switch warning stays visible
	WarningTTL = 5 * time.Second
)

// NoticeKind classifies an anti-cheat notification
type NoticeKind string

const (
	NoticeWarning    NoticeKind = "warning"
	NoticeSuspicious NoticeKind = "suspicious"
)

// Notice is emitted when the page becomes visible again after a switch.
// A zero TTL means the notice stays until the round is reset.
type Notice struct {
	Kind    NoticeKind    `json:"kind"`
	Message string        `json:"message"`
	TTL     time.Duration `json:"ttl"`
}

// AntiCheat tracks page visibility for one round.
// It is not safe for concurrent use; Session guards it.
type AntiCheat struct {
	MaxSwitches int
	Switches    int
	Hidden      bool
	Suspicious  bool
	Warnings    []string

	enabled  bool
	lastWarn int
}

// NewAntiCheat returns a tracker flagging the round at maxSwitches
func NewAntiCheat(maxSwitches int) *AntiCheat {
	if maxSwitches <= 0 {
		maxSwitches = DefaultMaxSwitches
	}
	return &AntiCheat{MaxSwitches: maxSwitches}
}

// Enable starts observing visibility changes
func (a *AntiCheat) Enable() { a.enabled = true }

// Disable stops observing; the counters are kept
func (a *AntiCheat) Disable() {
	a.enabled = false
	a.Hidden = false
}

// Enabled reports whether transitions are being counted
func (a *AntiCheat) Enabled() bool { return a.enabled }

// Hide records the page going to the background
func (a *AntiCheat) Hide() {
	if !a.enabled || a.Hidden {
		return
	}
	a.Hidden = true
	a.Switches++
}

// Show records the page coming back and returns the notice to display, if any
func (a *AntiCheat) Show() *Notice {
	if !a.enabled || !a.Hidden {
		return nil
	}
	a.Hidden = false

	if a.Switches >= a.MaxSwitches {
		if a.Suspicious {
			return nil
		}
		a.Suspicious = true
		msg := fmt.Sprintf("Suspicious activity detected: %d tab switches this round. Rewards are halved.", a.Switches)
		a.Warnings = append(a.Warnings, msg)
		return &Notice{Kind: NoticeSuspicious, Message: msg}
	}

	if a.Switches > 0 && a.Switches > a.lastWarn {
		a.lastWarn = a.Switches
		msg := fmt.Sprintf("Tab switch detected (%d/%d). Stay on the page to keep full rewards.", a.Switches, a.MaxSwitches)
		a.Warnings = append(a.Warnings, msg)
		return &Notice{Kind: NoticeWarning, Message: msg, TTL: WarningTTL}
	}

	return nil
}

// Dismiss removes an expired warning
func (a *AntiCheat) Dismiss(msg string) bool {
	for i, w := range a.Warnings {
		if w == msg {
			a.Warnings = append(a.Warnings[:i], a.Warnings[i+1:]...)
			return true
		}
	}
	return false
}

// Reset clears the counter, suspicion and warnings for a new round
func (a *AntiCheat) Reset() {
	a.Switches = 0
	a.Hidden = false
	a.Suspicious = false
	a.Warnings = nil
	a.lastWarn = 0
}
