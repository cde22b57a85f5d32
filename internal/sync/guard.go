package sync

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/victorvcruz/quark/internal/clipboard"
)

type GuardState int

const (
	GuardIdle GuardState = iota
	GuardAwaitingSelfConfirm
	GuardSuppressed
)

func (s GuardState) String() string {
	switch s {
	case GuardAwaitingSelfConfirm:
		return "awaiting_self_confirm"
	case GuardSuppressed:
		return "suppressed"
	default:
		return "idle"
	}
}

// Guard decides whether the next observed clipboard change was caused by
// this process. A local write leaves it awaiting confirmation until the next
// observation; a remote apply suppresses observation for a fixed window.
// Suppression is derived from the clock on every query, so it always
// expires.
//
// Guard is not safe for concurrent use; the coordinator owns it.
type Guard struct {
	clock         clock.Clock
	window        time.Duration
	pending       bool
	written       clipboard.Snapshot
	suppressUntil time.Time
}

func NewGuard(clk clock.Clock, window time.Duration) *Guard {
	if clk == nil {
		clk = clock.New()
	}
	return &Guard{clock: clk, window: window}
}

// BeginWrite records a local write of s.
func (g *Guard) BeginWrite(s clipboard.Snapshot) {
	g.pending = true
	g.written = s
}

// Suppress starts the remote-apply window. Any pending self write is
// superseded.
func (g *Guard) Suppress() {
	g.pending = false
	g.written = clipboard.Snapshot{}
	g.suppressUntil = g.clock.Now().Add(g.window)
}

func (g *Guard) Suppressed() bool {
	return g.clock.Now().Before(g.suppressUntil)
}

func (g *Guard) State() GuardState {
	switch {
	case g.Suppressed():
		return GuardSuppressed
	case g.pending:
		return GuardAwaitingSelfConfirm
	default:
		return GuardIdle
	}
}

func (g *Guard) Pending() bool {
	return g.pending
}

// Confirm resolves a pending write against the observed snapshot and returns
// to idle. It reports whether the observation is the write itself; false
// means the change is external and must be processed.
func (g *Guard) Confirm(observed clipboard.Snapshot) bool {
	if !g.pending {
		return false
	}
	match := observed.Equal(g.written)
	g.pending = false
	g.written = clipboard.Snapshot{}
	return match
}
