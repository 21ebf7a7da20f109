package host

import (
	"sync"
	"time"
)

// ConnectionStatus is the tri-state liveness indicator surfaced to a
// caller (spec §4.7).
type ConnectionStatus int

const (
	NotConnected ConnectionStatus = iota
	Connected
	BoardNotResponding
)

func (s ConnectionStatus) String() string {
	switch s {
	case Connected:
		return "connected"
	case BoardNotResponding:
		return "boardNotResponding"
	default:
		return "notConnected"
	}
}

// liveness tracks the ping round trip described in spec §4.7/§8 S3: a ping
// goes out every PingInterval, and the board is declared unresponsive after
// missLimit consecutive pings go unanswered within the window.
type liveness struct {
	mu         sync.Mutex
	open       bool
	missed     int
	missLimit  int
	lastPongAt time.Time
}

func newLiveness(missLimit int) *liveness {
	if missLimit <= 0 {
		missLimit = 3
	}
	return &liveness{missLimit: missLimit}
}

func (l *liveness) opened() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	l.missed = 0
	l.lastPongAt = time.Time{}
}

func (l *liveness) closed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
}

// pingTimedOut records that a ping's deadline elapsed with no matching
// pong. The ping loop (Host.pingLoop) owns the actual timing.
func (l *liveness) pingTimedOut() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.missed++
}

func (l *liveness) pongReceived() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.missed = 0
	l.lastPongAt = time.Now()
}

func (l *liveness) lastPongSnapshot() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastPongAt
}

func (l *liveness) missedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.missed
}

func (l *liveness) status() ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return NotConnected
	}
	if l.missed >= l.missLimit {
		return BoardNotResponding
	}
	return Connected
}
