package game

import (
	"sync"
	"time"
)

// lane serializes mutating actions of one game.
type lane struct {
	mu sync.Mutex

	// guarded by lanes.mu
	refs     int
	lastUsed time.Time
}

// lanes indexes one lane per game id. Lanes of different games never contend
// beyond the short map lookup.
type lanes struct {
	mu  sync.Mutex
	m   map[string]*lane
	now func() time.Time
}

func newLanes(now func() time.Time) *lanes {
	return &lanes{
		m:   make(map[string]*lane),
		now: now,
	}
}

// acquire blocks until the caller owns the lane of gameID.
func (l *lanes) acquire(gameID string) *lane {
	l.mu.Lock()
	ln, ok := l.m[gameID]
	if !ok {
		ln = &lane{}
		l.m[gameID] = ln
	}
	ln.refs++
	l.mu.Unlock()

	ln.mu.Lock()
	return ln
}

func (l *lanes) release(ln *lane) {
	ln.mu.Unlock()

	l.mu.Lock()
	ln.refs--
	ln.lastUsed = l.now()
	l.mu.Unlock()
}

// prune drops lanes nobody holds or waits on that have been idle for at least idle.
func (l *lanes) prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for id, ln := range l.m {
		if ln.refs == 0 && now.Sub(ln.lastUsed) >= idle {
			delete(l.m, id)
			n++
		}
	}
	return n
}

func (l *lanes) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
