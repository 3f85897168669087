// Package agent implements the extension-side half of the tracking
// pipeline: the per-page activity timer, the per-tab flush relay, and the
// HTTP client both use to reach the activity ledger.
package agent

import (
	"sync"
	"time"

	"safenest-backend/internal/models"
)

const (
	tickInterval = 1 * time.Second

	// harmfulFlushSeconds is the exposure carried by the one immediate flush
	// fired when a harmful page stays open past the alert threshold. Without
	// it the backend would not see the crossing until page exit.
	harmfulFlushSeconds = 10
)

// FlushFunc receives the accumulated dwell time when the timer flushes.
type FlushFunc func(reason string, timeSpentSeconds int)

// ActivityTimer accumulates the wall-clock time a monitored page is visible.
// Time is only ever added by the periodic tick; interactions refresh the
// last-active mark without crediting time. All methods are safe for
// concurrent use.
type ActivityTimer struct {
	mu sync.Mutex

	now      func() time.Time
	interval time.Duration

	tracking    bool
	visible     bool
	accumulated time.Duration
	lastTick    time.Time
	lastActive  time.Time

	// harmful reports whether the session's cached classification flagged
	// the query, so the tick can decide on the immediate threshold flush.
	harmful func() bool
	flush   FlushFunc

	harmfulFlushSent  bool
	terminalFlushSent bool

	stopChan chan struct{}
}

func NewActivityTimer(flush FlushFunc, harmful func() bool) *ActivityTimer {
	return &ActivityTimer{
		now:      time.Now,
		interval: tickInterval,
		visible:  true,
		harmful:  harmful,
		flush:    flush,
	}
}

// Start resets the session and begins ticking. A second Start begins a fresh
// session, re-arming both flush guards.
func (t *ActivityTimer) Start() {
	t.mu.Lock()
	if t.stopChan != nil {
		close(t.stopChan)
	}
	now := t.now()
	t.tracking = true
	t.accumulated = 0
	t.lastTick = now
	t.lastActive = now
	t.harmfulFlushSent = false
	t.terminalFlushSent = false
	stop := make(chan struct{})
	t.stopChan = stop
	t.mu.Unlock()

	go t.run(stop)
}

// Stop cancels the tick goroutine without flushing.
func (t *ActivityTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopChan != nil {
		close(t.stopChan)
		t.stopChan = nil
	}
	t.tracking = false
}

func (t *ActivityTimer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.tick(t.now())
		}
	}
}

// tick credits the elapsed wall-clock delta since the previous tick while
// the page is visible, then checks the once-per-session threshold flush.
func (t *ActivityTimer) tick(now time.Time) {
	var fire bool

	t.mu.Lock()
	if t.tracking && t.visible {
		t.accumulated += now.Sub(t.lastTick)
	}
	t.lastTick = now

	if t.tracking && !t.harmfulFlushSent &&
		t.elapsedSecondsLocked() >= harmfulFlushSeconds &&
		t.harmful != nil && t.harmful() {
		t.harmfulFlushSent = true
		fire = true
	}
	t.mu.Unlock()

	if fire && t.flush != nil {
		t.flush(models.FlushReasonHarmfulQuery, harmfulFlushSeconds)
	}
}

// SetVisible handles page visibility transitions. Going hidden credits the
// in-flight delta up to this instant and freezes accumulation; becoming
// visible resumes from now. Browsers can repeat visibilitychange events, so
// a call that does not change state is a no-op and keeps the in-flight delta.
func (t *ActivityTimer) SetVisible(visible bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if visible == t.visible {
		return
	}

	if !visible && t.tracking {
		t.accumulated += at.Sub(t.lastTick)
	}
	t.visible = visible
	t.lastTick = at
}

// Touch records user interaction (click, scroll, key, pointer, touch). It
// refreshes the last-active mark only; time is credited by ticks.
func (t *ActivityTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActive = t.now()
}

// ElapsedSeconds is the accumulated dwell time in whole seconds.
func (t *ActivityTimer) ElapsedSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedSecondsLocked()
}

func (t *ActivityTimer) elapsedSecondsLocked() int {
	return int(t.accumulated.Milliseconds() / 1000)
}

// FlushTerminal fires the session's single page-exit flush. Unload-style
// events arrive in unpredictable combinations, so the guard makes every call
// after the first a no-op.
func (t *ActivityTimer) FlushTerminal(reason string) {
	t.mu.Lock()
	if t.terminalFlushSent {
		t.mu.Unlock()
		return
	}
	t.terminalFlushSent = true

	// Credit the delta still in flight before reporting.
	now := t.now()
	if t.tracking && t.visible {
		t.accumulated += now.Sub(t.lastTick)
		t.lastTick = now
	}
	t.tracking = false
	seconds := t.elapsedSecondsLocked()
	t.mu.Unlock()

	if t.flush != nil {
		t.flush(reason, seconds)
	}
}
