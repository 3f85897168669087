package agent

import (
	"testing"
	"time"

	"safenest-backend/internal/models"
)

type flushRecorder struct {
	reasons []string
	seconds []int
}

func (f *flushRecorder) record(reason string, timeSpentSeconds int) {
	f.reasons = append(f.reasons, reason)
	f.seconds = append(f.seconds, timeSpentSeconds)
}

// newManualTimer builds a timer driven by explicit tick calls instead of the
// background goroutine, with a controllable clock.
func newManualTimer(t *testing.T, flush FlushFunc, harmful func() bool) (*ActivityTimer, *time.Time) {
	t.Helper()

	current := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	timer := NewActivityTimer(flush, harmful)
	timer.now = func() time.Time { return current }

	timer.tracking = true
	timer.lastTick = current
	timer.lastActive = current

	return timer, &current
}

func (t *ActivityTimer) advanceAndTick(current *time.Time, d time.Duration) {
	*current = current.Add(d)
	t.tick(*current)
}

func TestTimerAccumulatesWhileVisible(t *testing.T) {
	timer, current := newManualTimer(t, nil, nil)

	for i := 0; i < 5; i++ {
		timer.advanceAndTick(current, time.Second)
	}

	if got := timer.ElapsedSeconds(); got != 5 {
		t.Errorf("elapsed = %d, want 5", got)
	}
}

func TestTimerPausesWhileHidden(t *testing.T) {
	timer, current := newManualTimer(t, nil, nil)

	timer.advanceAndTick(current, time.Second)
	timer.advanceAndTick(current, time.Second)

	// Hide mid-interval: the 500ms in flight is credited, nothing after.
	*current = current.Add(500 * time.Millisecond)
	timer.SetVisible(false, *current)

	timer.advanceAndTick(current, 10*time.Second)
	timer.advanceAndTick(current, 10*time.Second)

	if got := timer.ElapsedSeconds(); got != 2 {
		t.Errorf("elapsed while hidden = %d, want 2 (2s + 500ms floored)", got)
	}

	*current = current.Add(time.Second)
	timer.SetVisible(true, *current)
	timer.advanceAndTick(current, time.Second)
	timer.advanceAndTick(current, time.Second)

	if got := timer.ElapsedSeconds(); got != 4 {
		t.Errorf("elapsed after resume = %d, want 4", got)
	}
}

func TestTimerRedundantVisibilityEventKeepsDelta(t *testing.T) {
	timer, current := newManualTimer(t, nil, nil)

	timer.advanceAndTick(current, time.Second)

	// A repeated visible event mid-interval must not reset the tick baseline.
	timer.SetVisible(true, current.Add(500*time.Millisecond))
	timer.advanceAndTick(current, time.Second)

	if got := timer.ElapsedSeconds(); got != 2 {
		t.Errorf("elapsed = %d, want 2 (duplicate visibility event dropped time)", got)
	}

	// Same for a repeated hidden event.
	*current = current.Add(time.Second)
	timer.SetVisible(false, *current)
	timer.SetVisible(false, current.Add(10*time.Second))
	*current = current.Add(time.Second)
	timer.SetVisible(true, *current)
	timer.advanceAndTick(current, time.Second)

	if got := timer.ElapsedSeconds(); got != 4 {
		t.Errorf("elapsed = %d, want 4", got)
	}
}

func TestTimerHarmfulFlushFiresOnceAtThreshold(t *testing.T) {
	rec := &flushRecorder{}
	timer, current := newManualTimer(t, rec.record, func() bool { return true })

	for i := 0; i < 9; i++ {
		timer.advanceAndTick(current, time.Second)
	}
	if len(rec.reasons) != 0 {
		t.Fatalf("flush fired below the threshold: %v", rec.reasons)
	}

	timer.advanceAndTick(current, time.Second)
	if len(rec.reasons) != 1 || rec.reasons[0] != models.FlushReasonHarmfulQuery {
		t.Fatalf("expected one harmful flush at 10s, got %v", rec.reasons)
	}
	if rec.seconds[0] != 10 {
		t.Errorf("harmful flush carries %d seconds, want 10", rec.seconds[0])
	}

	// Further ticks never repeat it.
	for i := 0; i < 20; i++ {
		timer.advanceAndTick(current, time.Second)
	}
	if len(rec.reasons) != 1 {
		t.Errorf("harmful flush repeated: %v", rec.reasons)
	}
}

func TestTimerSafeSessionNeverHarmfulFlushes(t *testing.T) {
	rec := &flushRecorder{}
	timer, current := newManualTimer(t, rec.record, func() bool { return false })

	for i := 0; i < 30; i++ {
		timer.advanceAndTick(current, time.Second)
	}
	if len(rec.reasons) != 0 {
		t.Errorf("safe session flushed: %v", rec.reasons)
	}
}

func TestTimerTerminalFlushIsIdempotent(t *testing.T) {
	rec := &flushRecorder{}
	timer, current := newManualTimer(t, rec.record, nil)

	for i := 0; i < 7; i++ {
		timer.advanceAndTick(current, time.Second)
	}

	// Unload handlers fire in unpredictable combinations.
	timer.FlushTerminal(models.FlushReasonTabClosed)
	timer.FlushTerminal(models.FlushReasonUnload)
	timer.FlushTerminal(models.FlushReasonUnload)

	if len(rec.reasons) != 1 {
		t.Fatalf("terminal flush fired %d times, want 1", len(rec.reasons))
	}
	if rec.reasons[0] != models.FlushReasonTabClosed {
		t.Errorf("reason = %q, want the first caller's reason", rec.reasons[0])
	}
	if rec.seconds[0] != 7 {
		t.Errorf("terminal flush carries %d seconds, want 7", rec.seconds[0])
	}
}

func TestTimerTerminalFlushCreditsInFlightDelta(t *testing.T) {
	rec := &flushRecorder{}
	timer, current := newManualTimer(t, rec.record, nil)

	timer.advanceAndTick(current, time.Second)
	timer.advanceAndTick(current, time.Second)

	// Tab closes 3 seconds after the last tick; that delta still counts.
	*current = current.Add(3 * time.Second)
	timer.FlushTerminal(models.FlushReasonTabClosed)

	if len(rec.seconds) != 1 || rec.seconds[0] != 5 {
		t.Errorf("terminal flush = %v, want [5]", rec.seconds)
	}
}

func TestTimerStartRearmsGuards(t *testing.T) {
	rec := &flushRecorder{}
	harmful := true
	timer, current := newManualTimer(t, rec.record, func() bool { return harmful })

	for i := 0; i < 10; i++ {
		timer.advanceAndTick(current, time.Second)
	}
	timer.FlushTerminal(models.FlushReasonUnload)

	if len(rec.reasons) != 2 {
		t.Fatalf("expected harmful + terminal flush, got %v", rec.reasons)
	}

	// A fresh session on the same timer must flush again.
	timer.Start()
	timer.Stop()

	*current = current.Add(time.Minute)
	timer.mu.Lock()
	timer.tracking = true
	timer.lastTick = *current
	timer.mu.Unlock()

	for i := 0; i < 10; i++ {
		timer.advanceAndTick(current, time.Second)
	}
	timer.FlushTerminal(models.FlushReasonTabClosed)

	if len(rec.reasons) != 4 {
		t.Errorf("restart must re-arm both flush guards, got %v", rec.reasons)
	}
}

func TestTimerElapsedSecondsFloors(t *testing.T) {
	timer, current := newManualTimer(t, nil, nil)

	timer.advanceAndTick(current, 2900*time.Millisecond)

	if got := timer.ElapsedSeconds(); got != 2 {
		t.Errorf("elapsed = %d, want 2 (floor, not round)", got)
	}
}
