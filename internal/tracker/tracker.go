// Package tracker observes page changes and user activity and keeps the host
// supplied with dwell-time and idle-state telemetry.
package tracker

import (
	"math"
	"sync"
	"time"

	"reading-surface/internal/gateway"
	"reading-surface/internal/pkg/logger"
	"reading-surface/pkg/render"
)

// Tracker is the per-visit Active/Idle state machine plus the dwell-time
// accounting emitted on every page transition. Time spent idle on a page
// counts toward total time but not active time.
type Tracker struct {
	gw        *gateway.Gateway
	logger    logger.ILogger
	clock     func() time.Time
	idleAfter time.Duration

	mu          sync.Mutex
	currentPage int
	entryAt     time.Time

	idle        bool
	activeStart time.Time
	pageActive  time.Duration

	sessionTotal  time.Duration
	sessionActive time.Duration

	idleTimer   *time.Timer
	unsubscribe func()
}

func New(gw *gateway.Gateway, log logger.ILogger, clock func() time.Time, idleAfter time.Duration) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		gw:        gw,
		logger:    log,
		clock:     clock,
		idleAfter: idleAfter,
	}
}

// Start subscribes to the engine's page transitions and begins timing the
// page currently in view. Must be called before the anchoring engine
// subscribes so telemetry for a transition is emitted before re-anchoring
// starts for the entered page.
func (t *Tracker) Start(engine render.Engine) {
	t.mu.Lock()
	now := t.clock()
	t.currentPage = engine.CurrentPage()
	if t.currentPage == 0 {
		t.currentPage = 1
	}
	t.entryAt = now
	t.activeStart = now
	t.rearmIdleTimerLocked()
	t.mu.Unlock()

	t.unsubscribe = engine.Subscribe(render.EventPageChanging, func(ev render.Event) {
		t.onPageChanging(ev.Page)
	})
}

// Stop cancels the idle timer and the engine subscription.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
	unsub := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// CurrentPage returns the page the tracker currently attributes time to. The
// anchoring engine reads it instead of asking the render engine, which
// guarantees it never observes a page before its telemetry was emitted.
func (t *Tracker) CurrentPage() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentPage
}

// IsIdle reports the current idle flag.
func (t *Tracker) IsIdle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// Interaction records one qualifying user interaction (pointer-down,
// pointer-move, key-press, scroll, touch-start). Waking from idle emits a
// single idleStateChange; repeated interactions while already active do not.
func (t *Tracker) Interaction() {
	t.mu.Lock()
	wasIdle := t.idle
	if wasIdle {
		t.idle = false
		t.activeStart = t.clock()
	}
	t.rearmIdleTimerLocked()
	t.mu.Unlock()

	if wasIdle {
		t.gw.Send(gateway.EvtIdleStateChange, map[string]interface{}{"isIdle": false})
	}
}

// goIdle fires after the quiet window elapses with no interaction.
func (t *Tracker) goIdle() {
	t.mu.Lock()
	if t.idle {
		t.mu.Unlock()
		return
	}
	t.idle = true
	t.pageActive += t.clock().Sub(t.activeStart)
	t.mu.Unlock()

	t.gw.Send(gateway.EvtIdleStateChange, map[string]interface{}{"isIdle": true})
}

// onPageChanging closes the books on the page being left and starts timing
// the new one. Runs unconditionally, even when the page number is unchanged.
func (t *Tracker) onPageChanging(newPage int) {
	t.mu.Lock()
	now := t.clock()
	dwell := now.Sub(t.entryAt)
	if !t.idle {
		t.pageActive += now.Sub(t.activeStart)
	}
	active := t.pageActive

	t.sessionTotal += dwell
	t.sessionActive += active

	previous := t.currentPage
	sample := map[string]interface{}{
		"previousPage":    previous,
		"newPage":         newPage,
		"timeSpent":       roundSeconds(dwell),
		"totalTimeSpent":  roundSeconds(t.sessionTotal),
		"activeTimeSpent": roundSeconds(t.sessionActive),
	}

	t.currentPage = newPage
	t.entryAt = now
	t.activeStart = now
	t.pageActive = 0

	// Sent while still holding the lock: CurrentPage readers must never
	// observe the new page before its telemetry sample is out.
	t.gw.Send(gateway.EvtPageChange, sample)
	t.mu.Unlock()

	t.logger.Debug("Tracker", "Page transition", map[string]interface{}{
		"from": previous, "to": newPage,
	})
}

// rearmIdleTimerLocked replaces the pending idle timer. The previous timer
// is always stopped first so timers never accumulate.
func (t *Tracker) rearmIdleTimerLocked() {
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(t.idleAfter, t.goIdle)
}

func roundSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}
