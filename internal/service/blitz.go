package service

import (
	"log/slog"
	"sync"
	"time"
)

// BlitzRunner keeps one cancellable per-room countdown. A ply either finishes
// with a voluntary move, which cancels the timer, or the timer fires and the
// registered handler substitutes a forced move. Arming again replaces the
// previous countdown, so a stale timer can never fire after the ply it was
// armed for has already resolved.
type BlitzRunner struct {
	logger *slog.Logger
	ply    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	expire func(code string)
}

func NewBlitzRunner(logger *slog.Logger, ply time.Duration) *BlitzRunner {
	return &BlitzRunner{
		logger: logger.With("component", "blitz"),
		ply:    ply,
		timers: make(map[string]*time.Timer),
	}
}

// SetExpiryHandler registers the forced-move callback. Must be called before
// the first Arm; the session service owns the handler.
func (that *BlitzRunner) SetExpiryHandler(expire func(code string)) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.expire = expire
}

// Arm starts the countdown for the next ply in a room, replacing any
// countdown still pending.
func (that *BlitzRunner) Arm(code string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[code]; ok {
		timer.Stop()
	}

	// The firing callback compares against its own timer, not just the room
	// code: a replacement armed while the old timer was already firing must
	// survive, and the stale callback must stay silent.
	var timer *time.Timer
	timer = time.AfterFunc(that.ply, func() {
		that.mu.Lock()
		live := that.timers[code] == timer
		if live {
			delete(that.timers, code)
		}
		expire := that.expire
		that.mu.Unlock()

		// A Cancel or re-arm that raced the firing wins: the ply already
		// resolved.
		if !live || expire == nil {
			return
		}

		that.logger.Debug("blitz countdown expired", "room", code)
		expire(code)
	})
	that.timers[code] = timer
}

// Cancel drops the pending countdown for a room, if any.
func (that *BlitzRunner) Cancel(code string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[code]; ok {
		timer.Stop()
		delete(that.timers, code)
	}
}

// Stop cancels every pending countdown.
func (that *BlitzRunner) Stop() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for code, timer := range that.timers {
		timer.Stop()
		delete(that.timers, code)
	}
}
