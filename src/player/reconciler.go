package player

import (
	"time"
)

// mismatchThreshold is the number of consecutive differing position updates
// after which a non-playing snapshot state is force-corrected to playing.
const mismatchThreshold = 3

// The reconciler decides whether native events should be applied to the
// snapshot or discarded as stale against the caller's latest intent. Its
// state exists only to bridge the window between an optimistic update and
// the engine's confirmation.
//
// All methods require the session mutex to be held.
type reconciler struct {
	s   *session
	cfg *Config

	isStartingPlayback bool
	startTimer         *time.Timer

	isSeeking     bool
	seekTarget    time.Duration
	hasSeekTarget bool
	seekTimer     *time.Timer

	lastPositionForStateCheck time.Duration
	positionUpdateCount       int
}

// beginPlay applies the optimistic playing state and opens the stale-event
// window. Residual paused/ready events from before the command raced it are
// discarded until the engine confirms or the window times out.
func (r *reconciler) beginPlay() {
	r.isStartingPlayback = true
	if r.startTimer != nil {
		r.startTimer.Stop()
	}
	// Safety net against an engine that never reports playing.
	r.startTimer = time.AfterFunc(r.cfg.StartTimeout, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if r.isStartingPlayback {
			r.s.log.Debugf("No playback confirmation within %v", r.cfg.StartTimeout)
			r.isStartingPlayback = false
		}
	})
	r.positionUpdateCount = 0
	r.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StatePlaying
	})
}

// beginPause applies the optimistic paused state. An explicit pause always
// wins over a pending start.
func (r *reconciler) beginPause() {
	r.clearStarting()
	r.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StatePaused
	})
}

// beginStop applies the optimistic stopped state and rewinds.
func (r *reconciler) beginStop() {
	r.clearStarting()
	r.clearSeeking()
	r.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StateReady
		snap.Position = 0
	})
}

// beginSeek records the seek target and applies the position optimistically.
// A later seek replaces the target of an earlier one, so only confirmations
// near the latest target are accepted.
func (r *reconciler) beginSeek(target time.Duration) {
	r.isSeeking = true
	r.seekTarget = target
	r.hasSeekTarget = true
	if r.seekTimer != nil {
		r.seekTimer.Stop()
	}
	// Safety net against an engine that never lands near the target, e.g. a
	// seek past the end that the engine clamps. Without it every later
	// position event would be discarded as catch-up noise.
	r.seekTimer = time.AfterFunc(r.cfg.StartTimeout, func() {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if r.isSeeking {
			r.s.log.Debugf("No seek confirmation within %v", r.cfg.StartTimeout)
			r.clearSeeking()
		}
	})
	r.s.update(func(snap *Snapshot) {
		snap.Position = target
	})
}

// handlePlaybackStateChanged reports whether a state event from the engine
// should be applied to the snapshot.
func (r *reconciler) handlePlaybackStateChanged(state PlaybackState) bool {
	if r.isStartingPlayback {
		switch state {
		case StatePaused, StateReady:
			// Residual events from the pre-play state racing the command.
			r.s.log.Debugf("Discarding stale %v event during playback start", state)
			staleEventsTotal.Inc()
			return false
		case StatePlaying:
			r.clearStarting()
			return true
		}
	}
	return true
}

// handlePositionChanged reports whether a position event should be applied.
// While a seek is pending, positions within the tolerance window snap the
// snapshot to the exact target; everything else is discarded as catch-up
// noise. Outside a seek, repeated movement while the snapshot claims not to
// be playing corrects the state, since the state and position channels are
// not ordered relative to each other.
func (r *reconciler) handlePositionChanged(position time.Duration) bool {
	if r.isSeeking && r.hasSeekTarget {
		delta := position - r.seekTarget
		if delta < 0 {
			delta = -delta
		}
		if delta < r.cfg.SeekTolerance {
			target := r.seekTarget
			r.clearSeeking()
			r.s.update(func(snap *Snapshot) {
				snap.Position = target
			})
		}
		return false
	}

	snap := r.s.snapshot
	if snap.PlaybackState != StatePlaying && snap.PlaybackState != StateBuffering {
		if position != r.lastPositionForStateCheck {
			r.positionUpdateCount++
			r.lastPositionForStateCheck = position
		} else {
			r.positionUpdateCount = 0
		}
		if r.positionUpdateCount >= mismatchThreshold {
			r.s.log.Debugf("Position advancing while state is %v, correcting to playing", snap.PlaybackState)
			r.positionUpdateCount = 0
			r.s.update(func(snap *Snapshot) {
				snap.PlaybackState = StatePlaying
			})
		}
	}
	return true
}

func (r *reconciler) clearStarting() {
	r.isStartingPlayback = false
	if r.startTimer != nil {
		r.startTimer.Stop()
		r.startTimer = nil
	}
}

func (r *reconciler) clearSeeking() {
	r.isSeeking = false
	r.hasSeekTarget = false
	r.seekTarget = 0
	if r.seekTimer != nil {
		r.seekTimer.Stop()
		r.seekTimer = nil
	}
}

// reset drops all ephemeral state, used when a new native instance replaces
// the current one.
func (r *reconciler) reset() {
	r.clearStarting()
	r.clearSeeking()
	r.lastPositionForStateCheck = 0
	r.positionUpdateCount = 0
}

func (r *reconciler) dispose() {
	r.reset()
}
