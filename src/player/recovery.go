package player

import (
	"context"
	"time"
)

// The recoveryEngine schedules and executes retries for recoverable playback
// and network errors. Retries wait out an exponential backoff unless network
// restoration preempts the delay.
//
// Methods that require the session mutex to be held say so; attemptRetry
// acquires the mutex itself.
type recoveryEngine struct {
	s   *session
	cfg *Config

	// isRetrying is true from the moment a retry is scheduled until it has
	// run or was cancelled.
	isRetrying bool
	timer      *time.Timer

	// inFlight guards the seek+play pair so overlapping attempts cannot
	// race each other.
	inFlight bool
}

// backoffDelay computes the delay before retry number retryCount.
func (e *recoveryEngine) backoffDelay(retryCount int) time.Duration {
	delay := e.cfg.RetryBackoffBase
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= e.cfg.RetryBackoffCap || delay <= 0 {
			return e.cfg.RetryBackoffCap
		}
	}
	if delay > e.cfg.RetryBackoffCap {
		return e.cfg.RetryBackoffCap
	}
	return delay
}

// scheduleAutoRetry arranges a recovery attempt for a playback error
// reported by the engine. Requires the session mutex.
func (e *recoveryEngine) scheduleAutoRetry(perr PlaybackError) {
	if e.cfg.DisableAutoRetry {
		return
	}
	for _, cat := range e.cfg.NonRetryable {
		if perr.Category == cat {
			e.s.log.Debugf("Not retrying %v error: %v", perr.Category, perr)
			return
		}
	}
	if perr.RetriesRemaining <= 0 || perr.RetryCount >= e.cfg.MaxAutoRetries {
		e.s.log.Warnf("Giving up on playback error: %v", perr)
		retriesExhaustedTotal.Inc()
		e.s.emitter.Emit(RecoveryFailedEvent{Err: perr})
		if cb := e.cfg.OnRecoveryFailed; cb != nil {
			go cb(perr)
		}
		return
	}

	attempt := perr.RetryCount + 1
	if cb := e.cfg.OnRetryAttempt; cb != nil && !cb(perr, attempt) {
		e.s.log.Debugf("Retry attempt %d vetoed", attempt)
		return
	}

	e.cancelTimerLocked()
	e.isRetrying = true
	delay := e.backoffDelay(perr.RetryCount)
	e.s.log.Infof("Scheduling retry %d in %v: %v", attempt, delay, perr)
	retriesScheduledTotal.Inc()
	e.timer = time.AfterFunc(delay, e.attemptRetry)
}

// attemptRetry re-seeks to the last known position and resumes playback.
// Failures are logged, not rethrown; the caller already moved on. Safe to
// call concurrently, exactly one seek+play pair is issued.
func (e *recoveryEngine) attemptRetry() {
	e.s.mu.Lock()
	if e.s.disposed || e.s.id == "" {
		e.isRetrying = false
		e.s.mu.Unlock()
		return
	}
	if e.inFlight {
		e.s.mu.Unlock()
		return
	}
	e.inFlight = true
	id := e.s.id
	pos := e.s.snapshot.Position
	e.s.mu.Unlock()

	ctx := context.Background()
	if err := e.s.port.SeekTo(ctx, id, pos); err != nil {
		e.s.log.Warnf("Retry seek failed: %v", err)
	}
	if err := e.s.port.Play(ctx, id); err != nil {
		e.s.log.Warnf("Retry play failed: %v", err)
	}

	e.s.mu.Lock()
	e.inFlight = false
	e.isRetrying = false
	e.s.mu.Unlock()
}

// handleNetworkError counts a network failure against the dedicated network
// retry track and schedules a recovery attempt, or settles into the error
// state once the cap is reached. Requires the session mutex.
func (e *recoveryEngine) handleNetworkError(message string) {
	networkErrorsTotal.Inc()
	count := e.s.snapshot.NetworkRetryCount + 1
	if count >= e.cfg.MaxNetworkRetries {
		e.s.log.Errorf("Network error after %d retries: %s", count, message)
		e.cancelTimerLocked()
		e.s.update(func(snap *Snapshot) {
			snap.NetworkRetryCount = count
			snap.PlaybackState = StateError
			snap.ErrorMessage = message
			snap.IsRecoveringFromError = false
			snap.IsNetworkBuffering = false
		})
		return
	}

	e.s.log.Warnf("Network error, retry %d/%d: %s", count, e.cfg.MaxNetworkRetries, message)
	e.s.update(func(snap *Snapshot) {
		snap.NetworkRetryCount = count
		snap.PlaybackState = StateBuffering
		snap.IsRecoveringFromError = true
		snap.IsNetworkBuffering = true
		snap.BufferingReason = BufferingNetwork
	})

	e.cancelTimerLocked()
	e.isRetrying = true
	delay := e.backoffDelay(count)
	retriesScheduledTotal.Inc()
	e.timer = time.AfterFunc(delay, e.attemptRetry)
}

// handleNetworkStateChange preempts the backoff wait once connectivity is
// confirmed. Requires the session mutex. The returned follow-up, if any,
// must be run after the mutex is released.
func (e *recoveryEngine) handleNetworkStateChange(isConnected bool) func() {
	if !isConnected || !e.s.snapshot.IsRecoveringFromError {
		return nil
	}
	e.s.log.Infof("Network restored, retrying immediately")
	e.cancelTimerLocked()
	e.isRetrying = true
	return e.attemptRetry
}

// handleRecovered clears the recovery bookkeeping after the engine reports
// playback is healthy again. Requires the session mutex.
func (e *recoveryEngine) handleRecovered() {
	e.cancelTimerLocked()
	e.s.update(func(snap *Snapshot) {
		snap.NetworkRetryCount = 0
		snap.IsRecoveringFromError = false
		snap.IsNetworkBuffering = false
		snap.BufferingReason = ""
	})
}

// cancelRetryTimer stops any pending retry. Idempotent; requires the
// session mutex.
func (e *recoveryEngine) cancelRetryTimer() {
	e.cancelTimerLocked()
}

func (e *recoveryEngine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.isRetrying = false
}

// dispose is idempotent.
func (e *recoveryEngine) dispose() {
	e.cancelTimerLocked()
}
