package player

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	cfg := Config{}.withDefaults()
	e := &recoveryEngine{cfg: &cfg}
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for retryCount, want := range expected {
		if got := e.backoffDelay(retryCount); got != want {
			t.Errorf("backoffDelay(%d) = %v, expected %v", retryCount, got, want)
		}
	}
}

func TestAutoRetryResumesPlayback(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		RetryBackoffBase: 5 * time.Millisecond,
		RetryBackoffCap:  10 * time.Millisecond,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, ErrorEvent{Err: PlaybackError{
		Code:             "E_DECODE",
		Message:          "decoder stalled",
		Category:         ErrorCategoryCodec,
		RetriesRemaining: 3,
	}})

	snap := waitForSnapshot(t, p, "error state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateError
	})
	if snap.ErrorMessage == "" {
		t.Fatalf("expected an error message")
	}

	// The retry re-seeks to the last known position and resumes.
	waitForCommands(t, fp, "seek", 1)
	waitForCommands(t, fp, "play", 1)
}

func TestAutoRetryDisabled(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		DisableAutoRetry: true,
		RetryBackoffBase: time.Millisecond,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, ErrorEvent{Err: PlaybackError{Message: "boom", RetriesRemaining: 3}})
	waitForSnapshot(t, p, "error state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateError
	})

	time.Sleep(50 * time.Millisecond)
	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected no retry, got %d play commands", n)
	}
}

func TestNonRetryableCategory(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		NonRetryable:     []ErrorCategory{ErrorCategoryDRM},
		RetryBackoffBase: time.Millisecond,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, ErrorEvent{Err: PlaybackError{
		Message:          "license expired",
		Category:         ErrorCategoryDRM,
		RetriesRemaining: 3,
	}})
	waitForSnapshot(t, p, "error state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateError
	})

	time.Sleep(50 * time.Millisecond)
	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected no retry, got %d play commands", n)
	}
}

func TestRetriesExhausted(t *testing.T) {
	failed := make(chan PlaybackError, 1)
	p, fp := newTestPlayer(t, Config{
		RetryBackoffBase: time.Millisecond,
		OnRecoveryFailed: func(err PlaybackError) {
			failed <- err
		},
	})
	id := loadTestTrack(t, p)

	fp.emit(id, ErrorEvent{Err: PlaybackError{
		Message:          "boom",
		Category:         ErrorCategoryCodec,
		RetryCount:       3,
		RetriesRemaining: 0,
	}})

	select {
	case err := <-failed:
		if err.Message != "boom" {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("recovery failure was not reported")
	}
	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected no retry, got %d play commands", n)
	}
}

func TestAutoRetryCap(t *testing.T) {
	failed := make(chan PlaybackError, 1)
	p, fp := newTestPlayer(t, Config{
		MaxAutoRetries:   2,
		RetryBackoffBase: time.Millisecond,
		OnRecoveryFailed: func(err PlaybackError) {
			failed <- err
		},
	})
	id := loadTestTrack(t, p)

	// The engine would allow more retries, but the configured cap wins.
	fp.emit(id, ErrorEvent{Err: PlaybackError{
		Message:          "boom",
		Category:         ErrorCategoryCodec,
		RetryCount:       2,
		RetriesRemaining: 10,
	}})

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("recovery failure was not reported")
	}
	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected no retry, got %d play commands", n)
	}
}

func TestRetryAttemptVeto(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		RetryBackoffBase: time.Millisecond,
		OnRetryAttempt: func(err PlaybackError, attempt int) bool {
			return false
		},
	})
	id := loadTestTrack(t, p)

	fp.emit(id, ErrorEvent{Err: PlaybackError{Message: "boom", RetriesRemaining: 3}})
	waitForSnapshot(t, p, "error state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateError
	})

	time.Sleep(50 * time.Millisecond)
	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected the veto to hold, got %d play commands", n)
	}
}

func TestNetworkErrorEntersRecovery(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		// Keep the scheduled retry from firing during the test.
		RetryBackoffBase: time.Hour,
		RetryBackoffCap:  time.Hour,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, NetworkErrorEvent{Message: "connection reset"})
	snap := waitForSnapshot(t, p, "recovery state", func(snap Snapshot) bool {
		return snap.IsRecoveringFromError
	})
	if snap.PlaybackState != StateBuffering {
		t.Errorf("expected buffering state, got %v", snap.PlaybackState)
	}
	if !snap.IsNetworkBuffering || snap.BufferingReason != BufferingNetwork {
		t.Errorf("expected network buffering, got %+v", snap)
	}
	if snap.NetworkRetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", snap.NetworkRetryCount)
	}
}

func TestNetworkRetriesExhausted(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		MaxNetworkRetries: 5,
		RetryBackoffBase:  time.Hour,
		RetryBackoffCap:   time.Hour,
	})
	id := loadTestTrack(t, p)

	for i := 0; i < 6; i++ {
		fp.emit(id, NetworkErrorEvent{Message: "connection reset"})
	}

	snap := waitForSnapshot(t, p, "error state", func(snap Snapshot) bool {
		return snap.PlaybackState == StateError
	})
	if snap.IsRecoveringFromError {
		t.Errorf("expected recovery to have given up")
	}
	if snap.ErrorMessage == "" {
		t.Errorf("expected an error message")
	}
	if snap.NetworkRetryCount < 5 {
		t.Errorf("expected at least 5 network retries, got %d", snap.NetworkRetryCount)
	}
}

func TestNetworkRestorationRetriesImmediately(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		// Without the preemption the retry would not fire for an hour.
		RetryBackoffBase: time.Hour,
		RetryBackoffCap:  time.Hour,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, NetworkErrorEvent{Message: "connection reset"})
	waitForSnapshot(t, p, "recovery state", func(snap Snapshot) bool {
		return snap.IsRecoveringFromError
	})

	fp.emit(id, NetworkStateChangedEvent{Connected: true})
	waitForCommands(t, fp, "seek", 1)
	waitForCommands(t, fp, "play", 1)
}

func TestNetworkRestorationWithoutRecoveryIsIgnored(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	id := loadTestTrack(t, p)

	fp.emit(id, NetworkStateChangedEvent{Connected: true})
	fp.emit(id, DurationChangedEvent{Duration: time.Minute})
	waitForSnapshot(t, p, "marker duration", func(snap Snapshot) bool {
		return snap.Duration == time.Minute
	})

	if n := fp.countCommands("play"); n != 0 {
		t.Fatalf("expected no retry, got %d play commands", n)
	}
}

func TestRecoveredResetsCounters(t *testing.T) {
	p, fp := newTestPlayer(t, Config{
		RetryBackoffBase: time.Hour,
		RetryBackoffCap:  time.Hour,
	})
	id := loadTestTrack(t, p)

	fp.emit(id, NetworkErrorEvent{Message: "connection reset"})
	waitForSnapshot(t, p, "recovery state", func(snap Snapshot) bool {
		return snap.IsRecoveringFromError
	})

	fp.emit(id, PlaybackRecoveredEvent{})
	snap := waitForSnapshot(t, p, "recovered state", func(snap Snapshot) bool {
		return !snap.IsRecoveringFromError
	})
	if snap.NetworkRetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", snap.NetworkRetryCount)
	}
	if snap.IsNetworkBuffering || snap.BufferingReason != "" {
		t.Errorf("expected buffering flags to be cleared, got %+v", snap)
	}
}

func TestConcurrentRetriesAreMutuallyExclusive(t *testing.T) {
	p, fp := newTestPlayer(t, Config{})
	loadTestTrack(t, p)

	gate := make(chan struct{})
	fp.lock.Lock()
	fp.playGate = gate
	fp.lock.Unlock()

	// The first attempt blocks in the engine's play call; all overlapping
	// attempts must yield without issuing their own seek+play pair.
	go p.rcv.attemptRetry()
	waitForCommands(t, fp, "seek", 1)
	for i := 0; i < 3; i++ {
		p.rcv.attemptRetry()
	}
	close(gate)
	waitForCommands(t, fp, "play", 1)

	time.Sleep(20 * time.Millisecond)
	if n := fp.countCommands("seek"); n != 1 {
		t.Errorf("expected 1 seek command, got %d", n)
	}
	if n := fp.countCommands("play"); n != 1 {
		t.Errorf("expected 1 play command, got %d", n)
	}
}
