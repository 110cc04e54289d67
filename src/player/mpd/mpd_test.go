package mpd

import (
	"testing"
	"time"

	"vidbox/src/player"
)

func TestCloseWaitsForEmittingLoops(t *testing.T) {
	in := &instance{
		events: make(chan player.NativeEvent, 4),
		done:   make(chan struct{}),
	}

	// Stand-in for a poll loop that emits several events per iteration.
	in.loops.Add(1)
	go func() {
		defer in.loops.Done()
		for {
			select {
			case <-in.done:
				return
			default:
				in.emit(player.PositionChangedEvent{Position: time.Second})
			}
		}
	}()

	in.close()
	in.close() // Idempotent.

	// Drain until the channel is closed. The channel may only be closed
	// after the emitting loop has returned; a send after close panics.
	for range in.events {
	}
}
