package player

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakePort is a scriptable in-memory engine used by the package tests. It
// records every command it receives and exposes a channel through which
// tests inject native events.
type fakePort struct {
	lock sync.Mutex

	nextID    int
	events    map[InstanceID]chan NativeEvent
	commands  []string
	createErr error
	cmdErr    map[string]error

	// playGate, when set, blocks Play until the channel is closed. Used to
	// hold a retry in flight.
	playGate chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{
		events: map[InstanceID]chan NativeEvent{},
		cmdErr: map[string]error{},
	}
}

func (fp *fakePort) record(cmd string) {
	fp.lock.Lock()
	fp.commands = append(fp.commands, cmd)
	fp.lock.Unlock()
}

// Commands returns a copy of all commands received so far.
func (fp *fakePort) Commands() []string {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	return append([]string(nil), fp.commands...)
}

func (fp *fakePort) countCommands(prefix string) int {
	n := 0
	for _, c := range fp.Commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// emit injects a native event into the stream of the specified instance.
func (fp *fakePort) emit(id InstanceID, ev NativeEvent) {
	fp.lock.Lock()
	ch := fp.events[id]
	fp.lock.Unlock()
	if ch != nil {
		ch <- ev
	}
}

func (fp *fakePort) Create(ctx context.Context, source MediaSource, opts CreateOptions) (InstanceID, error) {
	fp.lock.Lock()
	if err := fp.createErr; err != nil {
		fp.lock.Unlock()
		return "", err
	}
	fp.nextID++
	id := InstanceID(fmt.Sprintf("fake-%d", fp.nextID))
	fp.events[id] = make(chan NativeEvent, 64)
	fp.commands = append(fp.commands, "create "+source.URI)
	fp.lock.Unlock()
	return id, nil
}

func (fp *fakePort) Play(ctx context.Context, id InstanceID) error {
	fp.lock.Lock()
	gate := fp.playGate
	fp.lock.Unlock()
	if gate != nil {
		<-gate
	}
	fp.record("play")
	return fp.cmdErr["play"]
}

func (fp *fakePort) Pause(ctx context.Context, id InstanceID) error {
	fp.record("pause")
	return fp.cmdErr["pause"]
}

func (fp *fakePort) Stop(ctx context.Context, id InstanceID) error {
	fp.record("stop")
	return fp.cmdErr["stop"]
}

func (fp *fakePort) SeekTo(ctx context.Context, id InstanceID, pos time.Duration) error {
	fp.record(fmt.Sprintf("seek %d", pos.Milliseconds()))
	return fp.cmdErr["seek"]
}

func (fp *fakePort) SetPlaybackSpeed(ctx context.Context, id InstanceID, speed float64) error {
	fp.record(fmt.Sprintf("speed %v", speed))
	return fp.cmdErr["speed"]
}

func (fp *fakePort) SetVolume(ctx context.Context, id InstanceID, volume float64) error {
	fp.record(fmt.Sprintf("volume %v", volume))
	return fp.cmdErr["volume"]
}

func (fp *fakePort) SetLooping(ctx context.Context, id InstanceID, looping bool) error {
	fp.record(fmt.Sprintf("looping %v", looping))
	return fp.cmdErr["looping"]
}

func (fp *fakePort) Dispose(ctx context.Context, id InstanceID) error {
	fp.lock.Lock()
	if ch, ok := fp.events[id]; ok {
		close(ch)
		delete(fp.events, id)
	}
	fp.commands = append(fp.commands, "dispose")
	fp.lock.Unlock()
	return nil
}

func (fp *fakePort) Events(id InstanceID) (<-chan NativeEvent, error) {
	fp.lock.Lock()
	defer fp.lock.Unlock()
	ch, ok := fp.events[id]
	if !ok {
		return nil, fmt.Errorf("no such instance: %q", id)
	}
	return ch, nil
}
