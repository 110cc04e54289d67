package util

import (
	"context"
	"sync"
	"time"
)

// The default buffer size of listener channels. Events are dropped for
// listeners that fall this far behind.
const listenerBuffer = 128

// An Emitter broadcasts events to an arbitrary number of listeners.
//
// The zero value is ready for use. Emitting never blocks; listeners that do
// not keep up lose events.
type Emitter struct {
	// The release attribute determines how much time an event should be
	// buffered to prevent the emission of duplicate events.
	// A zero value will disable buffering. Events emitted through an
	// emitter with a non-zero release must be comparable.
	Release time.Duration

	lock      sync.Mutex
	listeners map[int]chan interface{}
	nextID    int

	release map[interface{}]struct{}
}

// Emit broadcasts an event to all current listeners.
func (emitter *Emitter) Emit(event interface{}) {
	if emitter.Release == 0 {
		emitter.broadcast(event)
		return
	}

	emitter.lock.Lock()
	if emitter.release == nil {
		emitter.release = map[interface{}]struct{}{}
	}
	// Check whether the event is already scheduled.
	if _, ok := emitter.release[event]; ok {
		emitter.lock.Unlock()
		return
	}
	emitter.release[event] = struct{}{}
	emitter.lock.Unlock()

	go func() {
		time.Sleep(emitter.Release)
		emitter.lock.Lock()
		delete(emitter.release, event)
		emitter.lock.Unlock()
		emitter.broadcast(event)
	}()
}

func (emitter *Emitter) broadcast(event interface{}) {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()
	for _, listener := range emitter.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Listen registers a new listener. The listener is removed and its channel
// closed when the context is canceled.
func (emitter *Emitter) Listen(ctx context.Context) <-chan interface{} {
	emitter.lock.Lock()
	defer emitter.lock.Unlock()

	if emitter.listeners == nil {
		emitter.listeners = map[int]chan interface{}{}
	}
	id := emitter.nextID
	emitter.nextID++
	ch := make(chan interface{}, listenerBuffer)
	emitter.listeners[id] = ch

	go func() {
		<-ctx.Done()
		emitter.lock.Lock()
		delete(emitter.listeners, id)
		close(ch)
		emitter.lock.Unlock()
	}()
	return ch
}
