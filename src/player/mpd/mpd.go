// Package mpd implements the engine port on top of a Music Player Daemon
// server. MPD has no notion of detached player instances; creating an
// instance replaces the server's queue with the new source.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	log "github.com/sirupsen/logrus"

	"vidbox/src/player"
)

// positionPollInterval is how often the elapsed time is polled while
// playing. MPD does not push position ticks on its own.
const positionPollInterval = 500 * time.Millisecond

// A Port drives an MPD server as the native media engine.
type Port struct {
	network, address, password string

	lock      sync.Mutex
	nextID    int
	instances map[player.InstanceID]*instance
}

// Connect verifies that an MPD server is reachable and returns a port
// backed by it.
func Connect(network, address string, password *string) (*Port, error) {
	var passwd string
	if password != nil {
		passwd = *password
	}
	p := &Port{
		network:   network,
		address:   address,
		password:  passwd,
		instances: map[player.InstanceID]*instance{},
	}
	if err := p.withMpd(func(c *mpd.Client) error {
		return c.Ping()
	}); err != nil {
		return nil, fmt.Errorf("unable to connect to MPD: %w", err)
	}
	return p, nil
}

// Running watchers on the same connection as the command connection fouls
// things up badly, so every command dials its own short-lived connection.
func (p *Port) withMpd(fn func(*mpd.Client) error) error {
	client, err := mpd.DialAuthenticated(p.network, p.address, p.password)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (p *Port) Create(ctx context.Context, source player.MediaSource, opts player.CreateOptions) (player.InstanceID, error) {
	err := p.withMpd(func(c *mpd.Client) error {
		if err := c.Clear(); err != nil {
			return err
		}
		if err := c.Add(source.URI); err != nil {
			return err
		}
		if err := c.Repeat(opts.Looping); err != nil {
			return err
		}
		if err := c.Single(opts.Looping); err != nil {
			return err
		}
		if opts.AutoPlay {
			return c.Play(0)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("could not load %q: %w", source.URI, err)
	}

	watcher, err := mpd.NewWatcher(p.network, p.address, p.password, "player", "mixer")
	if err != nil {
		return "", err
	}

	p.lock.Lock()
	p.nextID++
	id := player.InstanceID(fmt.Sprintf("mpd-%d", p.nextID))
	in := &instance{
		port:    p,
		id:      id,
		watcher: watcher,
		events:  make(chan player.NativeEvent, 64),
		done:    make(chan struct{}),
	}
	p.instances[id] = in
	p.lock.Unlock()

	in.loops.Add(2)
	go in.watchLoop()
	go in.positionLoop()
	return id, nil
}

func (p *Port) instance(id player.InstanceID) (*instance, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	in, ok := p.instances[id]
	if !ok {
		return nil, fmt.Errorf("no such instance: %q", id)
	}
	return in, nil
}

func (p *Port) Play(ctx context.Context, id player.InstanceID) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if status["state"] == "stop" {
			return c.Play(0)
		}
		return c.Pause(false)
	})
}

func (p *Port) Pause(ctx context.Context, id player.InstanceID) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		return c.Pause(true)
	})
}

func (p *Port) Stop(ctx context.Context, id player.InstanceID) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		return c.Stop()
	})
}

func (p *Port) SeekTo(ctx context.Context, id player.InstanceID, pos time.Duration) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		str, ok := status["songid"]
		if !ok {
			// No track is currently being played.
			return nil
		}
		songID, err := strconv.Atoi(str)
		if err != nil {
			return err
		}
		return c.SeekID(songID, int(pos/time.Second))
	})
}

// SetPlaybackSpeed is not a capability MPD exposes.
func (p *Port) SetPlaybackSpeed(ctx context.Context, id player.InstanceID, speed float64) error {
	return fmt.Errorf("set playback speed: %w", player.ErrUnsupported)
}

func (p *Port) SetVolume(ctx context.Context, id player.InstanceID, volume float64) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		return c.SetVolume(int(volume * 100))
	})
}

func (p *Port) SetLooping(ctx context.Context, id player.InstanceID, looping bool) error {
	if _, err := p.instance(id); err != nil {
		return err
	}
	return p.withMpd(func(c *mpd.Client) error {
		if err := c.Repeat(looping); err != nil {
			return err
		}
		return c.Single(looping)
	})
}

func (p *Port) Dispose(ctx context.Context, id player.InstanceID) error {
	p.lock.Lock()
	in, ok := p.instances[id]
	delete(p.instances, id)
	p.lock.Unlock()
	if !ok {
		return nil
	}
	in.close()
	return nil
}

func (p *Port) Events(id player.InstanceID) (<-chan player.NativeEvent, error) {
	in, err := p.instance(id)
	if err != nil {
		return nil, err
	}
	return in.events, nil
}

// An instance translates MPD's idle notifications and polled status into the
// native event stream.
type instance struct {
	port    *Port
	id      player.InstanceID
	watcher *mpd.Watcher
	events  chan player.NativeEvent

	done      chan struct{}
	closeOnce sync.Once
	loops     sync.WaitGroup

	lock      sync.Mutex
	lastState player.PlaybackState
}

func (in *instance) close() {
	in.closeOnce.Do(func() {
		close(in.done)
		if in.watcher != nil {
			if err := in.watcher.Close(); err != nil {
				log.Debugf("Error closing MPD watcher: %v", err)
			}
		}
		// The event channel is closed only once both producer loops have
		// returned, a poll in flight may still be emitting.
		go func() {
			in.loops.Wait()
			close(in.events)
		}()
	})
}

func (in *instance) emit(ev player.NativeEvent) {
	select {
	case in.events <- ev:
	case <-in.done:
	}
}

func (in *instance) watchLoop() {
	defer in.loops.Done()
	// Bootstrap with the current status so the core sees an initial state.
	in.pollStatus(true)
	for {
		select {
		case subsystem, ok := <-in.watcher.Event:
			if !ok {
				return
			}
			switch subsystem {
			case "player":
				in.pollStatus(true)
			case "mixer":
				in.pollStatus(false)
			}
		case err, ok := <-in.watcher.Error:
			if !ok {
				return
			}
			in.emit(player.NetworkErrorEvent{Message: err.Error()})
		case <-in.done:
			return
		}
	}
}

func (in *instance) positionLoop() {
	defer in.loops.Done()
	ticker := time.NewTicker(positionPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			in.lock.Lock()
			playing := in.lastState == player.StatePlaying
			in.lock.Unlock()
			if playing {
				in.pollPosition()
			}
		case <-in.done:
			return
		}
	}
}

func (in *instance) pollPosition() {
	err := in.port.withMpd(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
			in.emit(player.PositionChangedEvent{Position: time.Duration(elapsed * float64(time.Second))})
		}
		return nil
	})
	if err != nil {
		log.Debugf("Error polling MPD position: %v", err)
	}
}

func (in *instance) pollStatus(playerChanged bool) {
	err := in.port.withMpd(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}

		if vol, err := strconv.Atoi(status["volume"]); err == nil && vol >= 0 {
			in.emit(player.VolumeChangedEvent{Volume: float64(vol) / 100})
		}
		if !playerChanged {
			return nil
		}

		if dur, err := strconv.ParseFloat(status["duration"], 64); err == nil {
			in.emit(player.DurationChangedEvent{Duration: time.Duration(dur * float64(time.Second))})
		}

		state := map[string]player.PlaybackState{
			"play":  player.StatePlaying,
			"pause": player.StatePaused,
			"stop":  player.StateReady,
		}[status["state"]]
		if state == "" {
			return nil
		}

		in.lock.Lock()
		last := in.lastState
		in.lastState = state
		in.lock.Unlock()

		// MPD reports stop when it runs off the end of the queue.
		if state == player.StateReady && last == player.StatePlaying && status["playlistlength"] != "0" {
			in.emit(player.CompletedEvent{})
			return nil
		}
		in.emit(player.StateChangedEvent{State: state})
		return nil
	})
	if err != nil {
		log.Debugf("Error polling MPD status: %v", err)
	}
}
