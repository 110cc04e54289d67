package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"vidbox/src/util"
)

// Config tunes the reconciliation and recovery behavior of a player.
// The zero value selects the documented defaults.
type Config struct {
	// AutoPlay starts playback as soon as a track has been loaded.
	AutoPlay bool

	// DisableAutoRetry turns the recovery engine off entirely.
	DisableAutoRetry bool

	// NonRetryable lists error categories that are never retried.
	NonRetryable []ErrorCategory

	// MaxAutoRetries caps recovery attempts per error, regardless of how
	// many the engine itself permits.
	MaxAutoRetries int

	// MaxNetworkRetries caps the dedicated network-error retry track.
	MaxNetworkRetries int

	RetryBackoffBase time.Duration
	RetryBackoffCap  time.Duration

	// StartTimeout is how long an optimistic play may wait for the engine
	// to confirm before the stale-event window is force-closed.
	StartTimeout time.Duration

	// SeekTolerance is the maximum distance between a position event and
	// the pending seek target for the event to count as seek arrival.
	SeekTolerance time.Duration

	// OnRetryAttempt may veto a scheduled retry by returning false. It is
	// invoked with the player lock held and must not call back into the
	// player.
	OnRetryAttempt func(err PlaybackError, attempt int) bool

	// OnRecoveryFailed is invoked on its own goroutine when retries are
	// exhausted or the error is not retryable.
	OnRecoveryFailed func(err PlaybackError)
}

func (c Config) withDefaults() Config {
	if c.MaxAutoRetries == 0 {
		c.MaxAutoRetries = 3
	}
	if c.MaxNetworkRetries == 0 {
		c.MaxNetworkRetries = 5
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = time.Second
	}
	if c.RetryBackoffCap == 0 {
		c.RetryBackoffCap = 30 * time.Second
	}
	if c.StartTimeout == 0 {
		c.StartTimeout = 2 * time.Second
	}
	if c.SeekTolerance == 0 {
		c.SeekTolerance = 500 * time.Millisecond
	}
	return c
}

// session is the state shared by the player facade and its managers. The
// mutex serializes all commands and all event handling, so snapshot
// mutations never race; commands and events interleave only while a native
// call is in flight.
type session struct {
	mu sync.Mutex

	port    Port
	emitter *util.Emitter
	log     *log.Entry

	id       InstanceID
	snapshot Snapshot
	disposed bool
}

// update replaces the snapshot with a mutated copy and notifies observers.
// The session mutex must be held.
func (s *session) update(mutate func(*Snapshot)) {
	snap := s.snapshot
	mutate(&snap)
	if snap.PlaybackState != StateError {
		snap.ErrorMessage = ""
	}
	if snap.Duration > 0 && snap.Position > snap.Duration {
		snap.Position = snap.Duration
	}
	s.snapshot = snap
	s.emitter.Emit(SnapshotEvent{Snapshot: snap})
}

// A Player keeps an authoritative snapshot of a native media engine
// consistent with the engine's asynchronous event stream. Commands take
// optimistic effect in the snapshot before the native confirmation arrives.
//
// All methods are safe for concurrent use.
type Player struct {
	util.Emitter

	name string
	cfg  Config

	s   *session
	rec *reconciler
	rcv *recoveryEngine
	seq *sequencer
	dsp *dispatcher
}

// New creates a player on top of the specified engine port. No native
// instance exists until Load or LoadPlaylist is called.
func New(name string, port Port, cfg Config) *Player {
	cfg = cfg.withDefaults()
	p := &Player{name: name, cfg: cfg}
	p.s = &session{
		port:     port,
		emitter:  &p.Emitter,
		log:      log.WithField("player", name),
		snapshot: newSnapshot(),
	}
	p.rec = &reconciler{s: p.s, cfg: &p.cfg}
	p.rcv = &recoveryEngine{s: p.s, cfg: &p.cfg}
	p.seq = &sequencer{s: p.s, load: p.loadTrack}
	p.dsp = &dispatcher{s: p.s, rec: p.rec, rcv: p.rcv, completion: p.seq}
	return p
}

// Name returns the configured player name.
func (p *Player) Name() string { return p.name }

// Snapshot returns the current player state.
func (p *Player) Snapshot() Snapshot {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.snapshot
}

// Events exposes the observer feed. SnapshotEvent is emitted on every
// snapshot replacement, RecoveryFailedEvent when auto-retry gives up.
func (p *Player) Events() *util.Emitter {
	return &p.Emitter
}

// Load replaces whatever is playing with a single source.
func (p *Player) Load(ctx context.Context, source MediaSource) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	p.seq.reset()
	p.s.update(func(snap *Snapshot) {
		snap.Playlist = nil
		snap.PlaylistIndex = -1
	})
	p.s.mu.Unlock()
	return p.createInstance(ctx, source)
}

// LoadPlaylist replaces whatever is playing with an ordered list of sources
// and starts at the specified index.
func (p *Player) LoadPlaylist(ctx context.Context, sources []MediaSource, index int) error {
	if len(sources) == 0 {
		return fmt.Errorf("playlist is empty")
	}
	if index < 0 || index >= len(sources) {
		return fmt.Errorf("playlist index out of range: %d", index)
	}
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	p.seq.reset()
	p.s.update(func(snap *Snapshot) {
		snap.Playlist = sources
		snap.PlaylistIndex = index
		snap.IsShuffled = false
	})
	p.s.mu.Unlock()
	return p.createInstance(ctx, sources[index])
}

// createInstance disposes any current native instance, creates a new one for
// the source and resubscribes the event dispatcher.
func (p *Player) createInstance(ctx context.Context, source MediaSource) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	old := p.s.id
	p.s.id = ""
	p.rec.reset()
	p.rcv.cancelRetryTimer()
	looping := p.s.snapshot.IsLooping
	p.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StateInitializing
		snap.Position = 0
		snap.BufferedPosition = 0
		snap.Duration = 0
		snap.VideoWidth, snap.VideoHeight = 0, 0
		snap.SubtitleTracks, snap.AudioTracks, snap.QualityLevels = nil, nil, nil
		snap.SelectedSubtitle, snap.SelectedAudio, snap.SelectedQuality = "", "", ""
		snap.Chapters = nil
		snap.CurrentChapter = -1
		snap.Metadata = nil
		snap.SubtitleCue = ""
	})
	p.s.mu.Unlock()

	if old != "" {
		if err := p.s.port.Dispose(ctx, old); err != nil {
			p.s.log.Warnf("Could not dispose native instance %q: %v", old, err)
		}
	}

	id, err := p.s.port.Create(ctx, source, CreateOptions{Looping: looping})
	if err != nil {
		p.s.mu.Lock()
		p.s.update(func(snap *Snapshot) {
			snap.PlaybackState = StateError
			snap.ErrorMessage = fmt.Sprintf("could not load %q: %v", source.URI, err)
		})
		p.s.mu.Unlock()
		return fmt.Errorf("could not load %q: %w", source.URI, err)
	}

	p.s.mu.Lock()
	p.s.id = id
	p.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StateReady
	})
	p.s.mu.Unlock()

	if err := p.dsp.subscribe(id); err != nil {
		return err
	}
	if p.cfg.AutoPlay {
		return p.Play(ctx)
	}
	return nil
}

// loadTrack is the sequencer's track loader.
func (p *Player) loadTrack(ctx context.Context, index int) error {
	p.s.mu.Lock()
	snap := p.s.snapshot
	if index < 0 || index >= len(snap.Playlist) {
		p.s.mu.Unlock()
		return fmt.Errorf("playlist index out of range: %d", index)
	}
	source := snap.Playlist[index]
	p.s.update(func(snap *Snapshot) {
		snap.PlaylistIndex = index
	})
	p.s.mu.Unlock()
	return p.createInstance(ctx, source)
}

// Play starts or resumes playback. The snapshot reflects the playing state
// as soon as this method returns, even though the engine confirms later.
func (p *Player) Play(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	p.rec.beginPlay()
	p.s.mu.Unlock()
	return p.s.port.Play(ctx, id)
}

// Pause pauses playback. Explicit user intent always wins over a pending
// optimistic play.
func (p *Player) Pause(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	p.rec.beginPause()
	p.s.mu.Unlock()
	return p.s.port.Pause(ctx, id)
}

// Stop halts playback and rewinds to the start.
func (p *Player) Stop(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	p.rec.beginStop()
	p.s.mu.Unlock()
	return p.s.port.Stop(ctx, id)
}

// TogglePlayPause plays when paused and pauses when playing.
func (p *Player) TogglePlayPause(ctx context.Context) error {
	p.s.mu.Lock()
	state := p.s.snapshot.PlaybackState
	p.s.mu.Unlock()
	if state == StatePlaying || state == StateBuffering {
		return p.Pause(ctx)
	}
	return p.Play(ctx)
}

// SeekTo seeks to an absolute position. Position events that race the seek
// are reconciled against the target with a tolerance window.
func (p *Player) SeekTo(ctx context.Context, pos time.Duration) error {
	if pos < 0 {
		return fmt.Errorf("invalid seek position: %v", pos)
	}
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	if d := p.s.snapshot.Duration; d > 0 && pos > d {
		pos = d
	}
	p.rec.beginSeek(pos)
	p.s.mu.Unlock()
	return p.s.port.SeekTo(ctx, id, pos)
}

// SeekForward seeks ahead by delta, clamped to the media duration.
func (p *Player) SeekForward(ctx context.Context, delta time.Duration) error {
	p.s.mu.Lock()
	target := p.s.snapshot.Position + delta
	if d := p.s.snapshot.Duration; d > 0 && target > d {
		target = d
	}
	p.s.mu.Unlock()
	return p.SeekTo(ctx, target)
}

// SeekBackward seeks back by delta, clamped to the start of the media.
func (p *Player) SeekBackward(ctx context.Context, delta time.Duration) error {
	p.s.mu.Lock()
	target := p.s.snapshot.Position - delta
	if target < 0 {
		target = 0
	}
	p.s.mu.Unlock()
	return p.SeekTo(ctx, target)
}

// SetPlaybackSpeed sets the playback rate. The rate must be positive.
func (p *Player) SetPlaybackSpeed(ctx context.Context, speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("invalid playback speed: %v", speed)
	}
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	p.s.mu.Unlock()
	if err := p.s.port.SetPlaybackSpeed(ctx, id, speed); err != nil {
		return err
	}
	p.s.mu.Lock()
	p.s.update(func(snap *Snapshot) {
		snap.PlaybackSpeed = speed
	})
	p.s.mu.Unlock()
	return nil
}

// SetVolume sets the volume as a uniform float in [0, 1].
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("invalid volume: %v", volume)
	}
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	if id == "" {
		p.s.mu.Unlock()
		return ErrNoInstance
	}
	p.s.mu.Unlock()
	if err := p.s.port.SetVolume(ctx, id, volume); err != nil {
		return err
	}
	p.s.mu.Lock()
	p.s.update(func(snap *Snapshot) {
		snap.Volume = volume
	})
	p.s.mu.Unlock()
	return nil
}

// SetLooping sets whether the current item loops on completion.
func (p *Player) SetLooping(ctx context.Context, looping bool) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	id := p.s.id
	p.s.mu.Unlock()
	if id != "" {
		if err := p.s.port.SetLooping(ctx, id, looping); err != nil {
			return err
		}
	}
	p.s.mu.Lock()
	p.s.update(func(snap *Snapshot) {
		snap.IsLooping = looping
	})
	p.s.mu.Unlock()
	return nil
}

// SetRepeatMode sets the playlist repeat mode.
func (p *Player) SetRepeatMode(mode RepeatMode) error {
	switch mode {
	case RepeatNone, RepeatOne, RepeatAll:
	default:
		return fmt.Errorf("invalid repeat mode: %q", mode)
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.update(func(snap *Snapshot) {
		snap.PlaylistRepeatMode = mode
	})
	return nil
}

// SetShuffle enables or disables shuffled playlist traversal. Enabling it
// never jumps away from the item that is currently playing.
func (p *Player) SetShuffle(enabled bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.seq.setShuffle(enabled)
}

// Next advances to the next playlist item under the current repeat and
// shuffle policy. ErrEndOfPlaylist is returned at the boundary when the
// repeat mode does not wrap.
func (p *Player) Next(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	index, ok := p.seq.next()
	p.s.mu.Unlock()
	if !ok {
		return ErrEndOfPlaylist
	}
	return p.loadTrack(ctx, index)
}

// Previous steps back to the previous playlist item.
func (p *Player) Previous(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	index, ok := p.seq.previous()
	p.s.mu.Unlock()
	if !ok {
		return ErrEndOfPlaylist
	}
	return p.loadTrack(ctx, index)
}

// JumpTo loads the playlist item at the specified index.
func (p *Player) JumpTo(ctx context.Context, index int) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return ErrDisposed
	}
	p.s.mu.Unlock()
	return p.loadTrack(ctx, index)
}

// Dispose tears down the player: timers are cancelled, the event stream is
// abandoned and the native instance is released. Dispose is idempotent.
func (p *Player) Dispose(ctx context.Context) error {
	p.s.mu.Lock()
	if p.s.disposed {
		p.s.mu.Unlock()
		return nil
	}
	p.s.disposed = true
	p.rec.dispose()
	p.rcv.dispose()
	id := p.s.id
	p.s.id = ""
	p.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StateDisposed
	})
	p.s.mu.Unlock()

	if id == "" {
		return nil
	}
	return p.s.port.Dispose(ctx, id)
}
