package player

import (
	"context"
	"fmt"
)

// completionListener receives track-completion notifications. Implemented by
// the sequencer; the indirection keeps the dispatcher free of a dependency
// on playlist progression.
type completionListener interface {
	handleCompleted() func()
}

// The dispatcher is the single consumer of a native instance's event stream.
// Every event passes the guard chain (disposal, redundancy) and is then
// routed to exactly one handler. Events are handled strictly in stream
// order; a handler runs to completion against a stable snapshot before the
// next event is looked at.
type dispatcher struct {
	s          *session
	rec        *reconciler
	rcv        *recoveryEngine
	completion completionListener
}

// subscribe opens the event stream of a native instance and starts the
// consumer. It is called once per instance; the stream ends when the
// instance is disposed.
func (d *dispatcher) subscribe(id InstanceID) error {
	events, err := d.s.port.Events(id)
	if err != nil {
		return fmt.Errorf("could not subscribe to engine events: %w", err)
	}
	go d.run(id, events)
	return nil
}

func (d *dispatcher) run(id InstanceID, events <-chan NativeEvent) {
	for ev := range events {
		d.s.mu.Lock()
		if d.s.id != id {
			// The stream belongs to an instance that has been replaced.
			d.s.mu.Unlock()
			continue
		}
		followUp := d.handle(ev)
		d.s.mu.Unlock()
		if followUp != nil {
			followUp()
		}
	}
}

// handle routes one event. It requires the session mutex; the returned
// follow-up issues native commands and must run after the mutex is
// released.
func (d *dispatcher) handle(ev NativeEvent) func() {
	if d.s.disposed {
		return nil
	}
	eventsDispatchedTotal.WithLabelValues(eventKind(ev)).Inc()

	switch t := ev.(type) {
	case StateChangedEvent:
		// The reconciler sees the event before the redundancy filter so
		// that a confirmation of an optimistic state still closes the
		// stale-event window.
		if !d.rec.handlePlaybackStateChanged(t.State) {
			return nil
		}
		// The engine re-confirming a state the optimistic update already
		// set would only churn observers.
		if t.State == d.s.snapshot.PlaybackState {
			redundantEventsTotal.Inc()
			return nil
		}
		d.s.update(func(snap *Snapshot) {
			snap.PlaybackState = t.State
		})

	case PositionChangedEvent:
		if !d.rec.handlePositionChanged(t.Position) {
			return nil
		}
		d.s.update(func(snap *Snapshot) {
			snap.Position = t.Position
			if len(snap.Chapters) > 0 {
				snap.CurrentChapter = snap.ChapterAt(t.Position)
			}
		})

	case BufferedPositionChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.BufferedPosition = t.Buffered
		})

	case DurationChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.Duration = t.Duration
		})

	case PlaybackSpeedChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.PlaybackSpeed = t.Speed
		})

	case VolumeChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.Volume = t.Volume
		})

	case CompletedEvent:
		return d.handleCompleted()

	case ErrorEvent:
		d.s.update(func(snap *Snapshot) {
			snap.PlaybackState = StateError
			snap.ErrorMessage = t.Err.Error()
		})
		d.rcv.scheduleAutoRetry(t.Err)

	case BufferingStartedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.IsNetworkBuffering = true
			snap.BufferingReason = t.Reason
		})

	case BufferingEndedEvent:
		d.rcv.cancelRetryTimer()
		d.s.update(func(snap *Snapshot) {
			snap.IsNetworkBuffering = false
			snap.BufferingReason = ""
		})

	case NetworkErrorEvent:
		d.rcv.handleNetworkError(t.Message)

	case NetworkStateChangedEvent:
		return d.rcv.handleNetworkStateChange(t.Connected)

	case PlaybackRecoveredEvent:
		d.rcv.handleRecovered()

	case VideoSizeChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.VideoWidth, snap.VideoHeight = t.Width, t.Height
		})

	case SubtitleTracksChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.SubtitleTracks = t.Tracks
		})

	case AudioTracksChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.AudioTracks = t.Tracks
		})

	case QualityTracksChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.QualityLevels = t.Levels
		})

	case SelectedSubtitleChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.SelectedSubtitle = t.ID
		})

	case SelectedAudioChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.SelectedAudio = t.ID
		})

	case SelectedQualityChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.SelectedQuality = t.ID
		})

	case PictureInPictureChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.PictureInPicture = t.Active
		})

	case FullscreenChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.Fullscreen = t.Active
		})

	case BackgroundPlaybackChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.BackgroundPlayback = t.Active
		})

	case MetadataExtractedEvent:
		d.s.update(func(snap *Snapshot) {
			meta := t.Metadata
			snap.Metadata = &meta
		})

	case CastStateChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.CastState = t.State
		})

	case CastDevicesChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.CastDevices = t.Devices
		})

	case ChaptersExtractedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.Chapters = t.Chapters
			snap.CurrentChapter = snap.ChapterAt(snap.Position)
		})

	case CurrentChapterChangedEvent:
		d.s.update(func(snap *Snapshot) {
			snap.CurrentChapter = t.Index
		})

	case SubtitleCueEvent:
		d.s.update(func(snap *Snapshot) {
			snap.SubtitleCue = t.Cue
		})

	default:
		d.s.log.Debugf("Unmapped engine event %#v", ev)
	}
	return nil
}

// handleCompleted applies the completed state and decides what plays next:
// repeat-one restarts the current item, otherwise the sequencer advances.
func (d *dispatcher) handleCompleted() func() {
	d.s.update(func(snap *Snapshot) {
		snap.PlaybackState = StateCompleted
	})

	snap := d.s.snapshot
	if len(snap.Playlist) == 0 {
		return nil
	}
	if snap.PlaylistRepeatMode == RepeatOne {
		id := d.s.id
		port := d.s.port
		plog := d.s.log
		d.rec.beginSeek(0)
		d.rec.beginPlay()
		return func() {
			ctx := context.Background()
			if err := port.SeekTo(ctx, id, 0); err != nil {
				plog.Errorf("Could not restart track: %v", err)
			}
			if err := port.Play(ctx, id); err != nil {
				plog.Errorf("Could not restart track: %v", err)
			}
		}
	}
	return d.completion.handleCompleted()
}
