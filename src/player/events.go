package player

import (
	"fmt"
	"time"
)

// ErrorCategory classifies a playback error for retryability decisions.
type ErrorCategory string

const (
	ErrorCategoryNetwork ErrorCategory = "network"
	ErrorCategoryCodec   ErrorCategory = "codec"
	ErrorCategorySource  ErrorCategory = "source"
	ErrorCategoryDRM     ErrorCategory = "drm"
	ErrorCategoryUnknown ErrorCategory = "unknown"
)

// A PlaybackError is an error reported by the native engine through its
// event stream.
type PlaybackError struct {
	Code     string
	Message  string
	Category ErrorCategory

	// RetryCount is the number of recovery attempts already made for this
	// error, RetriesRemaining how many the engine permits on top of that.
	RetryCount       int
	RetriesRemaining int
}

func (e PlaybackError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// NativeEvent is one element of the event stream produced by a Port. The set
// of variants is closed; the dispatcher routes on the concrete type.
type NativeEvent interface {
	nativeEvent()
}

type StateChangedEvent struct{ State PlaybackState }

type PositionChangedEvent struct{ Position time.Duration }

type BufferedPositionChangedEvent struct{ Buffered time.Duration }

type DurationChangedEvent struct{ Duration time.Duration }

type CompletedEvent struct{}

type ErrorEvent struct{ Err PlaybackError }

type VideoSizeChangedEvent struct{ Width, Height int }

type SubtitleTracksChangedEvent struct{ Tracks []MediaTrackInfo }

type AudioTracksChangedEvent struct{ Tracks []MediaTrackInfo }

type QualityTracksChangedEvent struct{ Levels []QualityInfo }

type SelectedSubtitleChangedEvent struct{ ID string }

type SelectedAudioChangedEvent struct{ ID string }

type SelectedQualityChangedEvent struct{ ID string }

type PictureInPictureChangedEvent struct{ Active bool }

type FullscreenChangedEvent struct{ Active bool }

type BackgroundPlaybackChangedEvent struct{ Active bool }

type PlaybackSpeedChangedEvent struct{ Speed float64 }

type VolumeChangedEvent struct{ Volume float64 }

type BufferingStartedEvent struct{ Reason BufferingReason }

type BufferingEndedEvent struct{}

type NetworkErrorEvent struct{ Message string }

type PlaybackRecoveredEvent struct{}

type NetworkStateChangedEvent struct{ Connected bool }

type MetadataExtractedEvent struct{ Metadata Metadata }

type CastStateChangedEvent struct{ State string }

type CastDevicesChangedEvent struct{ Devices []CastDevice }

type ChaptersExtractedEvent struct{ Chapters []Chapter }

type CurrentChapterChangedEvent struct{ Index int }

type SubtitleCueEvent struct{ Cue string }

func (StateChangedEvent) nativeEvent()              {}
func (PositionChangedEvent) nativeEvent()           {}
func (BufferedPositionChangedEvent) nativeEvent()   {}
func (DurationChangedEvent) nativeEvent()           {}
func (CompletedEvent) nativeEvent()                 {}
func (ErrorEvent) nativeEvent()                     {}
func (VideoSizeChangedEvent) nativeEvent()          {}
func (SubtitleTracksChangedEvent) nativeEvent()     {}
func (AudioTracksChangedEvent) nativeEvent()        {}
func (QualityTracksChangedEvent) nativeEvent()      {}
func (SelectedSubtitleChangedEvent) nativeEvent()   {}
func (SelectedAudioChangedEvent) nativeEvent()      {}
func (SelectedQualityChangedEvent) nativeEvent()    {}
func (PictureInPictureChangedEvent) nativeEvent()   {}
func (FullscreenChangedEvent) nativeEvent()         {}
func (BackgroundPlaybackChangedEvent) nativeEvent() {}
func (PlaybackSpeedChangedEvent) nativeEvent()      {}
func (VolumeChangedEvent) nativeEvent()             {}
func (BufferingStartedEvent) nativeEvent()          {}
func (BufferingEndedEvent) nativeEvent()            {}
func (NetworkErrorEvent) nativeEvent()              {}
func (PlaybackRecoveredEvent) nativeEvent()         {}
func (NetworkStateChangedEvent) nativeEvent()       {}
func (MetadataExtractedEvent) nativeEvent()         {}
func (CastStateChangedEvent) nativeEvent()          {}
func (CastDevicesChangedEvent) nativeEvent()        {}
func (ChaptersExtractedEvent) nativeEvent()         {}
func (CurrentChapterChangedEvent) nativeEvent()     {}
func (SubtitleCueEvent) nativeEvent()               {}

// eventKind labels a native event for logging and metrics.
func eventKind(ev NativeEvent) string {
	switch ev.(type) {
	case StateChangedEvent:
		return "state"
	case PositionChangedEvent:
		return "position"
	case BufferedPositionChangedEvent:
		return "buffered"
	case DurationChangedEvent:
		return "duration"
	case CompletedEvent:
		return "completed"
	case ErrorEvent:
		return "error"
	case VideoSizeChangedEvent:
		return "videosize"
	case SubtitleTracksChangedEvent, AudioTracksChangedEvent, QualityTracksChangedEvent:
		return "tracks"
	case SelectedSubtitleChangedEvent, SelectedAudioChangedEvent, SelectedQualityChangedEvent:
		return "selection"
	case PictureInPictureChangedEvent, FullscreenChangedEvent, BackgroundPlaybackChangedEvent:
		return "presentation"
	case PlaybackSpeedChangedEvent:
		return "speed"
	case VolumeChangedEvent:
		return "volume"
	case BufferingStartedEvent, BufferingEndedEvent:
		return "buffering"
	case NetworkErrorEvent, NetworkStateChangedEvent, PlaybackRecoveredEvent:
		return "network"
	case MetadataExtractedEvent:
		return "metadata"
	case CastStateChangedEvent, CastDevicesChangedEvent:
		return "cast"
	case ChaptersExtractedEvent, CurrentChapterChangedEvent:
		return "chapter"
	case SubtitleCueEvent:
		return "subtitlecue"
	default:
		return "unknown"
	}
}

// SnapshotEvent is broadcast to observers whenever the snapshot is replaced.
type SnapshotEvent struct {
	Snapshot Snapshot
}

// RecoveryFailedEvent is broadcast when auto-retry gives up on an error.
type RecoveryFailedEvent struct {
	Err PlaybackError
}
