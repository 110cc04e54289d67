package player

import (
	"time"
)

// PlaybackState describes what the player is doing. It is the single source
// of truth; every other snapshot field is interpreted relative to it.
type PlaybackState string

const (
	StateUninitialized PlaybackState = "uninitialized"
	StateInitializing  PlaybackState = "initializing"
	StateReady         PlaybackState = "ready"
	StatePlaying       PlaybackState = "playing"
	StatePaused        PlaybackState = "paused"
	StateCompleted     PlaybackState = "completed"
	StateBuffering     PlaybackState = "buffering"
	StateError         PlaybackState = "error"
	StateDisposed      PlaybackState = "disposed"
)

// RepeatMode controls how the playlist advances past its boundaries.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// BufferingReason tells why the engine is currently buffering.
type BufferingReason string

const (
	BufferingInitial BufferingReason = "initial"
	BufferingSeeking BufferingReason = "seeking"
	BufferingNetwork BufferingReason = "network"
)

// A MediaSource identifies a single playable item.
type MediaSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// A MediaTrackInfo describes a selectable embedded track (subtitle or audio).
type MediaTrackInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label,omitempty"`
	Language string `json:"language,omitempty"`
}

// A QualityInfo describes a selectable video quality variant.
type QualityInfo struct {
	ID      string `json:"id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bitrate int    `json:"bitrate,omitempty"`
}

// A Chapter marks a named region of the media timeline.
type Chapter struct {
	Title string        `json:"title,omitempty"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// A CastDevice is a remote playback target reported by the engine.
type CastDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Metadata holds descriptive information extracted from the media.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	ArtURI   string `json:"arturi,omitempty"`
	Bitrate  int    `json:"bitrate,omitempty"`
	MimeType string `json:"mimetype,omitempty"`
}

// Snapshot is the authoritative player-state value. It is replaced wholesale
// on every mutation; callers only ever observe complete, consistent copies.
type Snapshot struct {
	PlaybackState    PlaybackState `json:"playbackstate"`
	Position         time.Duration `json:"position"`
	BufferedPosition time.Duration `json:"bufferedposition"`
	Duration         time.Duration `json:"duration"`

	PlaybackSpeed float64 `json:"playbackspeed"`
	Volume        float64 `json:"volume"`
	IsLooping     bool    `json:"islooping"`

	Playlist           []MediaSource `json:"playlist,omitempty"`
	PlaylistIndex      int           `json:"playlistindex"`
	PlaylistRepeatMode RepeatMode    `json:"playlistrepeatmode"`
	IsShuffled         bool          `json:"isshuffled"`

	NetworkRetryCount     int             `json:"networkretrycount"`
	IsRecoveringFromError bool            `json:"isrecoveringfromerror"`
	IsNetworkBuffering    bool            `json:"isnetworkbuffering"`
	BufferingReason       BufferingReason `json:"bufferingreason,omitempty"`

	// ErrorMessage is set only while PlaybackState == StateError.
	ErrorMessage string `json:"errormessage,omitempty"`

	VideoWidth  int `json:"videowidth,omitempty"`
	VideoHeight int `json:"videoheight,omitempty"`

	SubtitleTracks   []MediaTrackInfo `json:"subtitletracks,omitempty"`
	AudioTracks      []MediaTrackInfo `json:"audiotracks,omitempty"`
	QualityLevels    []QualityInfo    `json:"qualitylevels,omitempty"`
	SelectedSubtitle string           `json:"selectedsubtitle,omitempty"`
	SelectedAudio    string           `json:"selectedaudio,omitempty"`
	SelectedQuality  string           `json:"selectedquality,omitempty"`

	PictureInPicture   bool `json:"pictureinpicture"`
	Fullscreen         bool `json:"fullscreen"`
	BackgroundPlayback bool `json:"backgroundplayback"`

	Metadata  *Metadata `json:"metadata,omitempty"`
	CastState string    `json:"caststate,omitempty"`

	CastDevices    []CastDevice `json:"castdevices,omitempty"`
	Chapters       []Chapter    `json:"chapters,omitempty"`
	CurrentChapter int          `json:"currentchapter"`

	SubtitleCue string `json:"subtitlecue,omitempty"`
}

// CurrentSource returns the playlist entry the player is on, or nil when no
// playlist is loaded.
func (s Snapshot) CurrentSource() *MediaSource {
	if len(s.Playlist) == 0 || s.PlaylistIndex < 0 || s.PlaylistIndex >= len(s.Playlist) {
		return nil
	}
	src := s.Playlist[s.PlaylistIndex]
	return &src
}

// ChapterAt returns the index of the chapter containing pos, or -1.
func (s Snapshot) ChapterAt(pos time.Duration) int {
	for i, ch := range s.Chapters {
		if pos >= ch.Start && (ch.End == 0 || pos < ch.End) {
			return i
		}
	}
	return -1
}

func newSnapshot() Snapshot {
	return Snapshot{
		PlaybackState:      StateUninitialized,
		PlaybackSpeed:      1.0,
		Volume:             1.0,
		PlaylistIndex:      -1,
		PlaylistRepeatMode: RepeatNone,
		CurrentChapter:     -1,
	}
}
