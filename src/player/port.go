package player

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDisposed is returned by commands on a player that has been disposed.
	ErrDisposed = errors.New("player is disposed")

	// ErrNoInstance is returned when a command requires a native instance
	// but none has been created yet.
	ErrNoInstance = errors.New("no native player instance")

	// ErrUnsupported is returned by ports for commands the underlying engine
	// cannot perform.
	ErrUnsupported = errors.New("not supported by this engine")

	// ErrEndOfPlaylist is returned by Next and Previous when the playlist
	// boundary is reached and the repeat mode does not wrap.
	ErrEndOfPlaylist = errors.New("end of playlist")
)

// InstanceID identifies a native player instance within a Port.
type InstanceID string

// CreateOptions tune the creation of a native player instance.
type CreateOptions struct {
	AutoPlay      bool
	Looping       bool
	StartPosition time.Duration
	Headers       map[string]string
}

// A Port is the command surface of a native media engine. All methods are
// asynchronous in the sense that they return once the command has been
// issued; confirmation arrives through the event stream.
//
// The engine's internals, its wire format and its rendering are entirely the
// port's concern. The core treats it as a black box.
type Port interface {
	Create(ctx context.Context, source MediaSource, opts CreateOptions) (InstanceID, error)

	Play(ctx context.Context, id InstanceID) error
	Pause(ctx context.Context, id InstanceID) error
	Stop(ctx context.Context, id InstanceID) error
	SeekTo(ctx context.Context, id InstanceID, pos time.Duration) error
	SetPlaybackSpeed(ctx context.Context, id InstanceID, speed float64) error
	SetVolume(ctx context.Context, id InstanceID, volume float64) error
	SetLooping(ctx context.Context, id InstanceID, looping bool) error

	Dispose(ctx context.Context, id InstanceID) error

	// Events returns the ordered event stream for an instance. The channel
	// is closed when the instance is disposed.
	Events(id InstanceID) (<-chan NativeEvent, error)
}
