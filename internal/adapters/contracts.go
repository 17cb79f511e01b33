package adapters

import (
	"context"
	"net/netip"

	"go2tv.app/go2tv/v2/devices"
	"go2tv.app/go2tv/v2/soapcalls"
	"go2tv.app/sonosbox/internal/domain"
)

type Discovery interface {
	LoadAllDevices(delaySeconds int) ([]devices.Device, error)
}

// Speaker is a connected handle to one physical speaker. Every method is an
// independent network round trip and may fail on its own.
type Speaker interface {
	// Location is the device description URL the handle was opened with.
	Location() string

	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	ClearQueue(ctx context.Context) error
	SetTransportURI(ctx context.Context, uri, metadata string) error
	QueueNext(ctx context.Context, uri, metadata string) error

	IsPlaying(ctx context.Context) (bool, error)
	// Track returns nil when the speaker has nothing loaded.
	Track(ctx context.Context) (*domain.Track, error)
	Volume(ctx context.Context) (uint16, error)

	SetVolume(ctx context.Context, volume uint16) error
	SetVolumeRelative(ctx context.Context, delta int) (uint16, error)
	SetCrossfade(ctx context.Context, enabled bool) error
	SetShuffle(ctx context.Context, enabled bool) error
	SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error
	SetLoudness(ctx context.Context, enabled bool) error
	SetTreble(ctx context.Context, treble int8) error
	SetBass(ctx context.Context, bass int8) error
}

type SpeakerFactory interface {
	Connect(ctx context.Context, addr netip.Addr) (Speaker, error)
}

// DLNAPayload represents a go2tv AVTransport/RenderingControl control channel.
type DLNAPayload interface {
	SendtoTV(action string) error
	GetTransportInfo() ([]string, error)
	GetVolumeSoapCall() (int, error)
	SetVolumeSoapCall(v string) error
	SetContext(ctx context.Context)
	// ControlURLs returns the AVTransport and RenderingControl control URLs
	// resolved from the device description.
	ControlURLs() (avTransport, renderingControl string)
}

type DLNAFactory interface {
	NewTVPayload(o *soapcalls.Options) (DLNAPayload, error)
}
