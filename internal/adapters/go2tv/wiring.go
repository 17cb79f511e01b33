package go2tv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
	"go2tv.app/go2tv/v2/devices"
	"go2tv.app/go2tv/v2/soapcalls"
	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/adapters/sonos"
	"go2tv.app/sonosbox/internal/domain"
)

type Bundle struct {
	Discovery adapters.Discovery
	Speakers  adapters.SpeakerFactory
}

func NewBundle() Bundle {
	return Bundle{
		Discovery: DiscoveryAdapter{},
		Speakers:  NewSpeakerFactory(DLNAFactory{}, nil),
	}
}

type DiscoveryAdapter struct{}

func (DiscoveryAdapter) LoadAllDevices(delaySeconds int) ([]devices.Device, error) {
	return devices.LoadAllDevices(delaySeconds)
}

type DLNAFactory struct{}

func (DLNAFactory) NewTVPayload(o *soapcalls.Options) (adapters.DLNAPayload, error) {
	payload, err := soapcalls.NewTVPayload(o)
	if err != nil {
		return nil, err
	}

	return &DLNAPayloadAdapter{payload: payload}, nil
}

type DLNAPayloadAdapter struct {
	payload *soapcalls.TVPayload
}

func (d *DLNAPayloadAdapter) SendtoTV(action string) error {
	return d.payload.SendtoTV(action)
}

func (d *DLNAPayloadAdapter) GetTransportInfo() ([]string, error) {
	return d.payload.GetTransportInfo()
}

func (d *DLNAPayloadAdapter) GetVolumeSoapCall() (int, error) {
	return d.payload.GetVolumeSoapCall()
}

func (d *DLNAPayloadAdapter) SetVolumeSoapCall(v string) error {
	return d.payload.SetVolumeSoapCall(v)
}

func (d *DLNAPayloadAdapter) SetContext(ctx context.Context) {
	d.payload.SetContext(ctx)
}

func (d *DLNAPayloadAdapter) ControlURLs() (string, string) {
	return d.payload.ControlURL, d.payload.RenderingControlURL
}

// SpeakerFactory opens speakers by resolving their device description with
// go2tv and pairing the resulting transport payload with a Sonos control
// client for the calls go2tv does not expose.
type SpeakerFactory struct {
	dlna adapters.DLNAFactory
	http     *http.Client
	location func(netip.Addr) string
}

func NewSpeakerFactory(dlna adapters.DLNAFactory, httpClient *http.Client) *SpeakerFactory {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	return &SpeakerFactory{
		dlna:     dlna,
		http:     httpClient,
		location: sonos.DescriptionURL,
	}
}

func (f *SpeakerFactory) Connect(ctx context.Context, addr netip.Addr) (adapters.Speaker, error) {
	if !addr.IsValid() {
		return nil, errors.New("invalid speaker address")
	}
	location := f.location(addr)
	payload, err := f.dlna.NewTVPayload(&soapcalls.Options{
		Ctx:   ctx,
		DMR:   location,
		Mtype: "audio/mpeg",
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeDeviceUnreachable, fmt.Sprintf("speaker %s is not reachable", addr), err)
	}

	avTransport, renderingControl := payload.ControlURLs()
	return &SpeakerAdapter{
		location: location,
		payload:  payload,
		Client: sonos.NewClient(sonos.Endpoints{
			AVTransport:      avTransport,
			RenderingControl: renderingControl,
		}, f.http),
	}, nil
}

// SpeakerAdapter drives transport and absolute volume through the go2tv
// payload and everything else through the embedded Sonos client.
type SpeakerAdapter struct {
	*sonos.Client

	location string

	// The payload carries a single context; calls are serialized so each
	// one runs under its own caller's context.
	mu      sync.Mutex
	payload adapters.DLNAPayload
}

func (s *SpeakerAdapter) Location() string {
	return s.location
}

func (s *SpeakerAdapter) send(ctx context.Context, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.SetContext(ctx)
	return s.payload.SendtoTV(action)
}

func (s *SpeakerAdapter) Play(ctx context.Context) error {
	return s.send(ctx, "Play")
}

func (s *SpeakerAdapter) Pause(ctx context.Context) error {
	return s.send(ctx, "Pause")
}

func (s *SpeakerAdapter) Stop(ctx context.Context) error {
	return s.send(ctx, "Stop")
}

func (s *SpeakerAdapter) Volume(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.SetContext(ctx)
	volume, err := s.payload.GetVolumeSoapCall()
	if err != nil {
		return 0, err
	}
	return uint16(min(max(volume, 0), 100)), nil
}

func (s *SpeakerAdapter) SetVolume(ctx context.Context, volume uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.SetContext(ctx)
	return s.payload.SetVolumeSoapCall(strconv.Itoa(int(min(volume, 100))))
}

func (s *SpeakerAdapter) IsPlaying(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload.SetContext(ctx)
	info, err := s.payload.GetTransportInfo()
	if err != nil {
		return false, err
	}
	if len(info) == 0 {
		return false, errors.New("empty transport info")
	}
	return info[0] == "PLAYING", nil
}

var (
	_ adapters.Discovery      = DiscoveryAdapter{}
	_ adapters.DLNAFactory    = DLNAFactory{}
	_ adapters.SpeakerFactory = (*SpeakerFactory)(nil)
	_ adapters.Speaker        = (*SpeakerAdapter)(nil)
)
