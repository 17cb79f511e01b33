// Package speakertest provides in-memory speaker handles for tests.
package speakertest

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/domain"
)

var ErrInjected = errors.New("injected speaker failure")

// Speaker records every call and answers from its fields. Calls named in
// Fail return ErrInjected. The zero value is usable.
type Speaker struct {
	mu sync.Mutex

	Loc          string
	Playing      bool
	CurrentTrack *domain.Track
	Vol          uint16
	Fail         map[string]bool

	calls []string
	// URIs holds every uri given to SetTransportURI or QueueNext.
	URIs []string
}

func New(addr string) *Speaker {
	return &Speaker{Loc: fmt.Sprintf("http://%s:1400/xml/device_description.xml", addr)}
}

func (s *Speaker) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Speaker) record(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	if s.Fail[name] {
		return ErrInjected
	}
	return nil
}

func (s *Speaker) Location() string { return s.Loc }

func (s *Speaker) Play(context.Context) error {
	if err := s.record("Play"); err != nil {
		return err
	}
	s.mu.Lock()
	s.Playing = true
	s.mu.Unlock()
	return nil
}

func (s *Speaker) Pause(context.Context) error {
	if err := s.record("Pause"); err != nil {
		return err
	}
	s.mu.Lock()
	s.Playing = false
	s.mu.Unlock()
	return nil
}

func (s *Speaker) Stop(context.Context) error {
	if err := s.record("Stop"); err != nil {
		return err
	}
	s.mu.Lock()
	s.Playing = false
	s.mu.Unlock()
	return nil
}

func (s *Speaker) Next(context.Context) error       { return s.record("Next") }
func (s *Speaker) Previous(context.Context) error   { return s.record("Previous") }
func (s *Speaker) ClearQueue(context.Context) error { return s.record("ClearQueue") }

func (s *Speaker) SetTransportURI(_ context.Context, uri, _ string) error {
	if err := s.record("SetTransportURI"); err != nil {
		return err
	}
	s.mu.Lock()
	s.URIs = append(s.URIs, uri)
	s.mu.Unlock()
	return nil
}

func (s *Speaker) QueueNext(_ context.Context, uri, _ string) error {
	if err := s.record("QueueNext"); err != nil {
		return err
	}
	s.mu.Lock()
	s.URIs = append(s.URIs, uri)
	s.mu.Unlock()
	return nil
}

func (s *Speaker) IsPlaying(context.Context) (bool, error) {
	if err := s.record("IsPlaying"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Playing, nil
}

func (s *Speaker) Track(context.Context) (*domain.Track, error) {
	if err := s.record("Track"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CurrentTrack, nil
}

func (s *Speaker) Volume(context.Context) (uint16, error) {
	if err := s.record("Volume"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Vol, nil
}

func (s *Speaker) SetVolume(_ context.Context, v uint16) error {
	if err := s.record("SetVolume"); err != nil {
		return err
	}
	s.mu.Lock()
	s.Vol = v
	s.mu.Unlock()
	return nil
}

func (s *Speaker) SetVolumeRelative(_ context.Context, delta int) (uint16, error) {
	if err := s.record("SetVolumeRelative"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := int(s.Vol) + delta
	s.Vol = uint16(max(0, min(100, v)))
	return s.Vol, nil
}

func (s *Speaker) SetCrossfade(context.Context, bool) error { return s.record("SetCrossfade") }
func (s *Speaker) SetShuffle(context.Context, bool) error   { return s.record("SetShuffle") }
func (s *Speaker) SetRepeatMode(context.Context, domain.RepeatMode) error {
	return s.record("SetRepeatMode")
}
func (s *Speaker) SetLoudness(context.Context, bool) error { return s.record("SetLoudness") }
func (s *Speaker) SetTreble(context.Context, int8) error   { return s.record("SetTreble") }
func (s *Speaker) SetBass(context.Context, int8) error     { return s.record("SetBass") }

type Factory struct {
	mu       sync.Mutex
	speakers map[netip.Addr]*Speaker
	attempts []netip.Addr
}

func NewFactory() *Factory {
	return &Factory{speakers: map[netip.Addr]*Speaker{}}
}

func (f *Factory) Add(addr string) *Speaker {
	s := New(addr)
	f.mu.Lock()
	f.speakers[netip.MustParseAddr(addr)] = s
	f.mu.Unlock()
	return s
}

func (f *Factory) Attempts() []netip.Addr {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]netip.Addr(nil), f.attempts...)
}

func (f *Factory) Connect(_ context.Context, addr netip.Addr) (adapters.Speaker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, addr)
	s, ok := f.speakers[addr]
	if !ok {
		return nil, fmt.Errorf("dial %s: connection refused", addr)
	}
	return s, nil
}

var (
	_ adapters.Speaker        = (*Speaker)(nil)
	_ adapters.SpeakerFactory = (*Factory)(nil)
)
