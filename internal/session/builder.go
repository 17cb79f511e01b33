// Package session opens speaker handles and applies each speaker's baseline
// sound profile.
package session

import (
	"context"
	"log/slog"
	"net/netip"
	"net/url"

	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/domain"
)

// Unknown is the address reported by a session whose handle location cannot
// be parsed.
var Unknown = netip.IPv4Unspecified()

// Session is a live handle to one configured speaker. It is never rebuilt
// or reconnected.
type Session struct {
	Descriptor domain.DeviceDescriptor
	Speaker    adapters.Speaker
}

// ReportedAddress derives the speaker address from the handle's device
// location on every call. Failures yield Unknown.
func (s *Session) ReportedAddress() netip.Addr {
	if s == nil || s.Speaker == nil {
		return Unknown
	}
	u, err := url.Parse(s.Speaker.Location())
	if err != nil || u.Host == "" {
		return Unknown
	}
	addr, err := netip.ParseAddr(u.Hostname())
	if err != nil {
		return Unknown
	}
	return addr.Unmap()
}

type Builder struct {
	factory adapters.SpeakerFactory
	logger  *slog.Logger
}

func NewBuilder(factory adapters.SpeakerFactory, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{factory: factory, logger: logger}
}

// Build connects to the speaker described by d and applies its sound
// profile. Only the connection can fail; every profile step is best effort.
func (b *Builder) Build(ctx context.Context, d domain.DeviceDescriptor) (*Session, error) {
	speaker, err := b.factory.Connect(ctx, d.Address)
	if err != nil {
		b.logger.Warn("speaker_connect_failed",
			slog.String("address", d.Address.String()),
			slog.String("error", err.Error()),
		)
		return nil, domain.WrapError(domain.CodeDeviceUnreachable, "speaker "+d.Address.String()+" is not reachable", err)
	}

	b.applyProfile(ctx, d, speaker)
	b.logger.Info("speaker_connected",
		slog.String("address", d.Address.String()),
		slog.String("location", speaker.Location()),
	)
	return &Session{Descriptor: d, Speaker: speaker}, nil
}

type profileStep struct {
	name string
	run  func(context.Context, adapters.Speaker) error
}

func profileSteps(p domain.SoundProfile) []profileStep {
	repeat := domain.RepeatNone
	if p.Repeat {
		repeat = domain.RepeatAll
	}
	return []profileStep{
		{"stop", func(ctx context.Context, s adapters.Speaker) error { return s.Stop(ctx) }},
		{"volume", func(ctx context.Context, s adapters.Speaker) error { return s.SetVolume(ctx, p.Volume) }},
		{"crossfade", func(ctx context.Context, s adapters.Speaker) error { return s.SetCrossfade(ctx, p.Crossfade) }},
		{"shuffle", func(ctx context.Context, s adapters.Speaker) error { return s.SetShuffle(ctx, p.Shuffle) }},
		{"repeat", func(ctx context.Context, s adapters.Speaker) error { return s.SetRepeatMode(ctx, repeat) }},
		{"loudness", func(ctx context.Context, s adapters.Speaker) error { return s.SetLoudness(ctx, p.Loudness) }},
		{"treble", func(ctx context.Context, s adapters.Speaker) error { return s.SetTreble(ctx, p.Treble) }},
		{"bass", func(ctx context.Context, s adapters.Speaker) error { return s.SetBass(ctx, p.Bass) }},
		{"clear_queue", func(ctx context.Context, s adapters.Speaker) error { return s.ClearQueue(ctx) }},
	}
}

func (b *Builder) applyProfile(ctx context.Context, d domain.DeviceDescriptor, speaker adapters.Speaker) {
	for _, step := range profileSteps(d.Sound) {
		if err := step.run(ctx, speaker); err != nil {
			b.logger.Debug("speaker_profile_step_failed",
				slog.String("address", d.Address.String()),
				slog.String("step", step.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// BuildAll builds a session per descriptor, in order, leaving out the
// speakers that could not be reached.
func (b *Builder) BuildAll(ctx context.Context, descriptors []domain.DeviceDescriptor) []*Session {
	sessions := make([]*Session, 0, len(descriptors))
	for _, d := range descriptors {
		s, err := b.Build(ctx, d)
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}
