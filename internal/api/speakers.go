package api

import (
	"context"
	"net/http"
	"net/netip"

	"go2tv.app/sonosbox/internal/domain"
	"go2tv.app/sonosbox/internal/session"
)

var broadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// speakerFilter turns the address path parameter into a filter. The zero
// Addr means no filtering.
func speakerFilter(raw string) netip.Addr {
	addr, ok := parseSpeakerAddr(raw)
	if !ok || addr.IsUnspecified() || addr == broadcast {
		return netip.Addr{}
	}
	return addr
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	filter := speakerFilter(escapedTail(r, 2))

	views := make([]domain.SpeakerView, 0)
	for _, sess := range s.env.Sessions() {
		addr := sess.ReportedAddress()
		if filter.IsValid() && addr != filter {
			continue
		}
		views = append(views, speakerView(r.Context(), sess, addr))
	}
	writeJSON(w, http.StatusOK, views)
}

// speakerView queries the speaker live. Any failing query leaves its field
// at the zero value.
func speakerView(ctx context.Context, sess *session.Session, addr netip.Addr) domain.SpeakerView {
	view := domain.SpeakerView{IP: addr.String(), TrackName: "None"}

	if track, err := sess.Speaker.Track(ctx); err == nil && track != nil {
		view.TrackName = trackName(track)
		view.TrackDuration = track.Duration
		view.TrackElapsed = track.Elapsed
	}
	if volume, err := sess.Speaker.Volume(ctx); err == nil {
		view.Volume = volume
	}
	if playing, err := sess.Speaker.IsPlaying(ctx); err == nil {
		view.IsPlaying = playing
	}
	return view
}

func trackName(t *domain.Track) string {
	creator := t.Creator
	if creator == "" {
		creator = "unknown"
	}
	return creator + " - " + t.Title
}
