package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/media"
	"go2tv.app/sonosbox/internal/session"
)

type playbackCommand func(ctx context.Context, sp adapters.Speaker) error

func relativeVolume(delta int) playbackCommand {
	return func(ctx context.Context, sp adapters.Speaker) error {
		_, err := sp.SetVolumeRelative(ctx, delta)
		return err
	}
}

var playbackCommands = map[string]playbackCommand{
	"play":        func(ctx context.Context, sp adapters.Speaker) error { return sp.Play(ctx) },
	"pause":       func(ctx context.Context, sp adapters.Speaker) error { return sp.Pause(ctx) },
	"stop":        func(ctx context.Context, sp adapters.Speaker) error { return sp.Stop(ctx) },
	"next":        func(ctx context.Context, sp adapters.Speaker) error { return sp.Next(ctx) },
	"previous":    func(ctx context.Context, sp adapters.Speaker) error { return sp.Previous(ctx) },
	"queue-clear": func(ctx context.Context, sp adapters.Speaker) error { return sp.ClearQueue(ctx) },
	"v-inc":       relativeVolume(1),
	"v-dec":       relativeVolume(-1),
}

// sessionFor resolves the address parameter to a session, writing a 404
// when there is none.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	addr, ok := parseSpeakerAddr(chi.URLParam(r, "address"))
	if !ok {
		writeNotFound(w)
		return nil, false
	}
	sess, ok := s.env.FindSession(addr)
	if !ok {
		writeNotFound(w)
		return nil, false
	}
	return sess, true
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	cmd, ok := playbackCommands[action]
	if !ok {
		writeNotFound(w)
		return
	}
	sess, ok := s.sessionFor(w, r)
	if !ok {
		return
	}

	err := cmd(r.Context(), sess.Speaker)
	s.metrics.ObserveCommand(action, err)
	if err != nil {
		s.logCommandError(r, sess, action, err)
		writeError(w, deviceError(action, err))
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type placement int

const (
	playNow placement = iota
	playNext
)

func (p placement) action() string {
	if p == playNext {
		return "queue_next"
	}
	return "play_file"
}

// handlePlayFile points the speaker at a media file, either replacing what
// it plays or queueing the file after the current track, and starts playback
// if the speaker is idle.
func (s *Server) handlePlayFile(p placement) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFor(w, r)
		if !ok {
			return
		}

		path, err := s.files.ResolveEscaped(escapedTail(r, 4))
		if err != nil || !media.AllowedAudio(path) {
			writeNotFound(w)
			return
		}
		f, _, err := media.Open(path)
		if err != nil {
			writeNotFound(w)
			return
		}
		_ = f.Close()
		rel, err := s.files.Rel(path)
		if err != nil {
			writeNotFound(w)
			return
		}

		uri := s.env.FileURL(rel)
		ctx := r.Context()
		action := p.action()
		if p == playNext {
			err = sess.Speaker.QueueNext(ctx, uri, "")
		} else {
			err = sess.Speaker.SetTransportURI(ctx, uri, "")
		}
		s.metrics.ObserveCommand(action, err)
		if err != nil {
			s.logCommandError(r, sess, action, err)
			writeError(w, deviceError(action, err))
			return
		}

		// An unanswered playing check counts as idle.
		if playing, err := sess.Speaker.IsPlaying(ctx); err != nil || !playing {
			err := sess.Speaker.Play(ctx)
			s.metrics.ObserveCommand("play", err)
			if err != nil {
				s.logCommandError(r, sess, "play", err)
				writeError(w, deviceError("play", err))
				return
			}
		}

		s.logger.Debug("speaker_media_set",
			slog.String("speaker", sess.ReportedAddress().String()),
			slog.String("action", action),
			slog.String("uri", uri),
			slog.String("request_id", requestID(r)),
		)
		writeJSON(w, http.StatusOK, nil)
	}
}

func (s *Server) logCommandError(r *http.Request, sess *session.Session, action string, err error) {
	s.logger.Warn("speaker_command_failed",
		slog.String("speaker", sess.ReportedAddress().String()),
		slog.String("action", action),
		slog.String("error", err.Error()),
		slog.String("request_id", requestID(r)),
	)
}
