package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go2tv.app/sonosbox/internal/access"
	"go2tv.app/sonosbox/internal/metrics"
)

var (
	admitted     = access.Rule{Tier: access.Admitted}
	loopbackOnly = access.Rule{Tier: access.Loopback}
	// Speakers fetch media files whether or not server mode is on.
	speakerFiles = access.Rule{Tier: access.Loopback, AllowDevices: true}
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(metrics.RequestMiddleware(s.metrics))

	r.Group(func(r chi.Router) {
		r.Use(s.guard.Require(speakerFiles))
		r.Get("/files/*", s.handleFile)
		r.Head("/files/*", s.handleFile)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.guard.Require(loopbackOnly))
		r.Handle("/metrics", s.metrics.Handler(func() {
			s.metrics.SetSpeakerSessions(len(s.env.Sessions()))
		}))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.guard.Require(admitted))

		r.Get("/api/filelist", s.handleFileList)
		r.Get("/api/filelist/*", s.handleFileList)

		r.Get("/api/speakers", s.handleSpeakers)
		r.Get("/api/speakers/*", s.handleSpeakers)

		r.Route("/api/control", func(r chi.Router) {
			r.Get("/playback/{address}/{action}", s.handlePlayback)
			r.Get("/play/{address}/*", s.handlePlayFile(playNow))
			r.Get("/next/{address}/*", s.handlePlayFile(playNext))
		})

		r.Get("/*", s.handleStatic)
	})

	return r
}
