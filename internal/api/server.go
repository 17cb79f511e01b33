// Package api serves the speaker REST API, the media files speakers stream
// from, and the browser frontend, all on one listener.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"go2tv.app/sonosbox/internal/access"
	"go2tv.app/sonosbox/internal/environment"
	"go2tv.app/sonosbox/internal/media"
	"go2tv.app/sonosbox/internal/metrics"
)

type Deps struct {
	Env     *environment.Environment
	Web     *media.Resolver
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Server struct {
	env     *environment.Environment
	files   *media.Resolver
	web     *media.Resolver
	metrics *metrics.Metrics
	guard   *access.Guard
	logger  *slog.Logger
	router  http.Handler
}

func New(deps Deps) (*Server, error) {
	if deps.Env == nil {
		return nil, errors.New("api: environment is required")
	}
	if deps.Web == nil {
		return nil, errors.New("api: web root is required")
	}
	files, err := media.NewResolver(deps.Env.MediaRoot())
	if err != nil {
		return nil, err
	}

	s := &Server{
		env:     deps.Env,
		files:   files,
		web:     deps.Web,
		metrics: deps.Metrics,
		guard:   access.NewGuard(deps.Env.ServerMode(), deps.Env),
		logger:  deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.guard.Deny = writeForbidden
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
