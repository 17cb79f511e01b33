package api

import (
	"net/http"
	"os"
	"path/filepath"

	"go2tv.app/sonosbox/internal/media"
)

const indexDocument = "index.html"

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.files.ResolveEscaped(escapedTail(r, 1))
	if err != nil || !media.AllowedAudio(path) {
		writeNotFound(w)
		return
	}
	if err := media.ServeFile(w, r, path); err != nil {
		writeNotFound(w)
		return
	}
	s.metrics.IncFilesServed()
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.files.List(escapedTail(r, 2)))
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	path, err := s.web.ResolveEscaped(escapedTail(r, 0))
	if err != nil {
		writeNotFound(w)
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, indexDocument)
	}
	if err := media.ServeFile(w, r, path); err != nil {
		writeNotFound(w)
	}
}
