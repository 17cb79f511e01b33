package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go2tv.app/sonosbox/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"code","message"}. Errors outside the domain
// taxonomy become a generic internal error.
func writeError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.NewError(domain.CodeInternal, "internal server error")
	}
	writeJSON(w, de.HTTPStatus(), domain.NewError(de.Code, de.Message))
}

func writeNotFound(w http.ResponseWriter) {
	writeError(w, domain.NewError(domain.CodeNotFound, "not found"))
}

func writeForbidden(w http.ResponseWriter, _ *http.Request) {
	writeError(w, domain.NewError(domain.CodeForbidden, "forbidden"))
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, domain.NewError(domain.CodeInternal, "internal server error"))
}

func deviceError(action string, err error) error {
	return domain.WrapError(domain.CodeDeviceError, "speaker failed to "+action, err)
}
