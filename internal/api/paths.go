package api

import (
	"net/http"
	"net/netip"
	"strings"
)

// escapedTail returns the still percent-encoded remainder of the request
// path after its first n segments. Decoding is left to the media resolver so
// it happens exactly once.
func escapedTail(r *http.Request, n int) string {
	p := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	parts := strings.SplitN(p, "/", n+1)
	if len(parts) <= n {
		return ""
	}
	return parts[n]
}

func parseSpeakerAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
