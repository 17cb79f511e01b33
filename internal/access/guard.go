// Package access decides from the connection's source address alone whether
// a request may reach its handler.
package access

import (
	"net/http"
	"net/netip"
)

type Tier int

const (
	// Loopback admits only requests from the host itself.
	Loopback Tier = iota
	// Admitted admits loopback requests, and everyone when server mode is on.
	Admitted
)

func (t Tier) String() string {
	switch t {
	case Loopback:
		return "loopback"
	case Admitted:
		return "admitted"
	default:
		return "unknown"
	}
}

type DeviceRegistry interface {
	IsKnownDevice(addr netip.Addr) bool
}

type Rule struct {
	Tier Tier
	// AllowDevices also admits managed speakers, whatever the tier and
	// server mode say.
	AllowDevices bool
}

type Guard struct {
	serverMode bool
	devices    DeviceRegistry
	// Deny writes the rejection. It must not reveal why the request was refused.
	Deny http.HandlerFunc
}

func NewGuard(serverMode bool, devices DeviceRegistry) *Guard {
	return &Guard{
		serverMode: serverMode,
		devices:    devices,
		Deny: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		},
	}
}

// SourceAddr extracts the peer address of r from the connection. Forwarding
// headers are ignored.
func SourceAddr(r *http.Request) (netip.Addr, bool) {
	ap, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		addr, err := netip.ParseAddr(r.RemoteAddr)
		if err != nil {
			return netip.Addr{}, false
		}
		return addr.Unmap(), true
	}
	return ap.Addr().Unmap(), true
}

func IsLoopback(addr netip.Addr) bool {
	return addr.Unmap().IsLoopback()
}

func (g *Guard) Allows(rule Rule, addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return false
	}
	if IsLoopback(addr) {
		return true
	}
	if rule.Tier == Admitted && g.serverMode {
		return true
	}
	return rule.AllowDevices && g.devices != nil && g.devices.IsKnownDevice(addr)
}

// Require returns middleware that rejects requests failing rule before next
// runs.
func (g *Guard) Require(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := SourceAddr(r)
			if !ok || !g.Allows(rule, addr) {
				g.Deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
