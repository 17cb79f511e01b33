// Package environment holds the read-only state shared by every request:
// the media root, the live speaker sessions and the host's own addresses.
package environment

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go2tv.app/sonosbox/internal/session"
)

const ListenPort = 46864

type Environment struct {
	mediaRoot  string
	sessions   []*session.Session
	hostAddrs  []netip.Addr
	index      map[netip.Addr]*session.Session
	serverMode bool
}

// ValidateInputs checks the media root and host addresses. It runs before
// any speaker is contacted so a bad setup leaves the speakers untouched.
func ValidateInputs(mediaRoot string, hostAddrs []netip.Addr) error {
	info, err := os.Stat(mediaRoot)
	if err != nil {
		return fmt.Errorf("media root %q: %w", mediaRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root %q is not a directory", mediaRoot)
	}
	if len(hostAddrs) == 0 {
		return errors.New("no usable host IPv4 address found")
	}
	return nil
}

// New builds the reverse index from each session's reported address. The
// result is never mutated.
func New(mediaRoot string, sessions []*session.Session, hostAddrs []netip.Addr, serverMode bool) (*Environment, error) {
	if err := ValidateInputs(mediaRoot, hostAddrs); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(mediaRoot)
	if err != nil {
		return nil, fmt.Errorf("media root %q: %w", mediaRoot, err)
	}

	index := make(map[netip.Addr]*session.Session, len(sessions))
	for _, s := range sessions {
		addr := s.ReportedAddress()
		if _, exists := index[addr]; !exists {
			index[addr] = s
		}
	}

	return &Environment{
		mediaRoot:  root,
		sessions:   append([]*session.Session(nil), sessions...),
		hostAddrs:  append([]netip.Addr(nil), hostAddrs...),
		index:      index,
		serverMode: serverMode,
	}, nil
}

func (e *Environment) MediaRoot() string { return e.mediaRoot }

func (e *Environment) ServerMode() bool { return e.serverMode }

func (e *Environment) Sessions() []*session.Session {
	return append([]*session.Session(nil), e.sessions...)
}

// IsKnownDevice reports whether addr belongs to a speaker recorded in the
// reverse index. Sessions with no usable address never match.
func (e *Environment) IsKnownDevice(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() || addr == session.Unknown {
		return false
	}
	_, ok := e.index[addr]
	return ok
}

// FindSession returns the first session, in configuration order, whose
// currently reported address is addr.
func (e *Environment) FindSession(addr netip.Addr) (*session.Session, bool) {
	addr = addr.Unmap()
	for _, s := range e.sessions {
		if s.ReportedAddress() == addr {
			return s, true
		}
	}
	return nil, false
}

// FileURL is the URL a speaker fetches the media file rel (relative to the
// media root) from. Separators are escaped along with everything else; the
// file route decodes the tail exactly once.
func (e *Environment) FileURL(rel string) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(e.hostAddrs[0].String(), strconv.Itoa(ListenPort)),
	}
	return u.String() + "/files/" + url.PathEscape(filepath.ToSlash(rel))
}
