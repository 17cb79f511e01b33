package environment

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go2tv.app/sonosbox/internal/adapters/speakertest"
	"go2tv.app/sonosbox/internal/session"
)

var hosts = []netip.Addr{netip.MustParseAddr("192.168.1.5"), netip.MustParseAddr("10.0.0.9")}

func sessionAt(location string) *session.Session {
	return &session.Session{Speaker: &speakertest.Speaker{Loc: location}}
}

func TestNewRejectsBadMediaRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := New(filepath.Join(dir, "missing"), nil, hosts, false); err == nil {
		t.Fatal("expected error for missing media root")
	}
	if _, err := New(file, nil, hosts, false); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not-a-directory error, got %v", err)
	}
	if _, err := New("", nil, hosts, false); err == nil {
		t.Fatal("expected error for empty media root")
	}
}

func TestNewRequiresHostAddresses(t *testing.T) {
	if _, err := New(t.TempDir(), nil, nil, false); err == nil {
		t.Fatal("expected error without host addresses")
	}
}

func TestIndexAndLookups(t *testing.T) {
	a := session.Session{Speaker: speakertest.New("192.168.1.20")}
	b := session.Session{Speaker: speakertest.New("192.168.1.21")}
	broken := sessionAt("not a location")

	env, err := New(t.TempDir(), []*session.Session{&a, broken, &b}, hosts, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if !env.IsKnownDevice(netip.MustParseAddr("192.168.1.20")) {
		t.Fatal("expected 192.168.1.20 to be known")
	}
	if !env.IsKnownDevice(netip.MustParseAddr("::ffff:192.168.1.21")) {
		t.Fatal("expected mapped 192.168.1.21 to be known")
	}
	if env.IsKnownDevice(netip.MustParseAddr("192.168.1.99")) {
		t.Fatal("unexpected known device")
	}
	if env.IsKnownDevice(netip.IPv4Unspecified()) {
		t.Fatal("the unknown sentinel must never be a known device")
	}
	if len(env.Sessions()) != 3 {
		t.Fatalf("expected all 3 sessions in the flat list, got %d", len(env.Sessions()))
	}

	got, ok := env.FindSession(netip.MustParseAddr("192.168.1.21"))
	if !ok || got != &b {
		t.Fatalf("FindSession returned %v, %v", got, ok)
	}
	if _, ok := env.FindSession(netip.MustParseAddr("10.0.0.5")); ok {
		t.Fatal("expected no session for 10.0.0.5")
	}
}

func TestFindSessionReturnsFirstMatch(t *testing.T) {
	first := &session.Session{Speaker: speakertest.New("192.168.1.20")}
	second := &session.Session{Speaker: speakertest.New("192.168.1.20")}

	env, err := New(t.TempDir(), []*session.Session{first, second}, hosts, true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, ok := env.FindSession(netip.MustParseAddr("192.168.1.20"))
	if !ok || got != first {
		t.Fatal("expected the first configured session")
	}
	if !env.ServerMode() {
		t.Fatal("expected server mode")
	}
}

func TestFileURL(t *testing.T) {
	env, err := New(t.TempDir(), nil, hosts, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got := env.FileURL(filepath.Join("Albums", "A & B", "01 intro.mp3"))
	want := "http://192.168.1.5:46864/files/Albums%2FA%20&%20B%2F01%20intro.mp3"
	if got != want {
		t.Fatalf("FileURL\n got: %s\nwant: %s", got, want)
	}
}

func TestMediaRootIsAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.Mkdir("music", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	env, err := New("music", nil, hosts, false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !filepath.IsAbs(env.MediaRoot()) {
		t.Fatalf("expected absolute media root, got %s", env.MediaRoot())
	}
}

func stubInterfaces(t *testing.T, ifaces []iface, err error) {
	t.Helper()
	orig := listInterfaces
	listInterfaces = func() ([]iface, error) { return ifaces, err }
	t.Cleanup(func() { listInterfaces = orig })
}

func ipNet(cidr string) *net.IPNet {
	ip, n, _ := net.ParseCIDR(cidr)
	n.IP = ip
	return n
}

func TestHostAddresses(t *testing.T) {
	stubInterfaces(t, []iface{
		{up: true, loop: true, addrs: []net.Addr{ipNet("127.0.0.1/8")}},
		{up: true, addrs: []net.Addr{ipNet("192.168.1.5/24"), ipNet("fe80::1/64")}},
		{up: false, addrs: []net.Addr{ipNet("10.1.1.1/24")}},
		{up: true, addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("10.0.0.9")}}},
	}, nil)

	got, err := HostAddresses()
	if err != nil {
		t.Fatalf("host addresses: %v", err)
	}
	want := []string{"192.168.1.5", "10.0.0.9"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestHostAddressesError(t *testing.T) {
	stubInterfaces(t, nil, errors.New("netlink unavailable"))
	if _, err := HostAddresses(); err == nil {
		t.Fatal("expected error")
	}
}
