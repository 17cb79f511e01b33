package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go2tv.app/sonosbox/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speakers.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
path: /srv/music
web: /srv/web
speaker:
  - ip: 192.168.1.20
    sound:
      volume: 25
      crossfade: true
      shuffle: false
      repeat: true
      loudness: true
      treble: -2
      bass: 3
  - ip: 192.168.1.21
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path != "/srv/music" {
		t.Errorf("Path = %q, want /srv/music", cfg.Path)
	}
	if cfg.Web != "/srv/web" {
		t.Errorf("Web = %q, want /srv/web", cfg.Web)
	}
	if len(cfg.Speakers) != 2 {
		t.Fatalf("len(Speakers) = %d, want 2", len(cfg.Speakers))
	}

	want := domain.SoundProfile{Volume: 25, Crossfade: true, Repeat: true, Loudness: true, Treble: -2, Bass: 3}
	if cfg.Speakers[0].Sound != want {
		t.Errorf("Speakers[0].Sound = %+v, want %+v", cfg.Speakers[0].Sound, want)
	}
	if cfg.Speakers[1].Sound != domain.DefaultSoundProfile() {
		t.Errorf("Speakers[1].Sound = %+v, want defaults", cfg.Speakers[1].Sound)
	}
}

func TestLoad_PartialSoundKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
path: /srv/music
speaker:
  - ip: 10.0.0.5
    sound:
      volume: 40
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := cfg.Speakers[0].Sound
	if got.Volume != 40 || got.Treble != 5 || got.Bass != 5 {
		t.Errorf("Sound = %+v, want volume 40 with default treble/bass", got)
	}
	if cfg.Web != "web" {
		t.Errorf("Web = %q, want default web", cfg.Web)
	}
}

func TestLoad_MissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "speakers.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Speakers) != 3 {
		t.Fatalf("len(Speakers) = %d, want 3", len(cfg.Speakers))
	}
	for i, s := range cfg.Speakers {
		if s.IP != "127.0.0.1" {
			t.Errorf("Speakers[%d].IP = %q, want 127.0.0.1", i, s.IP)
		}
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if len(reloaded.Speakers) != 3 || reloaded.Speakers[2].Sound != domain.DefaultSoundProfile() {
		t.Errorf("reloaded config = %+v, want the written defaults", reloaded)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "speaker: [\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		volume  uint16
		wantErr string
	}{
		{name: "valid", ip: "192.168.0.10", volume: 100},
		{name: "not an address", ip: "kitchen", volume: 10, wantErr: "is not an IP address"},
		{name: "ipv6", ip: "fe80::1", volume: 10, wantErr: "must be IPv4"},
		{name: "volume too high", ip: "192.168.0.10", volume: 101, wantErr: "volume must be between 0 and 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Speakers: []Speaker{{IP: tt.ip, Sound: domain.SoundProfile{Volume: tt.volume}}}}
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
			if code := domain.CodeOf(err); code != domain.CodeInvalidConfig {
				t.Fatalf("Validate() code = %s, want %s", code, domain.CodeInvalidConfig)
			}
		})
	}
}

func TestDescriptorsPreserveOrder(t *testing.T) {
	cfg := &Config{Speakers: []Speaker{
		{IP: "10.0.0.2", Sound: domain.SoundProfile{Volume: 1}},
		{IP: "10.0.0.1", Sound: domain.SoundProfile{Volume: 2}},
		{IP: "10.0.0.2", Sound: domain.SoundProfile{Volume: 3}},
	}}

	got := cfg.Descriptors()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantAddrs := []string{"10.0.0.2", "10.0.0.1", "10.0.0.2"}
	for i, d := range got {
		if d.Address != netip.MustParseAddr(wantAddrs[i]) {
			t.Errorf("[%d].Address = %s, want %s", i, d.Address, wantAddrs[i])
		}
		if d.Sound.Volume != uint16(i+1) {
			t.Errorf("[%d].Sound.Volume = %d, want %d", i, d.Sound.Volume, i+1)
		}
	}
}
