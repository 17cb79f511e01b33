// Package config loads the speaker configuration file.
//
// The file is YAML. When it does not exist a default one is written in its
// place so the operator has something to edit:
//
//	path: /srv/music
//	web: ./web
//	speaker:
//	  - ip: 192.168.1.20
//	    sound:
//	      volume: 10
//	      crossfade: false
//	      shuffle: false
//	      repeat: false
//	      loudness: false
//	      treble: 5
//	      bass: 5
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"strings"

	"go2tv.app/sonosbox/internal/domain"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "speakers.yaml"

const defaultWebRoot = "web"

const defaultSpeakerSlots = 3

type Config struct {
	// Path is the media root served under /files.
	Path string `yaml:"path"`
	// Web is the directory holding the browser frontend.
	Web      string    `yaml:"web"`
	Speakers []Speaker `yaml:"speaker"`
}

type Speaker struct {
	IP    string              `yaml:"ip"`
	Sound domain.SoundProfile `yaml:"sound"`
}

// UnmarshalYAML fills omitted sound settings with the profile defaults.
func (s *Speaker) UnmarshalYAML(node *yaml.Node) error {
	type plain Speaker
	raw := plain{Sound: domain.DefaultSoundProfile()}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = Speaker(raw)
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{Web: defaultWebRoot}
	for range defaultSpeakerSlots {
		cfg.Speakers = append(cfg.Speakers, Speaker{
			IP:    "127.0.0.1",
			Sound: domain.DefaultSoundProfile(),
		})
	}
	return cfg
}

// Load reads the configuration at path. A missing file is created with the
// default contents and those defaults are returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := defaultConfig()
		if err := cfg.Write(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if strings.TrimSpace(cfg.Web) == "" {
		cfg.Web = defaultWebRoot
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []string

	for i, s := range c.Speakers {
		addr, err := netip.ParseAddr(strings.TrimSpace(s.IP))
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("speaker[%d].ip %q is not an IP address", i, s.IP))
		case !addr.Is4():
			errs = append(errs, fmt.Sprintf("speaker[%d].ip %q must be IPv4", i, s.IP))
		}
		if s.Sound.Volume > 100 {
			errs = append(errs, fmt.Sprintf("speaker[%d].sound.volume must be between 0 and 100", i))
		}
	}

	if len(errs) > 0 {
		return domain.NewError(domain.CodeInvalidConfig, "configuration errors: "+strings.Join(errs, "; "))
	}
	return nil
}

// Descriptors returns one device descriptor per configured speaker, in file
// order. Validate must have passed.
func (c *Config) Descriptors() []domain.DeviceDescriptor {
	out := make([]domain.DeviceDescriptor, 0, len(c.Speakers))
	for _, s := range c.Speakers {
		addr, err := netip.ParseAddr(strings.TrimSpace(s.IP))
		if err != nil {
			continue
		}
		out = append(out, domain.DeviceDescriptor{Address: addr, Sound: s.Sound})
	}
	return out
}
