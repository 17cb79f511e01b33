// Package discovery finds UPnP media renderers on the LAN so their addresses
// can be copied into the speaker configuration.
package discovery

import (
	"context"
	"errors"
	"math"
	"net"
	"net/netip"
	"net/url"
	"sort"
	"strings"
	"time"

	"go2tv.app/go2tv/v2/devices"
	"go2tv.app/sonosbox/internal/adapters"
	"go2tv.app/sonosbox/internal/domain"
)

const (
	DefaultTimeout               = 3 * time.Second
	reachabilityWait             = 400 * time.Millisecond
	defaultDiscoveryDelaySeconds = 1
	maxPerAttemptTimeout         = 3 * time.Second
)

var isReachableAddress = defaultReachableAddress

type Service struct {
	adapter adapters.Discovery
}

func NewService(adapter adapters.Discovery) *Service {
	return &Service{adapter: adapter}
}

// Renderers searches for DLNA renderers until one answers or timeout runs
// out. Chromecast receivers are left out; they cannot be driven as speakers.
func (s *Service) Renderers(ctx context.Context, timeout time.Duration, includeUnreachable bool) ([]domain.Device, error) {
	if s.adapter == nil {
		return nil, errors.New("discovery adapter is not configured")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type result struct {
		devices []devices.Device
		err     error
	}
	resultCh := make(chan result, 1)
	go func() {
		loaded, err := s.loadUntil(ctx, time.Now().Add(timeout))
		resultCh <- result{devices: loaded, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return []domain.Device{}, nil
	case res := <-resultCh:
		if res.err != nil {
			if errors.Is(res.err, devices.ErrNoDeviceAvailable) {
				return []domain.Device{}, nil
			}
			return nil, res.err
		}

		found := normalizeDevices(res.devices)
		if !includeUnreachable {
			found = filterReachable(found)
		}
		sortDevices(found)
		return found, nil
	}
}

func (s *Service) loadUntil(ctx context.Context, deadline time.Time) ([]devices.Device, error) {
	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr == nil || errors.Is(lastErr, devices.ErrNoDeviceAvailable) {
				return []devices.Device{}, nil
			}
			return nil, lastErr
		}

		loaded, err := s.adapter.LoadAllDevices(delaySeconds(min(remaining, maxPerAttemptTimeout)))
		if err == nil {
			return loaded, nil
		}
		if !errors.Is(err, devices.ErrNoDeviceAvailable) {
			return nil, err
		}
		lastErr = err
	}
}

func delaySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds <= 0 {
		return defaultDiscoveryDelaySeconds
	}
	return seconds
}

func normalizeDevices(discovered []devices.Device) []domain.Device {
	seen := make(map[string]struct{}, len(discovered))
	result := make([]domain.Device, 0, len(discovered))
	for _, raw := range discovered {
		if !strings.Contains(strings.ToLower(raw.Type), "dlna") {
			continue
		}
		location := strings.TrimSpace(raw.Addr)
		if _, dup := seen[location]; dup {
			continue
		}
		seen[location] = struct{}{}

		result = append(result, domain.Device{
			Name:     strings.TrimSpace(raw.Name),
			Address:  hostAddress(location),
			Location: location,
			Type:     strings.TrimSpace(raw.Type),
		})
	}
	return result
}

func hostAddress(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	addr, err := netip.ParseAddr(u.Hostname())
	if err != nil {
		return u.Hostname()
	}
	return addr.Unmap().String()
}

func filterReachable(all []domain.Device) []domain.Device {
	filtered := make([]domain.Device, 0, len(all))
	for _, dev := range all {
		if isReachableAddress(dev.Location, reachabilityWait) {
			filtered = append(filtered, dev)
		}
	}
	return filtered
}

func sortDevices(all []domain.Device) {
	sort.Slice(all, func(i, j int) bool {
		if strings.ToLower(all[i].Name) != strings.ToLower(all[j].Name) {
			return strings.ToLower(all[i].Name) < strings.ToLower(all[j].Name)
		}
		return all[i].Location < all[j].Location
	})
}

func defaultReachableAddress(location string, timeout time.Duration) bool {
	parsed, err := url.Parse(location)
	if err != nil || parsed.Host == "" {
		return false
	}

	hostPort := parsed.Host
	if parsed.Port() == "" {
		hostPort = net.JoinHostPort(parsed.Hostname(), "80")
	}

	conn, err := net.DialTimeout("tcp", hostPort, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
