// Package diagnostics checks that the host can run the controller before it
// is started for real.
package diagnostics

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"

	"go2tv.app/sonosbox/internal/config"
	"go2tv.app/sonosbox/internal/environment"
)

var (
	statPath      = os.Stat
	hostAddresses = environment.HostAddresses
	listen        = net.Listen
)

type ConfigStatus struct {
	Path     string `json:"path"`
	Loaded   bool   `json:"loaded"`
	Error    string `json:"error,omitempty"`
	Speakers int    `json:"speakers"`
}

type PathStatus struct {
	Path  string `json:"path"`
	Found bool   `json:"found"`
	IsDir bool   `json:"is_dir"`
}

type PortStatus struct {
	Port      int    `json:"port"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Config        ConfigStatus `json:"config"`
	MediaRoot     PathStatus   `json:"media_root"`
	WebIndex      PathStatus   `json:"web_index"`
	HostAddresses []string     `json:"host_addresses"`
	Listener      PortStatus   `json:"listener"`
	// Ready is true when startup would not fail on any checked condition.
	Ready bool `json:"ready"`
}

// SelfTest reports on the loaded configuration (or the error loading it),
// the directories it names, the host addresses and the listen port.
func SelfTest(configPath string, cfg *config.Config, loadErr error) Report {
	report := Report{
		Config:        ConfigStatus{Path: configPath, Loaded: loadErr == nil && cfg != nil},
		HostAddresses: []string{},
	}
	if loadErr != nil {
		report.Config.Error = loadErr.Error()
	}
	if cfg != nil {
		report.Config.Speakers = len(cfg.Speakers)
		report.MediaRoot = checkPath(cfg.Path)
		report.WebIndex = checkPath(filepath.Join(cfg.Web, "index.html"))
	}

	addrs, err := hostAddresses()
	if err == nil {
		for _, a := range addrs {
			report.HostAddresses = append(report.HostAddresses, a.String())
		}
	}

	report.Listener = checkPort(environment.ListenPort)

	report.Ready = report.Config.Loaded &&
		report.MediaRoot.Found && report.MediaRoot.IsDir &&
		len(report.HostAddresses) > 0 &&
		report.Listener.Available
	return report
}

func checkPath(path string) PathStatus {
	status := PathStatus{Path: path}
	if path == "" {
		return status
	}
	info, err := statPath(path)
	if err != nil {
		return status
	}
	status.Found = true
	status.IsDir = info.IsDir()
	return status
}

func checkPort(port int) PortStatus {
	status := PortStatus{Port: port}
	addr := netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(port))
	ln, err := listen("tcp", addr.String())
	if err != nil {
		status.Error = fmt.Sprintf("cannot bind %s: %v", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)), err)
		return status
	}
	_ = ln.Close()
	status.Available = true
	return status
}
