package environment

import (
	"fmt"
	"net"
	"net/netip"
)

type iface struct {
	up    bool
	loop  bool
	addrs []net.Addr
}

var listInterfaces = func() ([]iface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]iface, 0, len(ifaces))
	for _, ifc := range ifaces {
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		out = append(out, iface{
			up:    ifc.Flags&net.FlagUp != 0,
			loop:  ifc.Flags&net.FlagLoopback != 0,
			addrs: addrs,
		})
	}
	return out, nil
}

// HostAddresses returns the IPv4 addresses of every interface that is up and
// not loopback, in interface order.
func HostAddresses() ([]netip.Addr, error) {
	ifaces, err := listInterfaces()
	if err != nil {
		return nil, fmt.Errorf("listing network interfaces: %w", err)
	}

	var out []netip.Addr
	for _, ifc := range ifaces {
		if !ifc.up || ifc.loop {
			continue
		}
		for _, a := range ifc.addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			default:
				continue
			}
			addr, ok := netip.AddrFromSlice(ip)
			if !ok {
				continue
			}
			addr = addr.Unmap()
			if !addr.Is4() || addr.IsLoopback() {
				continue
			}
			out = append(out, addr)
		}
	}
	return out, nil
}
