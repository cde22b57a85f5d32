// Package ip enumerates local interface addresses for the mesh: the LAN
// address shown to users and the set used to recognize self-discovery.
package ip

import (
	"net"
	"strings"
)

// Interface is the subset of net.Interface data the selection rules need.
type Interface struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.IP
}

// SystemInterfaces lists the host's interfaces with their IP addresses.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		entry := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				entry.Addrs = append(entry.Addrs, ipnet.IP)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// AccessibleIP returns the LAN IPv4 address other devices should use, or ""
// when none is found. Wireless and ethernet interfaces win over others.
func AccessibleIP() string {
	ifaces, err := SystemInterfaces()
	if err != nil {
		return ""
	}
	return pickAccessibleIP(ifaces)
}

func pickAccessibleIP(ifaces []Interface) string {
	if found := firstPrivateIPv4(ifaces, isPreferredInterface); found != "" {
		return found
	}
	return firstPrivateIPv4(ifaces, func(string) bool { return true })
}

func firstPrivateIPv4(ifaces []Interface, accept func(name string) bool) string {
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback || isVirtualInterface(iface.Name) || !accept(iface.Name) {
			continue
		}
		for _, addr := range iface.Addrs {
			ipv4 := addr.To4()
			if ipv4 == nil || ipv4.IsLoopback() {
				continue
			}
			if isLocalNetworkIP(ipv4.String()) {
				return ipv4.String()
			}
		}
	}
	return ""
}

// LocalAddresses returns every address bound to this host, loopback
// included, as strings.
func LocalAddresses() map[string]bool {
	ifaces, err := SystemInterfaces()
	if err != nil {
		return map[string]bool{"127.0.0.1": true, "::1": true}
	}
	return collectAddresses(ifaces)
}

func collectAddresses(ifaces []Interface) map[string]bool {
	out := map[string]bool{"127.0.0.1": true, "::1": true}
	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			out[addr.String()] = true
		}
	}
	return out
}

// IsLocal reports whether host is one of this machine's addresses.
func IsLocal(host string) bool {
	parsed := net.ParseIP(host)
	if parsed == nil {
		return host == "localhost"
	}
	if parsed.IsLoopback() || parsed.IsUnspecified() {
		return true
	}
	return LocalAddresses()[parsed.String()]
}

func isVirtualInterface(name string) bool {
	return strings.HasPrefix(name, "br-") || strings.HasPrefix(name, "veth") ||
		strings.HasPrefix(name, "docker")
}

func isLocalNetworkIP(addr string) bool {
	parsed := net.ParseIP(addr)
	return parsed != nil && parsed.To4() != nil && parsed.IsPrivate()
}

func isPreferredInterface(name string) bool {
	preferredPrefixes := []string{"wl", "eth", "en", "wifi"}

	for _, prefix := range preferredPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}
