package discovery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Default port probe range for the transfer server.
const (
	DefaultPortRangeStart = 8080
	DefaultPortRangeEnd   = 8090
)

// ErrNoInterface indicates no network interface yielded a usable local
// address. The transfer server cannot start without one.
var ErrNoInterface = errors.New("no network interface with a usable local address")

// ErrNoFreePort indicates every port in the probe range was taken.
var ErrNoFreePort = errors.New("no free port in range")

// InterfaceClass groups interfaces by their likely medium.
type InterfaceClass uint8

const (
	// ClassWiFi is a wireless interface, the preferred transfer medium.
	ClassWiFi InterfaceClass = iota
	// ClassEthernet is a wired interface.
	ClassEthernet
	// ClassOther is any other non-loopback interface.
	ClassOther
)

// String returns a human-readable name for the class.
func (c InterfaceClass) String() string {
	switch c {
	case ClassWiFi:
		return "wifi"
	case ClassEthernet:
		return "ethernet"
	default:
		return "other"
	}
}

// candidate pairs an interface name with one of its IPv4 addresses.
type candidate struct {
	ifaceName string
	ip        net.IP
}

// LocalIPAddress returns the best local IPv4 address for serving a transfer:
// the first private-range address on a Wi-Fi interface, then Ethernet, then
// any other interface. ErrNoInterface when nothing qualifies.
func LocalIPAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("enumerate interfaces: %w", err)
	}

	var candidates []candidate
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "LocalIPAddress",
				"interface": iface.Name,
				"error":     err,
			}).Warn("Skipping interface with unreadable addresses")
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil {
				continue
			}
			candidates = append(candidates, candidate{ifaceName: iface.Name, ip: ip})
		}
	}

	ip, ok := pickAddress(candidates)
	if !ok {
		return "", ErrNoInterface
	}

	logrus.WithFields(logrus.Fields{
		"function": "LocalIPAddress",
		"address":  ip,
	}).Info("Local address selected")

	return ip, nil
}

// pickAddress applies the class preference order to candidates, returning
// the first private-range address of the best available class.
func pickAddress(candidates []candidate) (string, bool) {
	for _, class := range []InterfaceClass{ClassWiFi, ClassEthernet, ClassOther} {
		for _, c := range candidates {
			if classifyInterface(c.ifaceName) != class {
				continue
			}
			if !isLocalRange(c.ip) {
				continue
			}
			return c.ip.String(), true
		}
	}
	return "", false
}

// wifiPrefixes and ethernetPrefixes cover the common naming schemes across
// Linux (wlan0, wlp2s0, eth0, enp3s0), macOS (en0 is typically Wi-Fi on
// laptops, so "en" sorts under ethernet conservatively) and Windows bridges.
var (
	wifiPrefixes     = []string{"wlan", "wlp", "wlx", "wifi", "wl", "ath", "airport"}
	ethernetPrefixes = []string{"eth", "enp", "ens", "eno", "en", "em", "lan"}
)

// classifyInterface buckets an interface by its name pattern.
func classifyInterface(name string) InterfaceClass {
	lower := strings.ToLower(name)
	for _, p := range wifiPrefixes {
		if strings.HasPrefix(lower, p) {
			return ClassWiFi
		}
	}
	for _, p := range ethernetPrefixes {
		if strings.HasPrefix(lower, p) {
			return ClassEthernet
		}
	}
	return ClassOther
}

// isLocalRange reports whether ip is RFC1918 private or 169.254/16 link-local.
func isLocalRange(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// FindAvailablePort probes ports in [start, end] ascending, returning the
// first one that binds. The probe listener is released immediately; the
// caller re-binds when the server starts.
func FindAvailablePort(start, end int) (int, error) {
	if start <= 0 || end < start {
		return 0, fmt.Errorf("invalid port range %d-%d", start, end)
	}

	for port := start; port <= end; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		ln.Close()

		logrus.WithFields(logrus.Fields{
			"function": "FindAvailablePort",
			"port":     port,
		}).Debug("Free port found")

		return port, nil
	}
	return 0, fmt.Errorf("%w %d-%d", ErrNoFreePort, start, end)
}

// ValidateConnection reports whether a TCP connection to ip:port succeeds
// within timeout.
func ValidateConnection(ip string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
