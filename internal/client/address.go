package client

import (
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the session server's default TCP port.
const DefaultPort = 7777

// DefaultHost is used when an address names no host.
const DefaultHost = "localhost"

// ParseAddress splits "host[:port]" as typed by a player. A missing, malformed
// or out-of-range port yields DefaultPort; a missing host yields DefaultHost.
func ParseAddress(addr string) (string, int) {
	addr = strings.TrimSpace(addr)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host, portStr = strings.Trim(addr, "[]"), ""
	}
	if host == "" {
		host = DefaultHost
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		port = DefaultPort
	}
	return host, port
}
