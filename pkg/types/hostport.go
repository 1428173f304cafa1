package types

import (
	"net"
	"strconv"
)

// joinHostPort formats an address literal and port, bracketing IPv6.
func joinHostPort(host string, port uint16) string {
	if port == 0 {
		port = 53
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
