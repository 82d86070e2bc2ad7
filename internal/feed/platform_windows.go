//go:build windows

package feed

import (
	"fmt"
	"net"
	"time"
)

// DefaultTCPAddr replaces the socket path on Windows.
const DefaultTCPAddr = "127.0.0.1:9876"

// CreatePlatformListener listens on TCP localhost; the socket path is
// ignored.
func CreatePlatformListener(socketPath string) (net.Listener, error) {
	listener, err := net.Listen("tcp", DefaultTCPAddr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", DefaultTCPAddr, err)
	}
	return listener, nil
}

func ConnectPlatform(socketPath string) (net.Conn, error) {
	return net.DialTimeout("tcp", DefaultTCPAddr, time.Second)
}

func PlatformAddress(socketPath string) string {
	return DefaultTCPAddr + " (TCP localhost)"
}
