package testutil

import (
	"net"
	"strconv"
	"sync"
	"testing"
)

var (
	portsMu   sync.Mutex
	portsSeen = map[int]struct{}{}
)

// GetRandomPort returns a free loopback TCP port that no earlier call in this test binary
// has handed out.
func GetRandomPort(t *testing.T) int {
	t.Helper()
	portsMu.Lock()
	defer portsMu.Unlock()

	for {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to get random port: %v", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		if err := l.Close(); err != nil {
			t.Fatalf("Failed to close listener: %v", err)
		}
		if _, seen := portsSeen[port]; seen {
			continue
		}
		portsSeen[port] = struct{}{}
		return port
	}
}

// GetRandomListeningPort returns a "127.0.0.1:port" address that was bindable a moment ago,
// suitable as an HTTP listen address.
func GetRandomListeningPort(t *testing.T) string {
	t.Helper()
	for {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(GetRandomPort(t)))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			continue
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Failed to close listener: %v", err)
		}
		return addr
	}
}
