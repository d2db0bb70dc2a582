package masterrpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
)

// Sentinel errors for parseListenAddr
var (
	ErrInvalidURLFormat       = errors.New("invalid URL format")
	ErrTCPSchemeRequiresHost  = errors.New("tcp scheme requires host:port after tcp://")
	ErrUnixSchemeRequiresPath = errors.New("unix scheme requires path after unix://")
	ErrUnixColonRequiresPath  = errors.New("unix scheme requires path after unix:")
	ErrUnsupportedURLScheme   = errors.New("unsupported URL scheme")
)

// parseListenAddr splits a listen setting into network and address:
//   - "tcp://0.0.0.0:8140" → tcp, "0.0.0.0:8140"
//   - "unix:///run/catalogd.sock" or "unix:/run/catalogd.sock" → unix, "/run/catalogd.sock"
//   - "localhost:8140" → tcp, "localhost:8140"
func parseListenAddr(listenAddr string) (network string, address string, err error) {
	if strings.Contains(listenAddr, "://") {
		u, err := url.Parse(listenAddr)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrInvalidURLFormat, err)
		}
		switch u.Scheme {
		case "tcp":
			if u.Host == "" {
				return "", "", ErrTCPSchemeRequiresHost
			}
			return "tcp", u.Host, nil
		case "unix":
			if u.Path == "" {
				return "", "", ErrUnixSchemeRequiresPath
			}
			return "unix", u.Path, nil
		default:
			return "", "", fmt.Errorf("%w: %s (supported: tcp, unix)", ErrUnsupportedURLScheme, u.Scheme)
		}
	}

	if address, ok := strings.CutPrefix(listenAddr, "unix:"); ok {
		if address == "" {
			return "", "", ErrUnixColonRequiresPath
		}
		return "unix", address, nil
	}
	return "tcp", listenAddr, nil
}

// cleanupUnixSocket removes a stale socket file left behind by a previous process.
func cleanupUnixSocket(socketPath string, logger *slog.Logger) error {
	info, err := os.Lstat(socketPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat unix socket %q: %w", socketPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("unix socket path %q is a directory", socketPath)
	}

	logger.Warn("Removing existing unix socket", "path", socketPath)
	if err := os.Remove(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing unix socket %q: %w", socketPath, err)
	}
	return nil
}

// listen opens the listener for listenAddr.
func listen(listenAddr string, logger *slog.Logger) (net.Listener, error) {
	network, address, err := parseListenAddr(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing listen address %q: %w", listenAddr, err)
	}
	if network == "unix" {
		if err := cleanupUnixSocket(address, logger); err != nil {
			return nil, err
		}
	}

	lis, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s://%s: %w", network, address, err)
	}
	logger.Debug("Listening", "network", lis.Addr().Network(), "address", lis.Addr().String())
	return lis, nil
}
