//go:build !linux

package puttleproxy

import (
	"fmt"
	"net"
)

// recoverOriginalDestination is unavailable on this platform: the
// SO_ORIGINAL_DST kernel facility is Linux/netfilter specific. Every
// session fails immediately with a diagnostic, matching the required
// fallback behavior for platforms without this facility.
func recoverOriginalDestination(_ net.Conn) (string, uint16, error) {
	return "", 0, fmt.Errorf("puttleproxy: SO_ORIGINAL_DST is not available on this platform")
}
