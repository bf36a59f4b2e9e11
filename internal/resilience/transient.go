// Package resilience provides retry with exponential backoff and dead-letter
// bookkeeping for pipeline jobs. Retryability is decided by the boundary
// error taxonomy first, with network-level transient sniffing as a fallback
// for errors that never crossed a classified boundary.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/equity-snapshot/internal/boundary"
)

// IsTransient returns true if the error is safe to retry: a retryable
// boundary error, a network timeout, a connection-level failure, or a
// wrapped error matching common transient patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Classified boundary errors are authoritative.
	if be, ok := boundary.As(err); ok {
		return be.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
