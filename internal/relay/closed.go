package relay

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedClose reports whether err is a normal end of a session: EOF,
// a closed connection, a broken pipe, or a connection reset by the peer.
// These are logged at info rather than as failures.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
