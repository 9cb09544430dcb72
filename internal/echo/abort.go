//go:build !baremetal

package echo

import (
	"errors"
	"syscall"
)

// isConnAborted reports whether an accept error only concerns a single
// pending connection that the peer reset before it was accepted.
func isConnAborted(err error) bool {
	return errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.ECONNRESET)
}
