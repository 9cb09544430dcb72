//go:build baremetal

package echo

// isConnAborted always reports false: the embedded TCP stack has no
// per-connection accept errors, so every accept error is fatal.
func isConnAborted(err error) bool {
	return false
}
