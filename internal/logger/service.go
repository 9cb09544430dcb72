//go:build !tinygo

package logger

import (
	"os"
	"syscall"
)

// IsService reports whether the process looks like it was started by an
// init system rather than from a terminal.
func IsService() bool {
	if os.Getenv("INVOCATION_ID") != "" || os.Getenv("SERVICE_NAME") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}
	return syscall.Getpgrp() == syscall.Getpid() && !isTerminal(os.Stdin)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
