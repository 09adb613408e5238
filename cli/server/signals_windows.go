//go:build windows

package server

import "syscall"

const (
	// sighup is never delivered on Windows, but it keeps the reload logic
	// portable.
	sighup  = syscall.SIGHUP
	sigterm = syscall.SIGTERM
)
