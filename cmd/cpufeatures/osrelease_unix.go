//go:build linux || darwin || freebsd || netbsd || openbsd

package main

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// osRelease returns the kernel name and release (e.g., "Linux 6.1.0-generic").
func osRelease() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return runtime.GOOS
	}
	return unix.ByteSliceToString(uname.Sysname[:]) + " " + unix.ByteSliceToString(uname.Release[:])
}
