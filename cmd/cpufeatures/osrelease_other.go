//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package main

import "runtime"

func osRelease() string {
	return runtime.GOOS
}
