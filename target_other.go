//go:build !386 && !amd64

package cpufeatures

const (
	targetECX = 0
	targetEDX = 0
)
