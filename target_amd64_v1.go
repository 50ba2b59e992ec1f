//go:build amd64 && !amd64.v2

package cpufeatures

const (
	targetECX = 0
	targetEDX = bitSSE | bitSSE2
)
