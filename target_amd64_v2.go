//go:build amd64 && amd64.v2 && !amd64.v3

package cpufeatures

// x86-64-v2 adds SSE3, SSSE3, SSE4.1, SSE4.2 and POPCNT.
const (
	targetECX = bitSSE3 | bitSSSE3 | bitSSE41 | bitSSE42 | bitABM
	targetEDX = bitSSE | bitSSE2
)
