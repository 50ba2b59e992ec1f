//go:build 386 && !386.softfloat

package cpufeatures

// GO386=sse2, the default, requires SSE2.
const (
	targetSoftFloat = false

	targetECX = 0
	targetEDX = bitSSE | bitSSE2
)
