//go:build 386 && 386.softfloat

package cpufeatures

// GO386=softfloat guarantees no SIMD extension.
const (
	targetSoftFloat = true

	targetECX = 0
	targetEDX = 0
)
