//go:build amd64 && amd64.v3

package cpufeatures

// x86-64-v3 also guarantees AVX, FMA and F16C in hardware. OSXSAVE is left
// clear: whether the kernel saves YMM state is not a compile-time property.
const (
	targetECX = bitSSE3 | bitSSSE3 | bitSSE41 | bitSSE42 | bitABM | bitFMA | bitAVX | bitF16C
	targetEDX = bitSSE | bitSSE2
)
