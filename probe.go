package cpufeatures

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Querier issues a single processor identification query.
type Querier interface {
	// RawLeafQuery returns the registers of the given leaf and sub-leaf.
	// Leaves the implementation cannot answer return zero registers.
	RawLeafQuery(leaf, subleaf uint32) Registers
}

// StateMaskReader reads the extended control register XCR0, the mask of
// register state components the operating system saves on context switch.
// Implementations that cannot read it return 0.
type StateMaskReader interface {
	ReadExtendedStateMask() uint64
}

// CPUID leaf 1 EDX bits.
const (
	bitSSE  = 1 << 25
	bitSSE2 = 1 << 26
)

// CPUID leaf 1 ECX bits.
const (
	bitSSE3    = 1 << 0
	bitSSSE3   = 1 << 9
	bitFMA     = 1 << 12
	bitSSE41   = 1 << 19
	bitSSE42   = 1 << 20
	bitABM     = 1 << 23
	bitOSXSAVE = 1 << 27
	bitAVX     = 1 << 28
	bitF16C    = 1 << 29
)

// CPUID leaf 7 sub-leaf 0 EBX bits.
const (
	bitAVX2    = 1 << 5
	bitAVX512F = 1 << 16
)

// XCR0 state components: bit 1 is XMM (SSE) state, bit 2 is YMM upper halves.
const (
	xcr0SSE = 1 << 1
	xcr0AVX = 1 << 2
	xcr0YMM = xcr0SSE | xcr0AVX
)

const (
	leafBasic = 0
	leafInfo  = 1
	leafExt   = 7
)

// Decode decodes a [FeatureSet] from the given primitives.
// It never fails: queries the processor cannot answer yield absent features.
func Decode(q Querier, x StateMaskReader) FeatureSet {
	return decode(q, x, zap.NewNop()).Features
}

// Detect decodes the [FeatureSet] of the executing processor using the
// primitives selected for this build target.
// The result is not cached; use a [Detector] to share it.
func Detect() FeatureSet {
	return Decode(nativeQuerier(), nativeStateMaskReader())
}

func decode(q Querier, x StateMaskReader, log *zap.Logger) Report {
	r := Report{
		Source: sourceName(q),
		Arch:   runtime.GOARCH,
	}

	r.MaxLeaf = q.RawLeafQuery(leafBasic, 0).EAX
	if r.MaxLeaf < leafInfo {
		log.Debug("basic information leaf not supported; reporting no features",
			zap.Uint32("max_leaf", r.MaxLeaf))
		return r
	}

	r.Leaf1 = q.RawLeafQuery(leafInfo, 0)
	ecx, edx := r.Leaf1.ECX, r.Leaf1.EDX
	log.Debug("queried leaf 1",
		zap.String("ecx", fmt.Sprintf("0x%08x", ecx)),
		zap.String("edx", fmt.Sprintf("0x%08x", edx)))

	fs := FeatureSet{
		HasSSE2:  edx&bitSSE2 != 0,
		HasSSE3:  ecx&bitSSE3 != 0,
		HasSSSE3: ecx&bitSSSE3 != 0,
		HasSSE41: ecx&bitSSE41 != 0,
		HasSSE42: ecx&bitSSE42 != 0,
		HasF16C:  ecx&bitF16C != 0,
		HasFMA:   ecx&bitFMA != 0,
		HasABM:   ecx&bitABM != 0,
	}

	// XGETBV raises #UD unless CR4.OSXSAVE is set, so the state mask is only
	// read once CPUID has reported both AVX and OSXSAVE.
	if ecx&bitAVX != 0 && ecx&bitOSXSAVE != 0 {
		r.XCR0 = x.ReadExtendedStateMask()
		r.XCR0Read = true
		fs.HasAVX = r.XCR0&xcr0YMM == xcr0YMM
		if !fs.HasAVX {
			log.Debug("operating system does not preserve YMM state",
				zap.String("xcr0", fmt.Sprintf("%#x", r.XCR0)))
		}
	}

	if fs.HasAVX {
		if r.MaxLeaf >= leafExt {
			r.Leaf7 = q.RawLeafQuery(leafExt, 0)
			r.Leaf7Queried = true
			fs.HasAVX2 = r.Leaf7.EBX&bitAVX2 != 0
			fs.HasAVX512 = r.Leaf7.EBX&bitAVX512F != 0
		} else {
			log.Debug("extended features leaf not supported",
				zap.Uint32("max_leaf", r.MaxLeaf))
		}
	}

	r.Features = fs
	return r
}

func sourceName(q Querier) string {
	if s, ok := q.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", q)
}
