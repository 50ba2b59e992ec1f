package cpufeatures

import "fmt"

// Registers holds the four 32-bit outputs of a single CPUID leaf query.
type Registers struct {
	EAX uint32 `json:"eax"`
	EBX uint32 `json:"ebx"`
	ECX uint32 `json:"ecx"`
	EDX uint32 `json:"edx"`
}

// FeatureSet holds the decoded instruction-set capabilities of the executing
// processor. It is a plain value and is never mutated after [Decode] returns it.
type FeatureSet struct {
	HasSSE2   bool `json:"sse2"`
	HasSSE3   bool `json:"sse3"`
	HasSSSE3  bool `json:"ssse3"` // Supplemental SSE3
	HasSSE41  bool `json:"sse4.1"`
	HasSSE42  bool `json:"sse4.2"`
	HasAVX    bool `json:"avx"` // hardware bit, OSXSAVE and XCR0 YMM state all present
	HasAVX2   bool `json:"avx2"`
	HasAVX512 bool `json:"avx512"` // AVX-512 Foundation
	HasF16C   bool `json:"f16c"`   // half-precision float conversion
	HasFMA    bool `json:"fma"`
	HasABM    bool `json:"abm"` // CPUID.1:ECX[23]
}

// Has reports whether the given feature is present in the set.
// Unknown features are reported as absent.
func (fs FeatureSet) Has(f Feature) bool {
	switch f {
	case FeatureSSE2:
		return fs.HasSSE2
	case FeatureSSE3:
		return fs.HasSSE3
	case FeatureSSSE3:
		return fs.HasSSSE3
	case FeatureSSE41:
		return fs.HasSSE41
	case FeatureSSE42:
		return fs.HasSSE42
	case FeatureAVX:
		return fs.HasAVX
	case FeatureAVX2:
		return fs.HasAVX2
	case FeatureAVX512:
		return fs.HasAVX512
	case FeatureF16C:
		return fs.HasF16C
	case FeatureFMA:
		return fs.HasFMA
	case FeatureABM:
		return fs.HasABM
	default:
		return false
	}
}

// Report is a [FeatureSet] together with the raw register values it was
// decoded from. Fields for queries that were not issued are zero.
type Report struct {
	Features FeatureSet `json:"features"`

	// MaxLeaf is EAX of leaf 0.
	MaxLeaf uint32    `json:"maxLeaf"`
	Leaf1   Registers `json:"leaf1"`
	Leaf7   Registers `json:"leaf7"`
	// Leaf7Queried is false when AVX is absent or MaxLeaf < 7.
	Leaf7Queried bool `json:"leaf7Queried"`
	// XCR0 is the extended state mask. It is only read when CPUID reports
	// both AVX and OSXSAVE.
	XCR0     uint64 `json:"xcr0"`
	XCR0Read bool   `json:"xcr0Read"`

	// Source names the primitive that produced the registers ("cpuid" or "target").
	Source string `json:"source"`
	Arch   string `json:"arch"`
}

// FeatureError represents an error when a required CPU feature is unavailable.
type FeatureError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *FeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feature %s: %s: %v", e.Feature, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature %s: %s", e.Feature, e.Reason)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Feature names a single capability flag of [FeatureSet].
// The declaration order is the stable report order.
type Feature int

const (
	// FeatureSSE2 is CPUID.1:EDX[26].
	FeatureSSE2 Feature = iota
	// FeatureSSE3 is CPUID.1:ECX[0].
	FeatureSSE3
	// FeatureSSSE3 is CPUID.1:ECX[9].
	FeatureSSSE3
	// FeatureSSE41 is CPUID.1:ECX[19].
	FeatureSSE41
	// FeatureSSE42 is CPUID.1:ECX[20].
	FeatureSSE42
	// FeatureAVX requires CPUID.1:ECX[28], CPUID.1:ECX[27] and XCR0[2:1] == 0b11.
	FeatureAVX
	// FeatureAVX2 is CPUID.7.0:EBX[5], only considered when AVX is usable.
	FeatureAVX2
	// FeatureAVX512 is CPUID.7.0:EBX[16], only considered when AVX is usable.
	FeatureAVX512
	// FeatureF16C is CPUID.1:ECX[29].
	FeatureF16C
	// FeatureFMA is CPUID.1:ECX[12].
	FeatureFMA
	// FeatureABM is CPUID.1:ECX[23].
	FeatureABM
)

var featureNames = map[Feature]string{
	FeatureSSE2:   "sse2",
	FeatureSSE3:   "sse3",
	FeatureSSSE3:  "ssse3",
	FeatureSSE41:  "sse4.1",
	FeatureSSE42:  "sse4.2",
	FeatureAVX:    "avx",
	FeatureAVX2:   "avx2",
	FeatureAVX512: "avx512",
	FeatureF16C:   "f16c",
	FeatureFMA:    "fma",
	FeatureABM:    "abm",
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Feature(%d)", f)
}

// FeatureValues returns every known [Feature] in report order.
func FeatureValues() []Feature {
	return []Feature{
		FeatureSSE2,
		FeatureSSE3,
		FeatureSSSE3,
		FeatureSSE41,
		FeatureSSE42,
		FeatureAVX,
		FeatureAVX2,
		FeatureAVX512,
		FeatureF16C,
		FeatureFMA,
		FeatureABM,
	}
}

// FeatureNames returns the names of every known [Feature] in report order.
func FeatureNames() []string {
	values := FeatureValues()
	names := make([]string, 0, len(values))
	for _, f := range values {
		names = append(names, f.String())
	}
	return names
}
