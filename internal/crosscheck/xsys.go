package crosscheck

import (
	"github.com/leodido/cpufeatures"
	"golang.org/x/sys/cpu"
)

type xsysReference struct{}

// XSysCPU returns a reference backed by golang.org/x/sys/cpu.
// It does not track F16C.
func XSysCPU() Reference {
	return xsysReference{}
}

func (xsysReference) Name() string { return "x/sys/cpu" }

func (xsysReference) Lookup(f cpufeatures.Feature) (bool, bool) {
	if !isX86() {
		return false, false
	}
	switch f {
	case cpufeatures.FeatureSSE2:
		return cpu.X86.HasSSE2, true
	case cpufeatures.FeatureSSE3:
		return cpu.X86.HasSSE3, true
	case cpufeatures.FeatureSSSE3:
		return cpu.X86.HasSSSE3, true
	case cpufeatures.FeatureSSE41:
		return cpu.X86.HasSSE41, true
	case cpufeatures.FeatureSSE42:
		return cpu.X86.HasSSE42, true
	case cpufeatures.FeatureAVX:
		return cpu.X86.HasAVX, true
	case cpufeatures.FeatureAVX2:
		return cpu.X86.HasAVX2, true
	case cpufeatures.FeatureAVX512:
		return cpu.X86.HasAVX512F, true
	case cpufeatures.FeatureFMA:
		return cpu.X86.HasFMA, true
	case cpufeatures.FeatureABM:
		return cpu.X86.HasPOPCNT, true
	default:
		return false, false
	}
}
