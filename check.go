package cpufeatures

import "fmt"

// Check detects the features of the executing processor and validates the
// requirements against them. See [CheckReport].
func Check(required ...Requirement) error {
	return CheckReport(NewDetector().Report(), required...)
}

// CheckReport validates the requirements against r and returns a
// *[FeatureError] for the first unsatisfied one, or nil if all are met.
func CheckReport(r Report, required ...Requirement) error {
	rs := normalizeRequirements(required)

	for _, f := range rs.features {
		if _, known := featureNames[f]; !known {
			return &FeatureError{Feature: f.String(), Reason: "unknown feature"}
		}
		if !r.Features.Has(f) {
			return &FeatureError{
				Feature: f.String(),
				Reason:  r.Diagnose(f),
			}
		}
	}
	return nil
}

// Diagnose explains, from the raw registers, why a feature is absent.
// It returns "supported" for features that are present.
func (r Report) Diagnose(f Feature) string {
	if r.Features.Has(f) {
		return "supported"
	}
	if _, known := featureNames[f]; !known {
		return "unknown feature"
	}
	if r.MaxLeaf < leafInfo {
		return fmt.Sprintf("processor reports no feature information (max leaf %d, source %s)", r.MaxLeaf, r.Source)
	}

	switch f {
	case FeatureSSE2:
		return "not supported by processor (CPUID.1:EDX[26] clear)"
	case FeatureSSE3:
		return "not supported by processor (CPUID.1:ECX[0] clear)"
	case FeatureSSSE3:
		return "not supported by processor (CPUID.1:ECX[9] clear)"
	case FeatureSSE41:
		return "not supported by processor (CPUID.1:ECX[19] clear)"
	case FeatureSSE42:
		return "not supported by processor (CPUID.1:ECX[20] clear)"
	case FeatureF16C:
		return "not supported by processor (CPUID.1:ECX[29] clear)"
	case FeatureFMA:
		return "not supported by processor (CPUID.1:ECX[12] clear)"
	case FeatureABM:
		return "not supported by processor (CPUID.1:ECX[23] clear)"
	case FeatureAVX:
		return r.diagnoseAVX()
	case FeatureAVX2, FeatureAVX512:
		if !r.Features.HasAVX {
			return "requires AVX: " + r.diagnoseAVX()
		}
		if !r.Leaf7Queried {
			return fmt.Sprintf("processor does not report extended features (max leaf %d)", r.MaxLeaf)
		}
		if f == FeatureAVX2 {
			return "not supported by processor (CPUID.7.0:EBX[5] clear)"
		}
		return "not supported by processor (CPUID.7.0:EBX[16] clear)"
	}
	return "not supported"
}

func (r Report) diagnoseAVX() string {
	ecx := r.Leaf1.ECX
	switch {
	case ecx&bitAVX == 0:
		return "not supported by processor (CPUID.1:ECX[28] clear)"
	case ecx&bitOSXSAVE == 0:
		return "operating system has not enabled XSAVE (CPUID.1:ECX[27] clear)"
	case !r.XCR0Read:
		return "extended state mask not read"
	default:
		return fmt.Sprintf("operating system does not preserve XMM and YMM state (XCR0=%#x, bits 1 and 2 required)", r.XCR0)
	}
}
