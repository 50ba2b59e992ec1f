package crosscheck

import (
	"github.com/klauspost/cpuid/v2"
	"github.com/leodido/cpufeatures"
)

var klauspostIDs = map[cpufeatures.Feature]cpuid.FeatureID{
	cpufeatures.FeatureSSE2:   cpuid.SSE2,
	cpufeatures.FeatureSSE3:   cpuid.SSE3,
	cpufeatures.FeatureSSSE3:  cpuid.SSSE3,
	cpufeatures.FeatureSSE41:  cpuid.SSE4,
	cpufeatures.FeatureSSE42:  cpuid.SSE42,
	cpufeatures.FeatureAVX:    cpuid.AVX,
	cpufeatures.FeatureAVX2:   cpuid.AVX2,
	cpufeatures.FeatureAVX512: cpuid.AVX512F,
	cpufeatures.FeatureF16C:   cpuid.F16C,
	cpufeatures.FeatureFMA:    cpuid.FMA3,
	cpufeatures.FeatureABM:    cpuid.POPCNT,
}

type klauspostReference struct {
	info *cpuid.CPUInfo
}

// KlauspostCPUID returns a reference backed by github.com/klauspost/cpuid/v2.
func KlauspostCPUID() Reference {
	return klauspostReference{info: &cpuid.CPU}
}

func (klauspostReference) Name() string { return "klauspost/cpuid" }

func (r klauspostReference) Lookup(f cpufeatures.Feature) (bool, bool) {
	id, ok := klauspostIDs[f]
	if !ok || !isX86() {
		return false, false
	}
	return r.info.Supports(id), true
}

// HostInfo identifies the processor.
type HostInfo struct {
	Vendor        string `json:"vendor"`
	Brand         string `json:"brand"`
	Family        int    `json:"family"`
	Model         int    `json:"model"`
	Stepping      int    `json:"stepping"`
	PhysicalCores int    `json:"physicalCores"`
	LogicalCores  int    `json:"logicalCores"`
}

// Host returns the processor identity as reported by klauspost/cpuid.
func Host() HostInfo {
	c := cpuid.CPU
	return HostInfo{
		Vendor:        c.VendorString,
		Brand:         c.BrandName,
		Family:        c.Family,
		Model:         c.Model,
		Stepping:      c.Stepping,
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
	}
}
