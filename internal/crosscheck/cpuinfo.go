package crosscheck

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/leodido/cpufeatures"
)

// ErrNoCPUInfo is returned when no kernel CPU flags source is available.
var ErrNoCPUInfo = errors.New("no cpu flags found")

// DefaultCPUInfoPath is where Linux exposes per-processor flags.
const DefaultCPUInfoPath = "/proc/cpuinfo"

// kernelFlagNames maps features to /proc/cpuinfo flag names.
// The kernel calls SSE3 "pni" and lists POPCNT under its own name.
var kernelFlagNames = map[cpufeatures.Feature]string{
	cpufeatures.FeatureSSE2:   "sse2",
	cpufeatures.FeatureSSE3:   "pni",
	cpufeatures.FeatureSSSE3:  "ssse3",
	cpufeatures.FeatureSSE41:  "sse4_1",
	cpufeatures.FeatureSSE42:  "sse4_2",
	cpufeatures.FeatureAVX:    "avx",
	cpufeatures.FeatureAVX2:   "avx2",
	cpufeatures.FeatureAVX512: "avx512f",
	cpufeatures.FeatureF16C:   "f16c",
	cpufeatures.FeatureFMA:    "fma",
	cpufeatures.FeatureABM:    "popcnt",
}

// cpuInfoReference answers from a kernel flags list, as found on the flags
// line of the first processor.
type cpuInfoReference struct {
	name  string
	flags map[string]struct{}
}

func newCPUInfoReference(name string, flags []string) cpuInfoReference {
	set := make(map[string]struct{}, len(flags))
	for _, flag := range flags {
		set[flag] = struct{}{}
	}
	return cpuInfoReference{name: name, flags: set}
}

func (r cpuInfoReference) Name() string { return r.name }

func (r cpuInfoReference) Lookup(f cpufeatures.Feature) (bool, bool) {
	name, ok := kernelFlagNames[f]
	if !ok {
		return false, false
	}
	_, present := r.flags[name]
	return present, true
}

// parseCPUInfo parses the first "flags" line of cpuinfo content.
// It returns ErrNoCPUInfo when there is none (e.g. non-x86 kernels,
// which use a "Features" line with different names).
func parseCPUInfo(r io.Reader) (cpuInfoReference, error) {
	scanner := bufio.NewScanner(r)
	// Flags lines on recent processors exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "flags" {
			continue
		}

		return newCPUInfoReference(DefaultCPUInfoPath, strings.Fields(value)), nil
	}

	if err := scanner.Err(); err != nil {
		return cpuInfoReference{}, err
	}
	return cpuInfoReference{}, ErrNoCPUInfo
}
