// Package crosscheck compares a decoded feature set against independent
// feature detection sources.
//
// Disagreements are expected in a few places and are not errors: x/sys/cpu
// also requires ZMM state in XCR0 before reporting AVX-512, and the kernel
// may mask features it does not support.
package crosscheck

import (
	"fmt"
	"runtime"

	"github.com/leodido/cpufeatures"
)

// Reference is an independent source of feature detection results.
type Reference interface {
	// Name identifies the source in reports.
	Name() string
	// Lookup returns the source's answer for f. known is false when the
	// source does not track f.
	Lookup(f cpufeatures.Feature) (present, known bool)
}

// Mismatch records a feature on which a reference disagrees with the
// decoded feature set.
type Mismatch struct {
	Feature   cpufeatures.Feature
	Reference string
	Detected  bool
	Reported  bool
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: detected=%t %s=%t", m.Feature, m.Detected, m.Reference, m.Reported)
}

// Compare returns every disagreement between fs and the references,
// ordered by feature and then by reference.
func Compare(fs cpufeatures.FeatureSet, refs ...Reference) []Mismatch {
	var out []Mismatch
	for _, f := range cpufeatures.FeatureValues() {
		detected := fs.Has(f)
		for _, ref := range refs {
			reported, known := ref.Lookup(f)
			if !known || reported == detected {
				continue
			}
			out = append(out, Mismatch{
				Feature:   f,
				Reference: ref.Name(),
				Detected:  detected,
				Reported:  reported,
			})
		}
	}
	return out
}

// isX86 reports whether the x86 feature fields of library references carry
// meaning on this architecture.
func isX86() bool {
	return runtime.GOARCH == "amd64" || runtime.GOARCH == "386"
}
