package cpufeatures

import (
	"fmt"
	"strings"
)

// String renders one "<name>: true|false" line per feature in report order.
func (fs FeatureSet) String() string {
	var b strings.Builder
	for _, f := range FeatureValues() {
		fmt.Fprintf(&b, "%s: %t\n", f, fs.Has(f))
	}
	return b.String()
}

// Present returns the names of the features in the set, in report order.
func (fs FeatureSet) Present() []string {
	var names []string
	for _, f := range FeatureValues() {
		if fs.Has(f) {
			names = append(names, f.String())
		}
	}
	return names
}

// String returns the feature lines followed by a dump of the raw registers.
func (r Report) String() string {
	var b strings.Builder

	b.WriteString(r.Features.String())
	b.WriteString("\n")

	fmt.Fprintf(&b, "Source: %s (%s)\n", r.Source, r.Arch)
	fmt.Fprintf(&b, "Max leaf: %d\n", r.MaxLeaf)
	if r.MaxLeaf >= leafInfo {
		writeRegisters(&b, "Leaf 1", r.Leaf1)
	}
	if r.Leaf7Queried {
		writeRegisters(&b, "Leaf 7.0", r.Leaf7)
	}
	if r.XCR0Read {
		fmt.Fprintf(&b, "XCR0: %#x\n", r.XCR0)
	} else {
		b.WriteString("XCR0: not read\n")
	}

	return b.String()
}

func writeRegisters(b *strings.Builder, name string, regs Registers) {
	fmt.Fprintf(b, "%s: eax=0x%08x ebx=0x%08x ecx=0x%08x edx=0x%08x\n",
		name, regs.EAX, regs.EBX, regs.ECX, regs.EDX)
}
