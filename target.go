package cpufeatures

// TargetQuerier answers leaf queries from what the build target guarantees
// rather than from the running processor. Leaf 0 reports a maximum leaf of 1,
// leaf 1 carries the SSE-family bits implied by GOARCH and the GOAMD64 level,
// and every other leaf is zero.
//
// It is the native primitive on purego and non-x86 builds, where CPUID
// cannot be issued.
type TargetQuerier struct{}

// RawLeafQuery implements [Querier].
func (TargetQuerier) RawLeafQuery(leaf, _ uint32) Registers {
	switch leaf {
	case leafBasic:
		return Registers{EAX: leafInfo}
	case leafInfo:
		return Registers{ECX: targetECX, EDX: targetEDX}
	default:
		return Registers{}
	}
}

func (TargetQuerier) String() string { return "target" }
