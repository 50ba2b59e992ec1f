//go:build (386 || amd64) && !purego

package cpufeatures

// cpuid executes CPUID with the given EAX and ECX inputs.
// Defined in cpuid_amd64.s and cpuid_386.s.
func cpuid(eaxArg, ecxArg uint32) (eax, ebx, ecx, edx uint32)

// xgetbv executes XGETBV with ECX=0.
// The caller must have checked CPUID.1:ECX.OSXSAVE first.
func xgetbv() (eax, edx uint32)

// cpuidQuerier issues the CPUID instruction.
type cpuidQuerier struct{}

func (cpuidQuerier) RawLeafQuery(leaf, subleaf uint32) Registers {
	a, b, c, d := cpuid(leaf, subleaf)
	return Registers{EAX: a, EBX: b, ECX: c, EDX: d}
}

func (cpuidQuerier) String() string { return "cpuid" }

// xgetbvReader reads XCR0 with the XGETBV instruction.
type xgetbvReader struct{}

func (xgetbvReader) ReadExtendedStateMask() uint64 {
	eax, edx := xgetbv()
	return uint64(edx)<<32 | uint64(eax)
}

func nativeQuerier() Querier                 { return cpuidQuerier{} }
func nativeStateMaskReader() StateMaskReader { return xgetbvReader{} }
