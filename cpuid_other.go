//go:build !(386 || amd64) || purego

package cpufeatures

// zeroStateMaskReader stands in for XGETBV where it cannot be issued.
// A zero mask makes AVX, and everything gated on it, absent.
type zeroStateMaskReader struct{}

func (zeroStateMaskReader) ReadExtendedStateMask() uint64 { return 0 }

func nativeQuerier() Querier                 { return TargetQuerier{} }
func nativeStateMaskReader() StateMaskReader { return zeroStateMaskReader{} }
