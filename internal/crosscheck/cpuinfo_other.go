//go:build !linux

package crosscheck

// ProcCPUInfo returns a reference backed by the kernel's view of the CPU
// flags. Only Linux exposes them, so other platforms always fail.
func ProcCPUInfo(_ string) (Reference, error) {
	return nil, ErrNoCPUInfo
}
