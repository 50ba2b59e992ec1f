//go:build linux

package crosscheck

import (
	"fmt"
	"os"
)

// ProcCPUInfo returns a reference backed by the kernel's view of the CPU
// flags in the cpuinfo file at path ([DefaultCPUInfoPath] when empty).
func ProcCPUInfo(path string) (Reference, error) {
	if path == "" {
		path = DefaultCPUInfoPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCPUInfo, err)
	}
	defer f.Close()

	ref, err := parseCPUInfo(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ref, nil
}
