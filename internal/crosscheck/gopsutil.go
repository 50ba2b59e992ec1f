package crosscheck

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// Gopsutil returns a reference backed by the flags github.com/shirou/gopsutil
// collects for the first processor.
// Flag names only match the kernel's on Linux; elsewhere it fails with
// [ErrNoCPUInfo].
func Gopsutil(ctx context.Context) (Reference, error) {
	if runtime.GOOS != "linux" {
		return nil, ErrNoCPUInfo
	}

	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCPUInfo, err)
	}
	if len(infos) == 0 || len(infos[0].Flags) == 0 {
		return nil, ErrNoCPUInfo
	}
	return newCPUInfoReference("gopsutil", infos[0].Flags), nil
}
