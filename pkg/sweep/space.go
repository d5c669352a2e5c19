package sweep

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskSpace checks free space with gopsutil.
type DiskSpace struct{}

func (DiskSpace) Free(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage: %w", err)
	}
	return u.Free, nil
}
