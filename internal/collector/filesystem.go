package collector

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FilesystemStat mirrors the statfs counters the filesystem checker
// consumes. BlocksFree counts blocks available to unprivileged users;
// BlocksFreeTotal includes the reserved blocks.
type FilesystemStat struct {
	Blocks          int64
	BlocksFree      int64
	BlocksFreeTotal int64
	Files           int64
	FilesFree       int64
	Flags           int64
}

// FilesystemUsage reads the statfs counters for the filesystem holding
// path.
func FilesystemUsage(path string) (*FilesystemStat, error) {
	var buf unix.Statfs_t
	if err := unix.Statfs(path, &buf); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", path, err)
	}
	return &FilesystemStat{
		Blocks:          int64(buf.Blocks),
		BlocksFree:      int64(buf.Bavail),
		BlocksFreeTotal: int64(buf.Bfree),
		Files:           int64(buf.Files),
		FilesFree:       int64(buf.Ffree),
		Flags:           int64(buf.Flags),
	}, nil
}
