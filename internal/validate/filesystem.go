package validate

import (
	"os"
	"path/filepath"
	"syscall"

	"servicemon/internal/collector"
	"servicemon/internal/event"
	"servicemon/internal/service"
)

// checkFilesystem validates a filesystem service. Symbolic links are
// resolved so the mount can be located by its real path.
func (e *Engine) checkFilesystem(s *service.Service) bool {
	path := s.Path

	fi, err := os.Lstat(s.Path)
	if err != nil {
		e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "filesystem doesn't exist")
		return false
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(s.Path)
		if err != nil {
			e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "filesystem symbolic link error -- %v", err)
			return false
		}
		path = resolved
		e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "filesystem symbolic link %s -> %s", s.Path, path)
		if fi, err = os.Stat(path); err != nil {
			e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "filesystem doesn't exist")
			return false
		}
	}
	e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "filesystem exists")

	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		s.Inf.Perm = int(sys.Mode & 0o7777)
		s.Inf.UID = sys.Uid
		s.Inf.GID = sys.Gid
	}

	usage, err := collector.FilesystemUsage(path)
	if err != nil {
		e.post(s, event.Data, event.StateFailed, s.Actions.Data, "unable to read filesystem %s state", path)
		return false
	}

	if s.Inf.Filesystem == nil {
		s.Inf.Filesystem = &service.FilesystemInfo{}
	} else {
		prev := s.Inf.Filesystem.Flags
		s.Inf.Filesystem.PrevFlags = &prev
	}
	fs := s.Inf.Filesystem
	fs.Blocks = usage.Blocks
	fs.BlocksFree = usage.BlocksFree
	fs.BlocksFreeTotal = usage.BlocksFreeTotal
	fs.Files = usage.Files
	fs.FilesFree = usage.FilesFree
	fs.Flags = usage.Flags

	// Percentages are scaled by 10; a zero denominator reports 0.
	if fs.Files > 0 {
		fs.InodePercent = 1000 * (fs.Files - fs.FilesFree) / fs.Files
	} else {
		fs.InodePercent = 0
	}
	if fs.Blocks > 0 {
		fs.SpacePercent = 1000 * (fs.Blocks - fs.BlocksFree) / fs.Blocks
	} else {
		fs.SpacePercent = 0
	}
	fs.InodeTotal = fs.Files - fs.FilesFree
	fs.SpaceTotal = fs.Blocks - fs.BlocksFreeTotal
	e.post(s, event.Data, event.StateSucceeded, s.Actions.Data, "succeeded getting filesystem statistic for %s", path)

	if s.Perm != nil {
		e.checkPerm(s)
	}
	if s.Owner != nil {
		e.checkUID(s)
	}
	if s.Group != nil {
		e.checkGID(s)
	}

	e.checkFilesystemFlags(s)

	for _, td := range s.Filesystems {
		e.checkFilesystemResources(s, td)
	}

	return true
}
