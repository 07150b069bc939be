package validate

import (
	"os"
	"syscall"
	"time"

	"servicemon/internal/event"
	"servicemon/internal/service"
)

// pathInfo is one stat observation of a filesystem path.
type pathInfo struct {
	mode      os.FileMode
	perm      int
	uid       uint32
	gid       uint32
	inode     uint64
	size      int64
	timestamp time.Time
}

// statPath stats a path, following symlinks, and extracts the fields the
// checkers consume. The timestamp is max(mtime, ctime).
func statPath(path string) (*pathInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	info := &pathInfo{
		mode:      fi.Mode(),
		size:      fi.Size(),
		timestamp: fi.ModTime(),
	}
	if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.perm = int(sys.Mode & 0o7777)
		info.uid = sys.Uid
		info.gid = sys.Gid
		info.inode = sys.Ino
		ctime := time.Unix(sys.Ctim.Sec, sys.Ctim.Nsec)
		if ctime.After(info.timestamp) {
			info.timestamp = ctime
		}
	}
	return info, nil
}

// checkFile validates a file service. A fatal event returns false and
// short-circuits the remaining rules for this cycle.
func (e *Engine) checkFile(s *service.Service) bool {
	st, err := statPath(s.Path)
	if err != nil {
		e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "file doesn't exist")
		return false
	}

	if s.Inf.File == nil {
		s.Inf.File = &service.FileInfo{}
	}
	inf := s.Inf.File

	s.Inf.Perm = st.perm
	s.Inf.UID = st.uid
	s.Inf.GID = st.gid
	s.Inf.Timestamp = st.timestamp
	if inf.Inode != 0 {
		inf.PrevInode = inf.Inode
	}
	inf.Inode = st.inode
	inf.Size = st.size
	e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "file exists")

	if !st.mode.IsRegular() {
		e.post(s, event.Invalid, event.StateFailed, s.Actions.Invalid, "is not a regular file")
		return false
	}
	e.post(s, event.Invalid, event.StateSucceeded, s.Actions.Invalid, "is a regular file")

	if s.Checksum != nil {
		e.checkChecksum(s)
	}
	if s.Perm != nil {
		e.checkPerm(s)
	}
	if s.Owner != nil {
		e.checkUID(s)
	}
	if s.Group != nil {
		e.checkGID(s)
	}
	if len(s.Sizes) > 0 {
		e.checkSize(s)
	}
	if len(s.Timestamps) > 0 {
		e.checkTimestamp(s, time.Now())
	}
	if len(s.Matches) > 0 {
		e.checkMatch(s)
	}

	return true
}

// checkDirectory validates a directory service.
func (e *Engine) checkDirectory(s *service.Service) bool {
	st, err := statPath(s.Path)
	if err != nil {
		e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "directory doesn't exist")
		return false
	}

	s.Inf.Perm = st.perm
	s.Inf.UID = st.uid
	s.Inf.GID = st.gid
	s.Inf.Timestamp = st.timestamp
	e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "directory exists")

	if !st.mode.IsDir() {
		e.post(s, event.Invalid, event.StateFailed, s.Actions.Invalid, "is not directory")
		return false
	}
	e.post(s, event.Invalid, event.StateSucceeded, s.Actions.Invalid, "is directory")

	if s.Perm != nil {
		e.checkPerm(s)
	}
	if s.Owner != nil {
		e.checkUID(s)
	}
	if s.Group != nil {
		e.checkGID(s)
	}
	if len(s.Timestamps) > 0 {
		e.checkTimestamp(s, time.Now())
	}

	return true
}

// checkFifo validates a fifo service.
func (e *Engine) checkFifo(s *service.Service) bool {
	st, err := statPath(s.Path)
	if err != nil {
		e.post(s, event.Nonexist, event.StateFailed, s.Actions.Nonexist, "fifo doesn't exist")
		return false
	}

	s.Inf.Perm = st.perm
	s.Inf.UID = st.uid
	s.Inf.GID = st.gid
	s.Inf.Timestamp = st.timestamp
	e.post(s, event.Nonexist, event.StateSucceeded, s.Actions.Nonexist, "fifo exists")

	if st.mode&os.ModeNamedPipe == 0 {
		e.post(s, event.Invalid, event.StateFailed, s.Actions.Invalid, "is not fifo")
		return false
	}
	e.post(s, event.Invalid, event.StateSucceeded, s.Actions.Invalid, "is fifo")

	if s.Perm != nil {
		e.checkPerm(s)
	}
	if s.Owner != nil {
		e.checkUID(s)
	}
	if s.Group != nil {
		e.checkGID(s)
	}
	if len(s.Timestamps) > 0 {
		e.checkTimestamp(s, time.Now())
	}

	return true
}
