package validate

import (
	"log"
	"time"

	"servicemon/internal/collector"
	"servicemon/internal/event"
	"servicemon/internal/service"
)

// checkPerm tests the permission bits of the observed path.
func (e *Engine) checkPerm(s *service.Service) {
	if s.Inf.Perm != s.Perm.Perm {
		e.post(s, event.Permission, event.StateFailed, s.Perm.Action, "permission test failed for %s -- current permission is %04o", s.Path, s.Inf.Perm)
	} else {
		e.post(s, event.Permission, event.StateSucceeded, s.Perm.Action, "permission succeeded")
	}
}

// checkUID tests the owning uid of the observed path.
func (e *Engine) checkUID(s *service.Service) {
	if s.Inf.UID != s.Owner.UID {
		e.post(s, event.Uid, event.StateFailed, s.Owner.Action, "uid test failed for %s -- current uid is %d", s.Path, s.Inf.UID)
	} else {
		e.post(s, event.Uid, event.StateSucceeded, s.Owner.Action, "uid succeeded")
	}
}

// checkGID tests the owning gid of the observed path.
func (e *Engine) checkGID(s *service.Service) {
	if s.Inf.GID != s.Group.GID {
		e.post(s, event.Gid, event.StateFailed, s.Group.Action, "gid test failed for %s -- current gid is %d", s.Path, s.Inf.GID)
	} else {
		e.post(s, event.Gid, event.StateSucceeded, s.Group.Action, "gid succeeded")
	}
}

// checkChecksum tests the file digest against the rule's expected hash.
// A digest that cannot be computed is a data error, not a checksum event.
func (e *Engine) checkChecksum(s *service.Service) {
	cs := s.Checksum

	sum, err := collector.Checksum(s.Path, cs.Kind)
	if err != nil {
		e.post(s, event.Data, event.StateFailed, s.Actions.Data, "cannot compute checksum for %s", s.Path)
		return
	}
	s.Inf.File.Checksum = sum
	e.post(s, event.Data, event.StateSucceeded, s.Actions.Data, "checksum computed for %s", s.Path)

	if !cs.Initialized {
		// First observation seeds the expected hash without a checksum
		// event.
		cs.Initialized = true
		cs.Hash = sum
		return
	}

	n := cs.Kind.HexLength()
	changed := len(cs.Hash) < n || len(sum) < n || cs.Hash[:n] != sum[:n]

	if changed {
		if cs.TestChanges {
			// The value is variable, report the transition and track the
			// new digest for the next cycle.
			e.post(s, event.Checksum, event.StateChanged, cs.Action, "checksum was changed for %s", s.Path)
			cs.Hash = sum
		} else {
			e.post(s, event.Checksum, event.StateFailed, cs.Action, "checksum test failed for %s", s.Path)
		}
	} else if cs.TestChanges {
		e.post(s, event.Checksum, event.StateChangedNot, cs.Action, "checksum has not changed")
	} else {
		e.post(s, event.Checksum, event.StateSucceeded, cs.Action, "checksum succeeded")
	}
}

// checkSize tests the file size rules. Only the first change-detection
// rule in the list is processed.
func (e *Engine) checkSize(s *service.Service) {
	size := s.Inf.File.Size

	for _, sl := range s.Sizes {
		if sl.TestChanges {
			if !sl.Initialized {
				// Seed on the first cycle and start change testing on
				// the next one.
				sl.Initialized = true
				sl.Size = size
			} else if sl.Size != size {
				e.post(s, event.Size, event.StateChanged, sl.Action, "size was changed for %s", s.Path)
				sl.Size = size
			} else {
				e.post(s, event.Size, event.StateChangedNot, sl.Action, "size was not changed")
			}
			break
		}

		if sl.Operator.Eval(size, sl.Size) {
			e.post(s, event.Size, event.StateFailed, sl.Action, "size test failed for %s -- current size is %d B", s.Path, size)
		} else {
			e.post(s, event.Size, event.StateSucceeded, sl.Action, "size succeeded")
		}
	}
}

// checkTimestamp tests the path timestamp rules against max(mtime, ctime).
func (e *Engine) checkTimestamp(s *service.Service, now time.Time) {
	observed := s.Inf.Timestamp

	for _, t := range s.Timestamps {
		if t.TestChanges {
			if !t.Initialized {
				t.Initialized = true
				t.Timestamp = observed
			} else if !t.Timestamp.Equal(observed) {
				t.Timestamp = observed
				e.post(s, event.Timestamp, event.StateChanged, t.Action, "timestamp was changed for %s", s.Path)
			} else {
				e.post(s, event.Timestamp, event.StateChangedNot, t.Action, "timestamp was not changed for %s", s.Path)
			}
			break
		}

		age := int64(now.Sub(observed).Seconds())
		if t.Operator.Eval(age, t.Seconds) {
			e.post(s, event.Timestamp, event.StateFailed, t.Action, "timestamp test failed for %s", s.Path)
		} else {
			e.post(s, event.Timestamp, event.StateSucceeded, t.Action, "timestamp succeeded")
		}
	}
}

// checkUptime tests process uptime rules.
func (e *Engine) checkUptime(s *service.Service) {
	for _, ul := range s.Uptimes {
		if ul.Operator.Eval(s.Inf.Process.Uptime, ul.Seconds) {
			e.post(s, event.Uptime, event.StateFailed, ul.Action, "uptime test failed for %s -- current uptime is %d seconds", s.Path, s.Inf.Process.Uptime)
		} else {
			e.post(s, event.Uptime, event.StateSucceeded, ul.Action, "uptime succeeded")
		}
	}
}

// checkProcessState tests for zombie state.
func (e *Engine) checkProcessState(s *service.Service) {
	if s.Inf.Process.Zombie {
		e.post(s, event.Data, event.StateFailed, s.Actions.Data, "process with pid %d is a zombie", s.Inf.Process.PID)
	} else {
		e.post(s, event.Data, event.StateSucceeded, s.Actions.Data, "check process state succeeded")
	}
}

// checkProcessPid reports pid changes since the last cycle.
func (e *Engine) checkProcessPid(s *service.Service) {
	prev := s.Inf.Process.PrevPID
	if prev == nil {
		return
	}
	if *prev != s.Inf.Process.PID {
		e.post(s, event.Pid, event.StateChanged, s.Actions.Pid, "process PID changed from %d to %d", *prev, s.Inf.Process.PID)
	} else {
		e.post(s, event.Pid, event.StateChangedNot, s.Actions.Pid, "process PID has not changed since last cycle")
	}
}

// checkProcessPpid reports ppid changes since the last cycle.
func (e *Engine) checkProcessPpid(s *service.Service) {
	prev := s.Inf.Process.PrevPPID
	if prev == nil {
		return
	}
	if *prev != s.Inf.Process.PPID {
		e.post(s, event.PPid, event.StateChanged, s.Actions.PPid, "process PPID changed from %d to %d", *prev, s.Inf.Process.PPID)
	} else {
		e.post(s, event.PPid, event.StateChangedNot, s.Actions.PPid, "process PPID has not changed since last cycle")
	}
}

// checkFilesystemFlags reports mount flag changes since the last cycle.
// There is no succeeded counterpart.
func (e *Engine) checkFilesystemFlags(s *service.Service) {
	fs := s.Inf.Filesystem
	if fs.PrevFlags == nil {
		return
	}
	if *fs.PrevFlags != fs.Flags {
		e.post(s, event.Fsflag, event.StateChanged, s.Actions.Fsflag, "filesystem flags changed to %#x", fs.Flags)
	}
}

// checkFilesystemResources tests one inode or space rule.
func (e *Engine) checkFilesystemResources(s *service.Service, td *service.FilesystemRule) {
	if td.LimitPercent == nil && td.LimitAbsolute == nil {
		log.Printf("'%s' error: filesystem limit not set", s.Name)
		return
	}
	fs := s.Inf.Filesystem

	switch td.Resource {
	case service.FilesystemInode:
		if fs.Files <= 0 {
			// Filesystem without inode accounting, nothing to test.
			return
		}
		if td.LimitPercent != nil {
			if td.Operator.Eval(fs.InodePercent, *td.LimitPercent) {
				e.post(s, event.Resource, event.StateFailed, td.Action, "inode usage %.1f%% matches resource limit [inode usage %s %.1f%%]", float64(fs.InodePercent)/10, td.Operator, float64(*td.LimitPercent)/10)
				return
			}
		} else if td.Operator.Eval(fs.InodeTotal, *td.LimitAbsolute) {
			e.post(s, event.Resource, event.StateFailed, td.Action, "inode usage %d matches resource limit [inode usage %s %d]", fs.InodeTotal, td.Operator, *td.LimitAbsolute)
			return
		}
		e.post(s, event.Resource, event.StateSucceeded, td.Action, "filesystem resources succeeded")

	case service.FilesystemSpace:
		if td.LimitPercent != nil {
			if td.Operator.Eval(fs.SpacePercent, *td.LimitPercent) {
				e.post(s, event.Resource, event.StateFailed, td.Action, "space usage %.1f%% matches resource limit [space usage %s %.1f%%]", float64(fs.SpacePercent)/10, td.Operator, float64(*td.LimitPercent)/10)
				return
			}
		} else if td.Operator.Eval(fs.SpaceTotal, *td.LimitAbsolute) {
			e.post(s, event.Resource, event.StateFailed, td.Action, "space usage %d blocks matches resource limit [space usage %s %d blocks]", fs.SpaceTotal, td.Operator, *td.LimitAbsolute)
			return
		}
		e.post(s, event.Resource, event.StateSucceeded, td.Action, "filesystem resources succeeded")

	default:
		log.Printf("'%s' error: unknown filesystem resource type %d", s.Name, td.Resource)
	}
}
