package collector

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"servicemon/internal/service"
)

// Proc is one process in a tree snapshot.
type Proc struct {
	PID        int32
	PPID       int32
	Name       string
	Zombie     bool
	Uptime     int64
	MemKB      int64
	MemPercent int64
	// CPUPercent is scaled by 10; -1 until a previous snapshot provides
	// a delta to compute against.
	CPUPercent int64

	cpuTime  float64
	children []int32
}

// Tree is a process snapshot, rebuilt once per cycle before any checker
// runs and read-only thereafter.
type Tree struct {
	procs     map[int32]*Proc
	byName    map[string]int32
	collected time.Time
}

// BuildTree snapshots the process table. CPU percentages are computed as
// deltas against prev; pass nil on the first cycle.
func BuildTree(prev *Tree) (*Tree, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &Tree{
		procs:     make(map[int32]*Proc, len(procs)),
		byName:    make(map[string]int32),
		collected: now,
	}

	var elapsed float64
	if prev != nil {
		elapsed = now.Sub(prev.collected).Seconds()
	}

	for _, p := range procs {
		entry := &Proc{PID: p.Pid, CPUPercent: -1}

		if ppid, err := p.Ppid(); err == nil {
			entry.PPID = ppid
		}
		if name, err := p.Name(); err == nil {
			entry.Name = name
		}
		if statuses, err := p.Status(); err == nil {
			for _, st := range statuses {
				if st == process.Zombie {
					entry.Zombie = true
				}
			}
		}
		if created, err := p.CreateTime(); err == nil && created > 0 {
			entry.Uptime = int64(now.Sub(time.UnixMilli(created)).Seconds())
		}
		if mi, err := p.MemoryInfo(); err == nil && mi != nil {
			entry.MemKB = int64(mi.RSS / 1024)
		}
		if mp, err := p.MemoryPercent(); err == nil {
			entry.MemPercent = int64(mp * 10)
		}
		if times, err := p.Times(); err == nil && times != nil {
			entry.cpuTime = times.User + times.System
			if prev != nil && elapsed > 0 {
				if old := prev.Get(entry.PID); old != nil {
					delta := entry.cpuTime - old.cpuTime
					if delta < 0 {
						delta = 0
					}
					entry.CPUPercent = int64(1000 * delta / elapsed)
				}
			}
		}

		t.procs[entry.PID] = entry
		if entry.Name != "" {
			if _, seen := t.byName[entry.Name]; !seen {
				t.byName[entry.Name] = entry.PID
			}
		}
	}

	for pid, entry := range t.procs {
		if parent, ok := t.procs[entry.PPID]; ok && entry.PPID != pid {
			parent.children = append(parent.children, pid)
		}
	}

	return t, nil
}

// Get returns the snapshot entry for pid, or nil.
func (t *Tree) Get(pid int32) *Proc {
	if t == nil {
		return nil
	}
	return t.procs[pid]
}

// FindByName returns the pid of the first process with the given
// executable name, or 0.
func (t *Tree) FindByName(name string) int32 {
	if t == nil {
		return 0
	}
	return t.byName[name]
}

// Size returns the number of processes in the snapshot.
func (t *Tree) Size() int {
	if t == nil {
		return 0
	}
	return len(t.procs)
}

// Aggregate sums memory and cpu over a process and all of its
// descendants and counts the descendants.
func (t *Tree) Aggregate(pid int32) (children int, totalMemKB, totalMemPercent, totalCPUPercent int64) {
	root := t.Get(pid)
	if root == nil {
		return 0, 0, 0, 0
	}

	totalCPUPercent = -1
	seen := map[int32]bool{}
	stack := []int32{pid}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		entry := t.Get(cur)
		if entry == nil {
			continue
		}
		if cur != pid {
			children++
		}
		totalMemKB += entry.MemKB
		totalMemPercent += entry.MemPercent
		if entry.CPUPercent >= 0 {
			if totalCPUPercent < 0 {
				totalCPUPercent = 0
			}
			totalCPUPercent += entry.CPUPercent
		}
		stack = append(stack, entry.children...)
	}
	return children, totalMemKB, totalMemPercent, totalCPUPercent
}

// IsProcessRunning looks up the pid of a process service via its pidfile
// or executable name. Returns 0 when the process is not running.
func IsProcessRunning(s *service.Service, t *Tree) int32 {
	if s.Pidfile != "" {
		data, err := os.ReadFile(s.Pidfile)
		if err != nil {
			return 0
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
		if err != nil || pid <= 0 {
			return 0
		}
		if t.Get(int32(pid)) != nil {
			return int32(pid)
		}
		if ok, err := process.PidExists(int32(pid)); err == nil && ok {
			return int32(pid)
		}
		return 0
	}
	if s.MatchProcess != "" {
		return t.FindByName(s.MatchProcess)
	}
	return 0
}

// UpdateProcessData refreshes a service's process observation from the
// tree snapshot. Previous pid/ppid are rotated for change detection.
func UpdateProcessData(s *service.Service, t *Tree, pid int32) bool {
	entry := t.Get(pid)
	if entry == nil {
		return false
	}

	inf := s.Inf.Process
	if inf == nil {
		inf = &service.ProcessInfo{}
		s.Inf.Process = inf
	}

	if inf.PID != 0 {
		prev := inf.PID
		inf.PrevPID = &prev
	}
	if inf.PPID != 0 {
		prev := inf.PPID
		inf.PrevPPID = &prev
	}

	inf.PID = entry.PID
	inf.PPID = entry.PPID
	inf.Uptime = entry.Uptime
	inf.CPUPercent = entry.CPUPercent
	inf.MemPercent = entry.MemPercent
	inf.MemKB = entry.MemKB
	inf.Zombie = entry.Zombie
	inf.Children, inf.TotalMemKB, inf.TotalMemPercent, inf.TotalCPUPercent = t.Aggregate(pid)
	return true
}
