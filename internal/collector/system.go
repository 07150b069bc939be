package collector

import (
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemInfo holds system-wide sensors, refreshed once at cycle start and
// read-only thereafter. CPU percentages are scaled by 10 and stay -1
// until a second sample provides a delta.
type SystemInfo struct {
	LoadAvg [3]float64

	CPUUserPercent   int64
	CPUSystemPercent int64
	CPUWaitPercent   int64

	MemKB       int64
	MemPercent  int64
	SwapKB      int64
	SwapPercent int64

	Collected time.Time

	prevCPU *cpu.TimesStat
}

// NewSystemInfo creates a sensor set with CPU percentages in the
// first-sample sentinel state.
func NewSystemInfo() *SystemInfo {
	return &SystemInfo{
		CPUUserPercent:   -1,
		CPUSystemPercent: -1,
		CPUWaitPercent:   -1,
	}
}

// Refresh samples load average, CPU, memory and swap.
func (si *SystemInfo) Refresh() error {
	si.Collected = time.Now()

	avg, err := load.Avg()
	if err != nil {
		return err
	}
	si.LoadAvg = [3]float64{avg.Load1, avg.Load5, avg.Load15}

	if vm, err := mem.VirtualMemory(); err == nil {
		si.MemKB = int64(vm.Used / 1024)
		si.MemPercent = int64(vm.UsedPercent * 10)
	}
	if swap, err := mem.SwapMemory(); err == nil {
		si.SwapKB = int64(swap.Used / 1024)
		si.SwapPercent = int64(swap.UsedPercent * 10)
	}

	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return err
	}
	current := times[0]
	if si.prevCPU != nil {
		user := (current.User + current.Nice) - (si.prevCPU.User + si.prevCPU.Nice)
		system := (current.System + current.Irq + current.Softirq) - (si.prevCPU.System + si.prevCPU.Irq + si.prevCPU.Softirq)
		wait := current.Iowait - si.prevCPU.Iowait
		total := totalCPUTime(current) - totalCPUTime(*si.prevCPU)
		if total > 0 {
			si.CPUUserPercent = int64(1000 * user / total)
			si.CPUSystemPercent = int64(1000 * system / total)
			si.CPUWaitPercent = int64(1000 * wait / total)
		}
	}
	si.prevCPU = &current

	return nil
}

func totalCPUTime(t cpu.TimesStat) float64 {
	return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
}
