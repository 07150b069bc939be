package validate

import (
	"fmt"
	"log"

	"servicemon/internal/event"
	"servicemon/internal/service"
)

// checkProcessResources tests one process or system resource rule. The
// CPU families are skipped while the service is initializing or while
// the sampled value is still the first-sample sentinel.
func (e *Engine) checkProcessResources(s *service.Service, r *service.ResourceRule) {
	okay := true
	report := ""

	proc := s.Inf.Process
	if proc == nil {
		proc = &service.ProcessInfo{CPUPercent: -1, TotalCPUPercent: -1}
	}

	switch r.Resource {

	case service.ResourceCPUPercent:
		if s.Monitor&service.MonitorInit != 0 || proc.CPUPercent < 0 {
			return
		}
		if r.Operator.Eval(proc.CPUPercent, r.Limit) {
			report = fmt.Sprintf("cpu usage of %.1f%% matches resource limit [cpu usage %s %.1f%%]", float64(proc.CPUPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' cpu usage check succeeded [current cpu usage=%.1f%%]", s.Name, float64(proc.CPUPercent)/10)
		}

	case service.ResourceTotalCPUPercent:
		if s.Monitor&service.MonitorInit != 0 || proc.TotalCPUPercent < 0 {
			return
		}
		if r.Operator.Eval(proc.TotalCPUPercent, r.Limit) {
			report = fmt.Sprintf("total cpu usage of %.1f%% matches resource limit [cpu usage %s %.1f%%]", float64(proc.TotalCPUPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' total cpu usage check succeeded [current cpu usage=%.1f%%]", s.Name, float64(proc.TotalCPUPercent)/10)
		}

	case service.ResourceCPUUser:
		if s.Monitor&service.MonitorInit != 0 || e.sys.CPUUserPercent < 0 {
			return
		}
		if r.Operator.Eval(e.sys.CPUUserPercent, r.Limit) {
			report = fmt.Sprintf("cpu user usage of %.1f%% matches resource limit [cpu user usage %s %.1f%%]", float64(e.sys.CPUUserPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' cpu user usage check succeeded [current cpu user usage=%.1f%%]", s.Name, float64(e.sys.CPUUserPercent)/10)
		}

	case service.ResourceCPUSystem:
		if s.Monitor&service.MonitorInit != 0 || e.sys.CPUSystemPercent < 0 {
			return
		}
		if r.Operator.Eval(e.sys.CPUSystemPercent, r.Limit) {
			report = fmt.Sprintf("cpu system usage of %.1f%% matches resource limit [cpu system usage %s %.1f%%]", float64(e.sys.CPUSystemPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' cpu system usage check succeeded [current cpu system usage=%.1f%%]", s.Name, float64(e.sys.CPUSystemPercent)/10)
		}

	case service.ResourceCPUWait:
		if s.Monitor&service.MonitorInit != 0 || e.sys.CPUWaitPercent < 0 {
			return
		}
		if r.Operator.Eval(e.sys.CPUWaitPercent, r.Limit) {
			report = fmt.Sprintf("cpu wait usage of %.1f%% matches resource limit [cpu wait usage %s %.1f%%]", float64(e.sys.CPUWaitPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' cpu wait usage check succeeded [current cpu wait usage=%.1f%%]", s.Name, float64(e.sys.CPUWaitPercent)/10)
		}

	case service.ResourceMemoryPercent:
		value := proc.MemPercent
		if s.Type == service.TypeSystem {
			value = e.sys.MemPercent
		}
		if r.Operator.Eval(value, r.Limit) {
			report = fmt.Sprintf("mem usage of %.1f%% matches resource limit [mem usage %s %.1f%%]", float64(value)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' mem usage check succeeded [current mem usage=%.1f%%]", s.Name, float64(value)/10)
		}

	case service.ResourceMemoryKB:
		value := proc.MemKB
		if s.Type == service.TypeSystem {
			value = e.sys.MemKB
		}
		if r.Operator.Eval(value, r.Limit) {
			report = fmt.Sprintf("mem amount of %dkB matches resource limit [mem amount %s %dkB]", value, r.Operator, r.Limit)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' mem amount check succeeded [current mem amount=%dkB]", s.Name, value)
		}

	case service.ResourceSwapPercent:
		if s.Type != service.TypeSystem {
			return
		}
		if r.Operator.Eval(e.sys.SwapPercent, r.Limit) {
			report = fmt.Sprintf("swap usage of %.1f%% matches resource limit [swap usage %s %.1f%%]", float64(e.sys.SwapPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' swap usage check succeeded [current swap usage=%.1f%%]", s.Name, float64(e.sys.SwapPercent)/10)
		}

	case service.ResourceSwapKB:
		if s.Type != service.TypeSystem {
			return
		}
		if r.Operator.Eval(e.sys.SwapKB, r.Limit) {
			report = fmt.Sprintf("swap amount of %dkB matches resource limit [swap amount %s %dkB]", e.sys.SwapKB, r.Operator, r.Limit)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' swap amount check succeeded [current swap amount=%dkB]", s.Name, e.sys.SwapKB)
		}

	case service.ResourceLoad1, service.ResourceLoad5, service.ResourceLoad15:
		idx, label := 0, "loadavg(1min)"
		switch r.Resource {
		case service.ResourceLoad5:
			idx, label = 1, "loadavg(5min)"
		case service.ResourceLoad15:
			idx, label = 2, "loadavg(15min)"
		}
		value := e.sys.LoadAvg[idx]
		if r.Operator.Eval(int64(value*10), r.Limit) {
			report = fmt.Sprintf("%s of %.1f matches resource limit [%s %s %.1f]", label, value, label, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' %s check succeeded [current %s=%.1f]", s.Name, label, label, value)
		}

	case service.ResourceChildren:
		if r.Operator.Eval(int64(proc.Children), r.Limit) {
			report = fmt.Sprintf("children of %d matches resource limit [children %s %d]", proc.Children, r.Operator, r.Limit)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' children check succeeded [current children=%d]", s.Name, proc.Children)
		}

	case service.ResourceTotalMemoryKB:
		if r.Operator.Eval(proc.TotalMemKB, r.Limit) {
			report = fmt.Sprintf("total mem amount of %dkB matches resource limit [total mem amount %s %dkB]", proc.TotalMemKB, r.Operator, r.Limit)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' total mem amount check succeeded [current total mem amount=%dkB]", s.Name, proc.TotalMemKB)
		}

	case service.ResourceTotalMemoryPercent:
		if r.Operator.Eval(proc.TotalMemPercent, r.Limit) {
			report = fmt.Sprintf("total mem amount of %.1f%% matches resource limit [total mem amount %s %.1f%%]", float64(proc.TotalMemPercent)/10, r.Operator, float64(r.Limit)/10)
			okay = false
		} else {
			report = fmt.Sprintf("'%s' total mem amount check succeeded [current total mem amount=%.1f%%]", s.Name, float64(proc.TotalMemPercent)/10)
		}

	default:
		log.Printf("'%s' error: unknown resource ID %d", s.Name, r.Resource)
		return
	}

	if !okay {
		e.post(s, event.Resource, event.StateFailed, r.Action, "%s", report)
	} else {
		e.post(s, event.Resource, event.StateSucceeded, r.Action, "%s", report)
	}
}
