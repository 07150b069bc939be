package config

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/adhocore/gronx"

	"servicemon/internal/service"
)

const (
	defaultProbeTimeout   = 5 * time.Second
	defaultProgramTimeout = 300 * time.Second
	defaultIcmpCount      = 3
)

// BuildServices translates the configuration into the service list the
// validation engine walks.
func BuildServices(cfg Config) ([]*service.Service, error) {
	services := make([]*service.Service, 0, len(cfg.Services))
	for i := range cfg.Services {
		s, err := buildService(&cfg.Services[i])
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", cfg.Services[i].Name, err)
		}
		services = append(services, s)
	}
	return services, nil
}

func buildService(sc *ServiceConfig) (*service.Service, error) {
	kind, err := parseType(sc.Type)
	if err != nil {
		return nil, err
	}

	s := &service.Service{
		Name:         sc.Name,
		Type:         kind,
		Path:         sc.Path,
		Pidfile:      sc.Pidfile,
		MatchProcess: sc.Match,
		Monitor:      service.MonitorInit,
		Actions:      service.DefaultEventActions(),
		DependsOn:    sc.DependsOn,
		Start:        sc.Start,
		Stop:         sc.Stop,
	}
	if s.Path == "" {
		s.Path = sc.Host
	}

	switch kind {
	case service.TypeFile, service.TypeDirectory, service.TypeFifo, service.TypeFilesystem:
		if s.Path == "" {
			return nil, fmt.Errorf("%s service requires a path", kind)
		}
	case service.TypeRemoteHost:
		if s.Path == "" {
			return nil, fmt.Errorf("remote-host service requires a host")
		}
	case service.TypeProcess:
		if s.Pidfile == "" && s.MatchProcess == "" {
			return nil, fmt.Errorf("process service requires a pidfile or a match name")
		}
	case service.TypeProgram:
		if len(sc.Command) == 0 {
			return nil, fmt.Errorf("program service requires a command")
		}
	}

	if err := buildEvery(sc.Every, s); err != nil {
		return nil, err
	}

	if kind == service.TypeProgram {
		timeout := time.Duration(sc.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultProgramTimeout
		}
		s.Program = &service.Program{
			Command:    sc.Command,
			Timeout:    timeout,
			ExitStatus: -1,
		}
		if s.Path == "" {
			s.Path = sc.Command[0]
		}
	}

	if sc.Permission != nil {
		perm, err := strconv.ParseInt(sc.Permission.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("bad permission mode %q: %w", sc.Permission.Mode, err)
		}
		s.Perm = &service.PermRule{Perm: int(perm), Action: parseAction(sc.Permission.Action)}
	}
	if sc.Owner != nil {
		s.Owner = &service.OwnerRule{UID: sc.Owner.UID, Action: parseAction(sc.Owner.Action)}
	}
	if sc.Group != nil {
		s.Group = &service.GroupRule{GID: sc.Group.GID, Action: parseAction(sc.Group.Action)}
	}
	if sc.Checksum != nil {
		rule := &service.ChecksumRule{
			TestChanges: sc.Checksum.Changes,
			Action:      parseAction(sc.Checksum.Action),
		}
		switch sc.Checksum.Kind {
		case "", "md5":
			rule.Kind = service.HashMD5
		case "sha1":
			rule.Kind = service.HashSHA1
		default:
			return nil, fmt.Errorf("unknown checksum kind %q", sc.Checksum.Kind)
		}
		if sc.Checksum.Expect != "" {
			rule.Hash = sc.Checksum.Expect
			rule.Initialized = true
		}
		s.Checksum = rule
	}

	for _, c := range sc.Sizes {
		op, err := service.ParseOperator(c.Operator)
		if err != nil && !c.Changes {
			return nil, err
		}
		s.Sizes = append(s.Sizes, &service.SizeRule{
			Operator:    op,
			Size:        c.Bytes,
			TestChanges: c.Changes,
			Action:      parseAction(c.Action),
		})
	}
	for _, c := range sc.Timestamps {
		op, err := service.ParseOperator(c.Operator)
		if err != nil && !c.Changes {
			return nil, err
		}
		s.Timestamps = append(s.Timestamps, &service.TimestampRule{
			Operator:    op,
			Seconds:     c.Seconds,
			TestChanges: c.Changes,
			Action:      parseAction(c.Action),
		})
	}
	for _, c := range sc.Uptimes {
		op, err := service.ParseOperator(c.Operator)
		if err != nil {
			return nil, err
		}
		s.Uptimes = append(s.Uptimes, &service.UptimeRule{
			Operator: op,
			Seconds:  c.Seconds,
			Action:   parseAction(c.Action),
		})
	}

	s.Matches = buildMatches(sc.Name, sc.Matches)
	s.MatchIgnores = buildMatches(sc.Name, sc.Ignores)

	for _, c := range sc.Ports {
		timeout := time.Duration(c.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}
		if c.Path == "" && c.Hostname == "" {
			return nil, fmt.Errorf("port probe requires a hostname or a socket path")
		}
		s.Ports = append(s.Ports, &service.Port{
			Hostname: c.Hostname,
			Port:     c.Port,
			Path:     c.Path,
			Network:  c.Network,
			Protocol: c.Protocol,
			Timeout:  timeout,
			Retry:    c.Retry,
			Action:   parseAction(c.Action),
		})
	}
	for _, c := range sc.Icmp {
		timeout := time.Duration(c.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}
		count := c.Count
		if count <= 0 {
			count = defaultIcmpCount
		}
		s.Icmps = append(s.Icmps, &service.Icmp{
			Type:    service.IcmpTypeEcho,
			Timeout: timeout,
			Count:   count,
			Action:  parseAction(c.Action),
		})
	}

	for _, c := range sc.Resources {
		rule, err := buildResource(c)
		if err != nil {
			return nil, err
		}
		s.Resources = append(s.Resources, rule)
	}
	for _, c := range sc.Filesystem {
		rule, err := buildFilesystemRule(c)
		if err != nil {
			return nil, err
		}
		s.Filesystems = append(s.Filesystems, rule)
	}
	for _, c := range sc.Statuses {
		op, err := service.ParseOperator(c.Operator)
		if err != nil {
			return nil, err
		}
		s.Statuses = append(s.Statuses, &service.StatusRule{
			Operator:    op,
			ReturnValue: c.Value,
			Action:      parseAction(c.Action),
		})
	}
	for _, c := range sc.ActionRate {
		if c.Count <= 0 || c.Cycles <= 0 {
			return nil, fmt.Errorf("action rate requires positive count and cycles")
		}
		s.ActionRates = append(s.ActionRates, &service.ActionRate{
			Count:  c.Count,
			Cycles: c.Cycles,
			Action: parseAction(c.Action),
		})
	}

	return s, nil
}

func parseType(raw string) (service.Type, error) {
	switch raw {
	case "process":
		return service.TypeProcess, nil
	case "file":
		return service.TypeFile, nil
	case "directory":
		return service.TypeDirectory, nil
	case "fifo":
		return service.TypeFifo, nil
	case "filesystem":
		return service.TypeFilesystem, nil
	case "program":
		return service.TypeProgram, nil
	case "remote-host", "host":
		return service.TypeRemoteHost, nil
	case "system":
		return service.TypeSystem, nil
	}
	return 0, fmt.Errorf("unknown service type %q", raw)
}

func parseAction(raw string) service.Action {
	switch service.Action(raw) {
	case service.ActionAlert, service.ActionRestart, service.ActionStart,
		service.ActionStop, service.ActionExec, service.ActionMonitor,
		service.ActionUnmonitor:
		return service.Action(raw)
	case service.ActionIgnore:
		return service.ActionAlert
	default:
		log.Printf("unknown action %q, falling back to alert", raw)
		return service.ActionAlert
	}
}

func buildEvery(ec *EveryConfig, s *service.Service) error {
	if ec == nil {
		return nil
	}
	set := 0
	if ec.Cycles > 0 {
		set++
		s.Every = service.Every{Type: service.EverySkipCycles, Number: ec.Cycles}
	}
	if ec.Cron != "" {
		set++
		s.Every = service.Every{Type: service.EveryCron, Cron: ec.Cron}
	}
	if ec.NotInCron != "" {
		set++
		s.Every = service.Every{Type: service.EveryNotInCron, Cron: ec.NotInCron}
	}
	if set > 1 {
		return fmt.Errorf("every accepts only one of cycles, cron and not_in_cron")
	}
	if s.Every.Cron != "" && !gronx.New().IsValid(s.Every.Cron) {
		return fmt.Errorf("bad cron spec %q", s.Every.Cron)
	}
	return nil
}

// buildMatches compiles content patterns. A pattern that is not a valid
// regular expression degrades to substring containment.
func buildMatches(name string, configs []MatchConfig) []*service.MatchRule {
	rules := make([]*service.MatchRule, 0, len(configs))
	for _, c := range configs {
		rule := &service.MatchRule{
			Pattern: c.Pattern,
			Not:     c.Not,
			Action:  parseAction(c.Action),
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			log.Printf("'%s' pattern %q is not a valid regex, matching as substring: %v", name, c.Pattern, err)
		} else {
			rule.Regex = re
		}
		rules = append(rules, rule)
	}
	return rules
}

func buildResource(c ResourceConfig) (*service.ResourceRule, error) {
	op, err := service.ParseOperator(c.Operator)
	if err != nil {
		return nil, err
	}

	var id service.ResourceID
	scaled := false
	switch c.Resource {
	case "cpu_percent":
		id, scaled = service.ResourceCPUPercent, true
	case "total_cpu_percent":
		id, scaled = service.ResourceTotalCPUPercent, true
	case "cpu_user":
		id, scaled = service.ResourceCPUUser, true
	case "cpu_system":
		id, scaled = service.ResourceCPUSystem, true
	case "cpu_wait":
		id, scaled = service.ResourceCPUWait, true
	case "memory_percent":
		id, scaled = service.ResourceMemoryPercent, true
	case "memory_kb":
		id = service.ResourceMemoryKB
	case "swap_percent":
		id, scaled = service.ResourceSwapPercent, true
	case "swap_kb":
		id = service.ResourceSwapKB
	case "load1":
		id, scaled = service.ResourceLoad1, true
	case "load5":
		id, scaled = service.ResourceLoad5, true
	case "load15":
		id, scaled = service.ResourceLoad15, true
	case "children":
		id = service.ResourceChildren
	case "total_memory_kb":
		id = service.ResourceTotalMemoryKB
	case "total_memory_percent":
		id, scaled = service.ResourceTotalMemoryPercent, true
	default:
		return nil, fmt.Errorf("unknown resource %q", c.Resource)
	}

	limit := int64(c.Limit)
	if scaled {
		limit = int64(c.Limit * 10)
	}
	return &service.ResourceRule{Resource: id, Operator: op, Limit: limit, Action: parseAction(c.Action)}, nil
}

func buildFilesystemRule(c FilesystemConfig) (*service.FilesystemRule, error) {
	op, err := service.ParseOperator(c.Operator)
	if err != nil {
		return nil, err
	}

	var id service.FilesystemResource
	switch c.Resource {
	case "inode":
		id = service.FilesystemInode
	case "space":
		id = service.FilesystemSpace
	default:
		return nil, fmt.Errorf("unknown filesystem resource %q", c.Resource)
	}

	if (c.Percent == nil) == (c.Absolute == nil) {
		return nil, fmt.Errorf("filesystem rule requires exactly one of percent and absolute")
	}
	rule := &service.FilesystemRule{Resource: id, Operator: op, Action: parseAction(c.Action)}
	if c.Percent != nil {
		scaled := int64(*c.Percent * 10)
		rule.LimitPercent = &scaled
	}
	if c.Absolute != nil {
		value := *c.Absolute
		rule.LimitAbsolute = &value
	}
	return rule, nil
}
