package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Operator is a quantified comparison between an observed value and a
// rule limit. Eval reports true when the rule fires.
type Operator int

const (
	OperatorEqual Operator = iota
	OperatorNotEqual
	OperatorGreater
	OperatorLess
	OperatorGreaterEqual
	OperatorLessEqual
)

// ParseOperator maps a configuration token to an Operator.
func ParseOperator(raw string) (Operator, error) {
	switch strings.TrimSpace(raw) {
	case "=", "==", "eq", "equal":
		return OperatorEqual, nil
	case "!=", "ne", "notequal":
		return OperatorNotEqual, nil
	case ">", "gt", "greater":
		return OperatorGreater, nil
	case "<", "lt", "less":
		return OperatorLess, nil
	case ">=", "ge":
		return OperatorGreaterEqual, nil
	case "<=", "le":
		return OperatorLessEqual, nil
	}
	return OperatorEqual, fmt.Errorf("unknown operator %q", raw)
}

// Eval compares value against limit and reports whether the rule fires.
func (op Operator) Eval(value, limit int64) bool {
	switch op {
	case OperatorEqual:
		return value == limit
	case OperatorNotEqual:
		return value != limit
	case OperatorGreater:
		return value > limit
	case OperatorLess:
		return value < limit
	case OperatorGreaterEqual:
		return value >= limit
	case OperatorLessEqual:
		return value <= limit
	default:
		return false
	}
}

// String returns the short operator name used in report strings.
func (op Operator) String() string {
	switch op {
	case OperatorEqual:
		return "="
	case OperatorNotEqual:
		return "!="
	case OperatorGreater:
		return ">"
	case OperatorLess:
		return "<"
	case OperatorGreaterEqual:
		return ">="
	case OperatorLessEqual:
		return "<="
	default:
		return "?"
	}
}

// HashKind selects the digest a checksum rule compares.
type HashKind int

const (
	HashMD5 HashKind = iota
	HashSHA1
)

// HexLength returns the number of hex characters compared for the kind.
func (k HashKind) HexLength() int {
	if k == HashSHA1 {
		return 40
	}
	return 32
}

// PermRule verifies the permission bits of a path.
type PermRule struct {
	Perm   int
	Action Action
}

// OwnerRule verifies the owning uid of a path.
type OwnerRule struct {
	UID    uint32
	Action Action
}

// GroupRule verifies the owning gid of a path.
type GroupRule struct {
	GID    uint32
	Action Action
}

// ChecksumRule verifies a file digest, either against a constant value or
// as a change detector. The first successful digest seeds Hash.
type ChecksumRule struct {
	Kind        HashKind
	TestChanges bool
	Initialized bool
	Hash        string
	Action      Action
}

// SizeRule verifies a file size, either against a constant limit or as a
// change detector.
type SizeRule struct {
	Operator    Operator
	Size        int64
	TestChanges bool
	Initialized bool
	Action      Action
}

// TimestampRule verifies a path timestamp. Constant-value rules compare
// the age in seconds against Seconds; change detectors compare the stored
// timestamp against the current one.
type TimestampRule struct {
	Operator    Operator
	Seconds     int64
	TestChanges bool
	Initialized bool
	Timestamp   time.Time
	Action      Action
}

// UptimeRule verifies a process uptime in seconds.
type UptimeRule struct {
	Operator Operator
	Seconds  int64
	Action   Action
}

// MatchRule is a content pattern applied to lines appended to a file.
// Regex is nil when the pattern is matched by substring containment.
type MatchRule struct {
	Pattern string
	Not     bool
	Regex   *regexp.Regexp
	Action  Action
}

// Matches reports whether a line matches the pattern, before the
// rule's Not polarity is applied.
func (m *MatchRule) Matches(line string) bool {
	if m.Regex != nil {
		return m.Regex.MatchString(line)
	}
	return strings.Contains(line, m.Pattern)
}

// StatusRule verifies a program exit status.
type StatusRule struct {
	Operator    Operator
	ReturnValue int
	Action      Action
}

// ActionRate limits how often a service may be restarted: Count starts
// within Cycles cycles trips the rule.
type ActionRate struct {
	Count  int
	Cycles int
	Action Action
}

// ResourceID tags which process or system resource a ResourceRule reads.
type ResourceID int

const (
	ResourceCPUPercent ResourceID = iota
	ResourceTotalCPUPercent
	ResourceCPUUser
	ResourceCPUSystem
	ResourceCPUWait
	ResourceMemoryPercent
	ResourceMemoryKB
	ResourceSwapPercent
	ResourceSwapKB
	ResourceLoad1
	ResourceLoad5
	ResourceLoad15
	ResourceChildren
	ResourceTotalMemoryKB
	ResourceTotalMemoryPercent
)

// ResourceRule verifies a process or system resource against a limit.
// Percent limits are scaled by 10.
type ResourceRule struct {
	Resource ResourceID
	Operator Operator
	Limit    int64
	Action   Action
}

// FilesystemResource tags which filesystem resource a FilesystemRule reads.
type FilesystemResource int

const (
	FilesystemInode FilesystemResource = iota
	FilesystemSpace
)

// FilesystemRule verifies filesystem inode or space usage. Exactly one of
// LimitPercent (scaled by 10) and LimitAbsolute must be set.
type FilesystemRule struct {
	Resource      FilesystemResource
	Operator      Operator
	LimitPercent  *int64
	LimitAbsolute *int64
	Action        Action
}

// IcmpType tags the ICMP request kind of a ping probe.
type IcmpType int

const (
	IcmpTypeEcho IcmpType = iota
)

// Icmp is a ping probe attached to a remote-host service.
type Icmp struct {
	Type      IcmpType
	Timeout   time.Duration
	Count     int
	Response  float64
	Available bool
	Action    Action
}

// Port is a connection probe target attached to a process or remote-host
// service. For unix sockets Path is set instead of Hostname/Port.
type Port struct {
	Hostname string
	Port     int
	Path     string
	Network  string
	Timeout  time.Duration
	Retry    int
	Protocol string

	Response  float64
	Available bool
	Action    Action
}

// Description renders the probe target for report strings.
func (p *Port) Description() string {
	if p.Path != "" {
		return fmt.Sprintf("UNIX[%s]", p.Path)
	}
	return fmt.Sprintf("INET[%s:%d]", p.Hostname, p.Port)
}

// Address returns the dialable address of the port.
func (p *Port) Address() string {
	if p.Path != "" {
		return p.Path
	}
	return fmt.Sprintf("%s:%d", p.Hostname, p.Port)
}
