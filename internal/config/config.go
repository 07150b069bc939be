package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents configuration data for the monitoring daemon.
type Config struct {
	IntervalSeconds int             `yaml:"interval_seconds"`
	DataDirectory   string          `yaml:"data_directory"`
	Listen          string          `yaml:"listen"`
	EventHistory    int             `yaml:"event_history"`
	ControlTimeout  int             `yaml:"control_timeout_seconds"`
	Services        []ServiceConfig `yaml:"services"`
}

// ServiceConfig declares one monitored service and its rules.
type ServiceConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Path    string   `yaml:"path"`
	Host    string   `yaml:"host"`
	Pidfile string   `yaml:"pidfile"`
	Match   string   `yaml:"match"`
	Start   []string `yaml:"start"`
	Stop    []string `yaml:"stop"`

	Every     *EveryConfig `yaml:"every"`
	DependsOn []string     `yaml:"depends_on"`

	Command        []string `yaml:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`

	Permission *PermissionConfig  `yaml:"permission"`
	Owner      *OwnerConfig       `yaml:"owner"`
	Group      *GroupConfig       `yaml:"group"`
	Checksum   *ChecksumConfig    `yaml:"checksum"`
	Sizes      []SizeConfig       `yaml:"sizes"`
	Timestamps []TimestampConfig  `yaml:"timestamps"`
	Uptimes    []UptimeConfig     `yaml:"uptimes"`
	Matches    []MatchConfig      `yaml:"matches"`
	Ignores    []MatchConfig      `yaml:"match_ignores"`
	Ports      []PortConfig       `yaml:"ports"`
	Icmp       []IcmpConfig       `yaml:"icmp"`
	Resources  []ResourceConfig   `yaml:"resources"`
	Filesystem []FilesystemConfig `yaml:"filesystem"`
	Statuses   []StatusConfig     `yaml:"statuses"`
	ActionRate []ActionRateConfig `yaml:"action_rates"`
}

// EveryConfig restricts which cycles evaluate a service. Exactly one of
// Cycles, Cron and NotInCron may be set.
type EveryConfig struct {
	Cycles    int    `yaml:"cycles"`
	Cron      string `yaml:"cron"`
	NotInCron string `yaml:"not_in_cron"`
}

// PermissionConfig verifies permission bits, given as an octal string.
type PermissionConfig struct {
	Mode   string `yaml:"mode"`
	Action string `yaml:"action"`
}

// OwnerConfig verifies the owning uid.
type OwnerConfig struct {
	UID    uint32 `yaml:"uid"`
	Action string `yaml:"action"`
}

// GroupConfig verifies the owning gid.
type GroupConfig struct {
	GID    uint32 `yaml:"gid"`
	Action string `yaml:"action"`
}

// ChecksumConfig verifies a file digest. Expect seeds the expected hash;
// when empty the first computed digest seeds it.
type ChecksumConfig struct {
	Kind    string `yaml:"kind"`
	Expect  string `yaml:"expect"`
	Changes bool   `yaml:"changes"`
	Action  string `yaml:"action"`
}

// SizeConfig verifies a file size in bytes.
type SizeConfig struct {
	Operator string `yaml:"operator"`
	Bytes    int64  `yaml:"bytes"`
	Changes  bool   `yaml:"changes"`
	Action   string `yaml:"action"`
}

// TimestampConfig verifies a path timestamp age in seconds.
type TimestampConfig struct {
	Operator string `yaml:"operator"`
	Seconds  int64  `yaml:"seconds"`
	Changes  bool   `yaml:"changes"`
	Action   string `yaml:"action"`
}

// UptimeConfig verifies process uptime in seconds.
type UptimeConfig struct {
	Operator string `yaml:"operator"`
	Seconds  int64  `yaml:"seconds"`
	Action   string `yaml:"action"`
}

// MatchConfig is a content pattern. Patterns are compiled as regular
// expressions; one that does not compile matches by substring.
type MatchConfig struct {
	Pattern string `yaml:"pattern"`
	Not     bool   `yaml:"not"`
	Action  string `yaml:"action"`
}

// PortConfig declares a connection probe.
type PortConfig struct {
	Hostname       string `yaml:"hostname"`
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	Network        string `yaml:"network"`
	Protocol       string `yaml:"protocol"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retry          int    `yaml:"retry"`
	Action         string `yaml:"action"`
}

// IcmpConfig declares a ping probe.
type IcmpConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Count          int    `yaml:"count"`
	Action         string `yaml:"action"`
}

// ResourceConfig verifies a process or system resource. Limit is a
// percentage for the percent families and a load average for the load
// families (both stored scaled by 10), otherwise an absolute value (kB,
// children).
type ResourceConfig struct {
	Resource string  `yaml:"resource"`
	Operator string  `yaml:"operator"`
	Limit    float64 `yaml:"limit"`
	Action   string  `yaml:"action"`
}

// FilesystemConfig verifies filesystem inode or space usage. Exactly one
// of Percent and Absolute must be set.
type FilesystemConfig struct {
	Resource string   `yaml:"resource"`
	Operator string   `yaml:"operator"`
	Percent  *float64 `yaml:"percent"`
	Absolute *int64   `yaml:"absolute"`
	Action   string   `yaml:"action"`
}

// StatusConfig verifies a program exit status.
type StatusConfig struct {
	Operator string `yaml:"operator"`
	Value    int    `yaml:"value"`
	Action   string `yaml:"action"`
}

// ActionRateConfig limits service restarts per cycle window.
type ActionRateConfig struct {
	Count  int    `yaml:"count"`
	Cycles int    `yaml:"cycles"`
	Action string `yaml:"action"`
}

// DefaultConfig returns sensible defaults in case no configuration file
// is provided.
func DefaultConfig() Config {
	return Config{
		IntervalSeconds: 30,
		DataDirectory:   filepath.Join(".dist", "data"),
		Listen:          ":2812",
		EventHistory:    4096,
		ControlTimeout:  30,
	}
}

// Interval returns the poll interval as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Load reads configuration from a yaml file.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("configuration file path is required")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 30
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = DefaultConfig().DataDirectory
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = DefaultConfig().EventHistory
	}
	if len(cfg.Services) == 0 {
		return Config{}, errors.New("configuration must define at least one service")
	}
	seen := make(map[string]bool, len(cfg.Services))
	for i, sc := range cfg.Services {
		if sc.Name == "" {
			return Config{}, fmt.Errorf("service %d is missing a name", i)
		}
		if seen[sc.Name] {
			return Config{}, fmt.Errorf("service %s declared twice", sc.Name)
		}
		seen[sc.Name] = true
	}
	return cfg, nil
}
