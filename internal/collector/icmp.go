package collector

import (
	"errors"
	"os"
	"strings"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMP echo return values below zero carry meaning: -1 means the ping
// failed, -2 means the raw socket could not be opened for lack of
// privileges.
const (
	IcmpFailed       = -1.0
	IcmpNoPermission = -2.0
)

// IcmpEcho pings host count times within timeout and returns the average
// response time in seconds, or a negative sentinel.
func IcmpEcho(host string, timeout time.Duration, count int) float64 {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return IcmpFailed
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		if isPermissionError(err) {
			return IcmpNoPermission
		}
		return IcmpFailed
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return IcmpFailed
	}
	return stats.AvgRtt.Seconds()
}

func isPermissionError(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	return strings.Contains(err.Error(), "operation not permitted")
}
