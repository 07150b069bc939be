package validate

import (
	"fmt"
	"net"
	"time"

	"servicemon/internal/event"
	"servicemon/internal/protocol"
	"servicemon/internal/service"
)

const defaultPortTimeout = 5 * time.Second

// checkConnection probes one port: open a socket, verify readiness and
// protocol, and time the exchange. Failures consume the retry budget
// before a single failed event is posted.
func (e *Engine) checkConnection(s *service.Service, p *service.Port) {
	proto := protocol.Get(p.Protocol)
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultPortTimeout
	}
	retries := p.Retry
	if retries < 1 {
		retries = 1
	}

	var report string
	for attempt := 1; attempt <= retries; attempt++ {
		started := time.Now()
		failure := e.tryConnection(p, proto, timeout)
		if failure == "" {
			p.Response = time.Since(started).Seconds()
			p.Available = true
			e.post(s, event.Connection, event.StateSucceeded, p.Action, "connection succeeded to %s", p.Description())
			return
		}
		report = failure
	}

	p.Response = -1
	p.Available = false
	e.post(s, event.Connection, event.StateFailed, p.Action, "%s", report)
}

// tryConnection runs a single probe attempt, returning an empty string
// on success or the failure report.
func (e *Engine) tryConnection(p *service.Port, proto protocol.Protocol, timeout time.Duration) string {
	network := p.Network
	if network == "" {
		network = "tcp"
	}
	if p.Path != "" {
		network = "unix"
	}

	conn, err := net.DialTimeout(network, p.Address(), timeout)
	if err != nil {
		return fmt.Sprintf("failed, cannot open a connection to %s", p.Description())
	}
	defer conn.Close()

	// Readiness is verified for stream sockets, and for datagram sockets
	// only when a protocol test follows; the readiness probe on a bare
	// UDP socket adds a multi-second delay the protocol test would cover.
	if network != "udp" || !protocol.IsDefault(proto) {
		if err := socketReady(conn, network); err != nil {
			return fmt.Sprintf("connection failed, %s is not ready for i|o -- %v", p.Description(), err)
		}
	}

	if err := proto.Check(conn, timeout); err != nil {
		return fmt.Sprintf("failed protocol test [%s] at %s -- %v", proto.Name(), p.Description(), err)
	}

	return ""
}

// socketReady verifies the socket can be used for i/o. A stream socket
// is ready once connected; a datagram socket is probed with an empty
// write and a short read so an ICMP port-unreachable can surface.
func socketReady(conn net.Conn, network string) error {
	if network != "udp" {
		return nil
	}

	if _, err := conn.Write([]byte{}); err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return err
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// No answer is fine, the port did not refuse us.
			return nil
		}
		return err
	}
	return nil
}
