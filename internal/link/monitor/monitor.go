// Package monitor implements the periodic health loop for an
// established PPP link: interface state, traffic counters and round-trip
// latency, combined with the signal snapshot captured during bring-up.
package monitor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fieldside/gprslink/internal/link/modem"
	"github.com/fieldside/gprslink/pkg/log"
	"github.com/fieldside/gprslink/pkg/netcli"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 30 * time.Second

	// Rows between repeated table headers.
	headerEvery = 20

	probeTarget = "8.8.8.8"
	probeWait   = 3 * time.Second
)

// TrafficSample is one point-in-time reading of the link. Purely
// derived, recomputed every tick, never persisted.
type TrafficSample struct {
	At      time.Time
	Uptime  string
	Addr    string
	RXBytes uint64
	TXBytes uint64
	PingOK  bool
	Latency time.Duration
}

// Monitor renders one status row per tick until its context is
// cancelled. The radio cannot be queried while pppd owns the serial
// device, so the signal column replays the bring-up snapshot.
type Monitor struct {
	device   string
	iface    string
	target   string
	interval time.Duration
	snapshot modem.Snapshot
	out      io.Writer

	// sample collection, replaced by tests
	collect func() TrafficSample
}

func New(device, iface string, snapshot modem.Snapshot) *Monitor {
	m := &Monitor{
		device:   device,
		iface:    iface,
		target:   probeTarget,
		interval: DefaultInterval,
		snapshot: snapshot,
		out:      os.Stdout,
	}
	m.collect = m.sample
	return m
}

// WithInterval sets the monitor period.
func (m *Monitor) WithInterval(d time.Duration) *Monitor {
	m.interval = d
	return m
}

// WithOutput redirects the status table.
func (m *Monitor) WithOutput(w io.Writer) *Monitor {
	m.out = w
	return m
}

// Run is the long-lived supervisory loop. It has no exit condition
// other than context cancellation.
func (m *Monitor) Run(ctx context.Context) {
	log.Info("link monitor started",
		zap.Duration("interval", m.interval),
		zap.String("interface", m.iface),
		zap.String("signal", m.snapshot.String()))

	// First row right away, the operator should not stare at an empty
	// table for a full interval.
	m.writeHeader()
	m.writeRow(m.collect())
	rows := 1

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("link monitor stopped")
			return

		case <-ticker.C:
			m.writeRow(m.collect())

			rows++
			if rows >= headerEvery {
				m.writeHeader()
				rows = 0
			}
		}
	}
}

// sample gathers one TrafficSample from the process table, the
// interface counters and a single reachability probe. Every part is
// best-effort, a dead link still produces a row.
func (m *Monitor) sample() TrafficSample {
	s := TrafficSample{At: time.Now(), Uptime: "unknown", Addr: "disconnected"}

	if uptime, err := netcli.ProcessUptime("pppd", m.device); err == nil {
		s.Uptime = uptime
	}

	if stats, err := netcli.ReadLinkStats(m.iface); err == nil {
		s.Addr = stats.Addr
		s.RXBytes = stats.RXBytes
		s.TXBytes = stats.TXBytes
	}

	if latency, ok := netcli.PingLatency(m.iface, m.target, probeWait); ok {
		s.PingOK = true
		s.Latency = latency
	}

	return s
}

func (m *Monitor) writeHeader() {
	rule := sepLine()
	fmt.Fprintf(m.out, "%s\n%-10s | %-12s | %-18s | %-16s | %-12s | %-12s | %s\n%s\n",
		rule, "Time", "Uptime", "Signal (init)", "IP Address", "RX Data", "TX Data", "Ping", rule)
}

func (m *Monitor) writeRow(s TrafficSample) {
	ping := "down"
	if s.PingOK {
		ping = fmt.Sprintf("%.1fms", float64(s.Latency.Microseconds())/1000.0)
	}

	fmt.Fprintf(m.out, "%-10s | %-12s | %-18s | %-16s | %-12s | %-12s | %s\n",
		s.At.Format("15:04:05"),
		s.Uptime,
		m.snapshot.String(),
		s.Addr,
		netcli.FormatBytes(s.RXBytes),
		netcli.FormatBytes(s.TXBytes),
		ping)
}

func sepLine() string {
	return strings.Repeat("=", 110)
}
