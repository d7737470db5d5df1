package monitor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fieldside/gprslink/internal/link/modem"
	"github.com/fieldside/gprslink/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestWriteRowFormatting(t *testing.T) {
	log.Init(true)

	var buf bytes.Buffer
	m := New("/dev/ttyS0", "ppp0", modem.NewSnapshot(18)).WithOutput(&buf)

	m.writeRow(TrafficSample{
		At:      time.Date(2026, 8, 28, 15, 45, 23, 0, time.UTC),
		Uptime:  "00:03:45",
		Addr:    "100.91.2.107",
		RXBytes: 5879,
		TXBytes: 5960,
		PingOK:  true,
		Latency: 45200 * time.Microsecond,
	})

	row := buf.String()
	assert.Contains(t, row, "15:45:23")
	assert.Contains(t, row, "00:03:45")
	assert.Contains(t, row, "18 (Good)")
	assert.Contains(t, row, "100.91.2.107")
	assert.Contains(t, row, "5.74 KB")
	assert.Contains(t, row, "5.82 KB")
	assert.Contains(t, row, "45.2ms")
}

func TestWriteRowDeadLink(t *testing.T) {
	log.Init(true)

	var buf bytes.Buffer
	m := New("/dev/ttyS0", "ppp0", modem.UnknownSnapshot()).WithOutput(&buf)

	m.writeRow(TrafficSample{At: time.Now(), Uptime: "unknown", Addr: "disconnected"})

	row := buf.String()
	assert.Contains(t, row, "disconnected")
	assert.Contains(t, row, "? (Unknown)")
	assert.Contains(t, row, "down")
}

func TestRunEmitsRowsAndRepeatsHeader(t *testing.T) {
	log.Init(true)

	var buf bytes.Buffer
	m := New("/dev/ttyS0", "ppp0", modem.NewSnapshot(20)).
		WithInterval(5 * time.Millisecond).
		WithOutput(&buf)

	// Replace collection, the test host has no ppp0
	m.collect = func() TrafficSample {
		return TrafficSample{At: time.Now(), Uptime: "00:00:01", Addr: "100.91.2.107"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Enough ticks to force a repeated header
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()
	m.Run(ctx)

	out := buf.String()
	assert.GreaterOrEqual(t, strings.Count(out, "100.91.2.107"), headerEvery)
	assert.GreaterOrEqual(t, strings.Count(out, "Signal (init)"), 2)
}

func TestRunEmitsFirstRowImmediately(t *testing.T) {
	log.Init(true)

	var buf bytes.Buffer
	m := New("/dev/ttyS0", "ppp0", modem.NewSnapshot(20)).
		WithInterval(time.Hour).
		WithOutput(&buf)
	m.collect = func() TrafficSample {
		return TrafficSample{At: time.Now(), Uptime: "00:00:01", Addr: "100.91.2.107"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	// One row before the first tick ever fires
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "100.91.2.107"))
	assert.Equal(t, 1, strings.Count(out, "Signal (init)"))
}
