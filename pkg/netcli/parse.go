package netcli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LinkStats is a point-in-time read of an interface's assigned address
// and cumulative traffic counters.
type LinkStats struct {
	Addr    string
	RXBytes uint64
	TXBytes uint64
}

var (
	bytesRe   = regexp.MustCompile(`bytes[:\s]+(\d+)`)
	latencyRe = regexp.MustCompile(`time=([\d.]+)\s*ms`)
)

// ParseLinkStats extracts the inet address and RX/TX byte counters from
// ifconfig output. Both the net-tools and the BusyBox output formats are
// handled ("RX packets 123  bytes 456" and "RX bytes:456 ...").
func ParseLinkStats(output string) (LinkStats, error) {
	stats := LinkStats{}
	found := false

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "inet ") || strings.HasPrefix(trimmed, "inet addr:") {
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				stats.Addr = strings.TrimPrefix(fields[1], "addr:")
				found = true
			}
		}

		// Legacy net-tools puts both counters on one line, scope the
		// match to the respective half.
		rxPos := strings.Index(line, "RX ")
		txPos := strings.Index(line, "TX ")

		if rxPos != -1 && (strings.Contains(line, "RX packets") || strings.Contains(line, "RX bytes")) {
			segment := line[rxPos:]
			if txPos > rxPos {
				segment = line[rxPos:txPos]
			}
			if m := bytesRe.FindStringSubmatch(segment); m != nil {
				stats.RXBytes, _ = strconv.ParseUint(m[1], 10, 64)
			}
		}

		if txPos != -1 && (strings.Contains(line, "TX packets") || strings.Contains(line, "TX bytes")) {
			if m := bytesRe.FindStringSubmatch(line[txPos:]); m != nil {
				stats.TXBytes, _ = strconv.ParseUint(m[1], 10, 64)
			}
		}
	}

	if !found {
		return stats, fmt.Errorf("no inet address in ifconfig output")
	}

	return stats, nil
}

// ReadLinkStats runs ifconfig and parses its output.
func ReadLinkStats(iface string) (LinkStats, error) {
	out, err := InterfaceStatus(iface)
	if err != nil {
		return LinkStats{}, err
	}
	return ParseLinkStats(out)
}

// ParsePingLatency pulls the round-trip time out of ping output.
func ParsePingLatency(output string) (time.Duration, bool) {
	m := latencyRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}

	ms, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(ms * float64(time.Millisecond)), true
}

// ParseProcessUptime scans "ps -eo pid,etime,cmd" output for the first
// process whose command line contains every fragment and returns its
// elapsed time column.
func ParseProcessUptime(output string, fragments ...string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		matched := true
		for _, fragment := range fragments {
			if !strings.Contains(line, fragment) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return fields[1], nil
		}
	}

	return "", fmt.Errorf("no process matching %v", fragments)
}

// FormatBytes renders a byte counter in human readable form.
func FormatBytes(n uint64) string {
	value := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.2f TB", value)
}
