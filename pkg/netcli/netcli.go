// Package netcli wraps the small external utilities used to inspect and
// probe the IP link: interface configuration, routing table, resolver
// configuration, process table and reachability probes.
package netcli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"go.uber.org/zap"
)

// InterfaceStatus returns the raw ifconfig output for an interface.
func InterfaceStatus(iface string) (string, error) {
	out, err := exec.Command("ifconfig", iface).Output()
	if err != nil {
		return "", fmt.Errorf("ifconfig %s: %w", iface, err)
	}
	return string(out), nil
}

// RoutingTable returns the kernel routing table.
func RoutingTable() (string, error) {
	out, err := exec.Command("ip", "route", "show").Output()
	if err != nil {
		return "", fmt.Errorf("ip route show: %w", err)
	}
	return string(out), nil
}

// ResolverConfig returns the system resolver configuration.
func ResolverConfig() (string, error) {
	out, err := os.ReadFile("/etc/resolv.conf")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Ping runs a reachability probe bound to the given interface and
// returns the raw output. The target may be an IP or a hostname, the
// latter doubles as a name-resolution probe.
func Ping(iface, target string, count int, wait time.Duration) (string, error) {
	waitSec := int(wait.Seconds())
	if waitSec < 1 {
		waitSec = 1
	}

	out, err := exec.Command("ping",
		"-I", iface,
		"-c", strconv.Itoa(count),
		"-W", strconv.Itoa(waitSec),
		target).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("ping %s via %s: %w", target, iface, err)
	}
	return string(out), nil
}

// PingLatency runs a single probe and extracts its round-trip time.
func PingLatency(iface, target string, wait time.Duration) (time.Duration, bool) {
	out, err := Ping(iface, target, 1, wait)
	if err != nil {
		return 0, false
	}
	return ParsePingLatency(out)
}

// ProcessUptime looks up the elapsed running time of a process whose
// command line contains all the given fragments, via the process table.
func ProcessUptime(fragments ...string) (string, error) {
	out, err := exec.Command("ps", "-eo", "pid,etime,cmd").Output()
	if err != nil {
		return "", fmt.Errorf("ps: %w", err)
	}
	return ParseProcessUptime(string(out), fragments...)
}

// KillAll sends SIGTERM to every process matching the pattern. Advisory,
// failure only means nothing matched.
func KillAll(pattern string) {
	if err := exec.Command("pkill", "-f", pattern).Run(); err != nil {
		log.Debug("pkill matched nothing", zap.String("pattern", pattern))
	}
}

// PoffAll asks pppd to take down all connections. Advisory.
func PoffAll() {
	if err := exec.Command("poff", "-a").Run(); err != nil {
		log.Debug("poff reported nothing to disconnect")
	}
}
