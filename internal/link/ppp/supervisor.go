// Package ppp spawns and supervises the external pppd negotiation
// process: it consumes pppd's output concurrently, classifies lines into
// link-state events, enforces an overall negotiation deadline and tears
// the process down on failure.
package ppp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fieldside/gprslink/internal/link/chat"
	"github.com/fieldside/gprslink/pkg/log"
	"github.com/fieldside/gprslink/pkg/netcli"
	"go.uber.org/zap"
)

// State is the lifecycle phase of a link session.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateEstablished
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

const (
	DefaultNegotiationTimeout = 90 * time.Second
	DefaultGraceDelay         = 8 * time.Second

	// How long a single queue poll may take before process liveness
	// and the overall deadline are checked again.
	queuePollTimeout = 500 * time.Millisecond

	// Grace between SIGTERM and SIGKILL during teardown.
	terminationGrace = 2 * time.Second

	lineQueueDepth = 64

	pingTarget = "8.8.8.8"
	dnsTarget  = "google.com"
)

var (
	ErrNegotiationFailed  = errors.New("ppp negotiation failed")
	ErrNegotiationTimeout = errors.New("ppp negotiation timed out")
	ErrProcessExited      = errors.New("pppd exited before the link came up")
)

// Supervisor owns one link session: the spawned pppd process, its chat
// script temp file and the background output reader. Exactly one
// Supervisor may exist per serial device.
type Supervisor struct {
	device string
	baud   int
	apn    string
	iface  string

	negotiationTimeout time.Duration
	graceDelay         time.Duration
	maxFail            int
	holdoffSec         int
	logFile            string
	debug              bool

	cmd      *exec.Cmd
	chatPath string
	pipeR    *os.File

	lines  chan string
	stop   chan struct{}
	exited chan struct{}

	readerWG sync.WaitGroup
	teardown sync.Once

	mu    sync.Mutex
	state State

	// liveness probe, replaced by tests
	alive func() bool
}

// NewSupervisor prepares a supervisor for one negotiation attempt.
func NewSupervisor(device string, baud int, apn string) *Supervisor {
	s := &Supervisor{
		device:             device,
		baud:               baud,
		apn:                apn,
		iface:              "ppp0",
		negotiationTimeout: DefaultNegotiationTimeout,
		graceDelay:         DefaultGraceDelay,
		maxFail:            3,
		holdoffSec:         10,
		lines:              make(chan string, lineQueueDepth),
		stop:               make(chan struct{}),
		exited:             make(chan struct{}),
		state:              StateIdle,
	}
	s.alive = s.processAlive
	return s
}

// WithNegotiationTimeout bounds the overall wait for link establishment.
func (s *Supervisor) WithNegotiationTimeout(d time.Duration) *Supervisor {
	s.negotiationTimeout = d
	return s
}

// WithGraceDelay sets the settle time after negotiation before the link
// is considered usable.
func (s *Supervisor) WithGraceDelay(d time.Duration) *Supervisor {
	s.graceDelay = d
	return s
}

// WithPersistPolicy forwards pppd's own retry policy. maxFail 0 means
// retry forever.
func (s *Supervisor) WithPersistPolicy(maxFail int, holdoff time.Duration) *Supervisor {
	s.maxFail = maxFail
	s.holdoffSec = int(holdoff.Seconds())
	return s
}

// WithLogFile makes pppd append its negotiation log to the given path
// instead of writing debug output to the captured stream.
func (s *Supervisor) WithLogFile(path string) *Supervisor {
	s.logFile = path
	return s
}

// WithDebug requests verbose pppd output on the captured stream.
func (s *Supervisor) WithDebug(debug bool) *Supervisor {
	s.debug = debug
	return s
}

// Interface returns the expected PPP interface name.
func (s *Supervisor) Interface() string {
	return s.iface
}

// ChatScriptPath returns the temp file owned by this session, empty
// after teardown.
func (s *Supervisor) ChatScriptPath() string {
	return s.chatPath
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start spawns pppd and blocks until the link is established or the
// negotiation fails. On failure the session is fully torn down before
// returning; on success the caller owns the eventual Teardown call.
func (s *Supervisor) Start(ctx context.Context) error {
	s.setState(StateNegotiating)

	// Advisory pre-clean: a leftover pppd or a stale lock file from a
	// crashed run would make the dial fail.
	s.cleanStaleState()

	path, err := chat.Write(s.apn)
	if err != nil {
		s.setState(StateFailed)
		return err
	}
	s.chatPath = path
	log.Debug("chat script created", zap.String("path", path))

	if err := s.spawn(); err != nil {
		s.removeChatScript()
		s.setState(StateFailed)
		return err
	}

	if err := s.waitForLink(ctx); err != nil {
		s.setState(StateFailed)
		s.Teardown()
		return err
	}

	// Let routes, DNS and the interface settle before declaring the
	// link usable.
	log.Info("waiting for routes to be configured", zap.Duration("delay", s.graceDelay))
	select {
	case <-ctx.Done():
		s.Teardown()
		return ctx.Err()
	case <-time.After(s.graceDelay):
	}

	s.setState(StateEstablished)
	s.reportDiagnostics()
	return nil
}

func (s *Supervisor) buildArgs() []string {
	args := []string{
		s.device, strconv.Itoa(s.baud),
		"connect", fmt.Sprintf("chat -v -f %s", s.chatPath),
		"noauth",
		"defaultroute",
		"replacedefaultroute",
		"usepeerdns",
		"persist",
		"maxfail", strconv.Itoa(s.maxFail),
		"holdoff", strconv.Itoa(s.holdoffSec),
		"nocrtscts",
		"local",
		"nodetach",
	}

	if s.debug {
		args = append(args, "debug")
	}
	if s.logFile != "" {
		args = append(args, "logfile", s.logFile)
	}

	return args
}

func (s *Supervisor) spawn() error {
	cmd := exec.Command("pppd", s.buildArgs()...)

	// A plain pipe instead of StdoutPipe: Wait must never race the
	// reader for the read end, EOF arrives naturally when pppd exits.
	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	log.Info("starting pppd", zap.String("device", s.device), zap.Int("baud", s.baud))
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return fmt.Errorf("starting pppd: %w", err)
	}

	// The child holds the write end now
	_ = pw.Close()

	s.cmd = cmd
	s.pipeR = pr

	go func() {
		_ = cmd.Wait()
		close(s.exited)
	}()

	s.readerWG.Add(1)
	go s.readOutput()

	return nil
}

// readOutput decodes pppd output line by line and pushes it onto the
// queue until the stream closes or the stop flag is set. The reader must
// never outlive the pipe it reads from, teardown joins it.
func (s *Supervisor) readOutput() {
	defer s.readerWG.Done()

	scanner := bufio.NewScanner(s.pipeR)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToValidUTF8(scanner.Text(), "�"))
		if line == "" {
			continue
		}

		select {
		case s.lines <- line:
		case <-s.stop:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug("pppd output stream closed", zap.Error(err))
	}
}

// waitForLink polls the line queue inside the negotiation deadline.
// Success requires observing both the link-up and an IP assignment
// event; an explicit failure line or a dead process ends the wait
// immediately.
func (s *Supervisor) waitForLink(ctx context.Context) error {
	deadline := time.Now().Add(s.negotiationTimeout)
	linkUp := false

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line := <-s.lines:
			log.Debug("pppd", zap.String("line", line))

			switch Classify(line) {
			case EventLinkUp:
				linkUp = true
				log.Info("link established, negotiating ip", zap.String("line", line))

			case EventIPAssigned:
				if linkUp {
					log.Info("ip negotiation successful")
					return nil
				}
				// An address without a connect line means we
				// missed the link-up, treat it as failure.
				return fmt.Errorf("%w: ip assigned without link-up", ErrNegotiationFailed)

			case EventFailure:
				log.Error("negotiation failure reported", zap.String("line", line))
				return fmt.Errorf("%w: %s", ErrNegotiationFailed, line)
			}

		case <-time.After(queuePollTimeout):
			if !s.alive() {
				return ErrProcessExited
			}
		}
	}

	return ErrNegotiationTimeout
}

func (s *Supervisor) processAlive() bool {
	if s.cmd == nil || s.cmd.Process == nil {
		return false
	}

	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Teardown stops the reader, terminates pppd, runs advisory cleanup and
// removes the chat script. Safe to call more than once: the failure path
// and a signal handler may both reach it.
func (s *Supervisor) Teardown() {
	s.teardown.Do(s.teardownOnce)
}

func (s *Supervisor) teardownOnce() {
	log.Info("shutting down ppp session")

	// Stop the reader before the process, it must not hang on a full
	// queue once nobody consumes it.
	close(s.stop)

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)

		select {
		case <-s.exited:
		case <-time.After(terminationGrace):
			log.Warn("pppd ignored SIGTERM, killing", zap.Int("pid", s.cmd.Process.Pid))
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
	}

	s.readerWG.Wait()
	if s.pipeR != nil {
		_ = s.pipeR.Close()
	}

	// Advisory: take down anything pppd left behind
	netcli.PoffAll()
	s.cleanStaleState()

	s.removeChatScript()
	s.setState(StateTerminated)
	log.Info("ppp session closed")
}

// cleanStaleState kills leftover negotiation processes for the device
// and removes a stale uucp lock file. Failures are swallowed, these are
// advisory steps.
func (s *Supervisor) cleanStaleState() {
	netcli.KillAll("pppd")
	time.Sleep(time.Second)

	lock := filepath.Join("/var/lock", "LCK.."+filepath.Base(s.device))
	if err := os.Remove(lock); err != nil && !os.IsNotExist(err) {
		log.Debug("could not remove lock file", zap.String("path", lock), zap.Error(err))
	}
}

func (s *Supervisor) removeChatScript() {
	if s.chatPath == "" {
		return
	}

	if err := os.Remove(s.chatPath); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove chat script", zap.String("path", s.chatPath), zap.Error(err))
	}
	s.chatPath = ""
}

// reportDiagnostics logs interface, routing, resolver state and two
// connectivity probes. Advisory only, a failed probe does not revert an
// established link.
func (s *Supervisor) reportDiagnostics() {
	if out, err := netcli.InterfaceStatus(s.iface); err == nil {
		log.Info("interface status", zap.String("output", out))
	} else {
		log.Warn("interface status unavailable", zap.Error(err))
	}

	if out, err := netcli.RoutingTable(); err == nil {
		log.Info("routing table", zap.String("output", out))
	} else {
		log.Warn("routing table unavailable", zap.Error(err))
	}

	if out, err := netcli.ResolverConfig(); err == nil {
		log.Info("dns servers", zap.String("output", out))
	} else {
		log.Warn("resolver config unavailable", zap.Error(err))
	}

	// Raw-IP probe first, then name resolution on top of it
	if out, err := netcli.Ping(s.iface, pingTarget, 3, 5*time.Second); err == nil && strings.Contains(out, "bytes from") {
		log.Info("internet connectivity verified", zap.String("target", pingTarget))

		if out, err := netcli.Ping(s.iface, dnsTarget, 2, 5*time.Second); err == nil && strings.Contains(out, "bytes from") {
			log.Info("dns resolution working", zap.String("target", dnsTarget))
		} else {
			log.Warn("dns not working, raw ip connectivity only")
		}
	} else {
		log.Warn("no internet connectivity detected yet")
	}
}
