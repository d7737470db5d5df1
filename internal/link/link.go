// Package link ties the bring-up, negotiation and monitoring stages
// into one connection supervisor. It enforces the single-owner rule for
// the serial device: the AT channel and the pppd process never hold it
// at the same time.
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldside/gprslink/internal/link/atchan"
	"github.com/fieldside/gprslink/internal/link/config"
	"github.com/fieldside/gprslink/internal/link/modem"
	"github.com/fieldside/gprslink/internal/link/monitor"
	"github.com/fieldside/gprslink/internal/link/ppp"
	"github.com/fieldside/gprslink/pkg/log"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Supervisor owns the whole connection chain for one device. There are
// no ambient globals: the modem session, the signal snapshot and the
// link session all live here.
type Supervisor struct {
	cfg *config.Config

	// pppd's own retry budget. 0 lets pppd redial forever, which is
	// what the persistent variant relies on.
	maxFail int

	mu       sync.Mutex
	session  *ppp.Supervisor
	snapshot modem.Snapshot
}

func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{cfg: cfg, maxFail: cfg.MaxFail}
}

// Signal returns the snapshot captured during the last bring-up.
func (s *Supervisor) Signal() modem.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Connect drives the device from AT mode to an established IP link:
// bring-up over the AT channel (which closes the channel, freeing the
// device), then pppd negotiation. On any stage failure everything is
// cleaned up before the error is returned.
func (s *Supervisor) Connect(ctx context.Context) error {
	attempt := uuid.NewString()
	log.Info("starting connection attempt",
		zap.String("attempt", attempt),
		zap.String("device", s.cfg.Device),
		zap.String("apn", s.cfg.APN))

	channel, err := atchan.Open(s.cfg.Device, s.cfg.BaudRate)
	if err != nil {
		return fmt.Errorf("modem session: %w", err)
	}

	snapshot, err := modem.NewBringUp(channel).
		WithRegistrationTimeout(s.cfg.RegistrationTimeout.Value()).
		Run(ctx)
	if err != nil {
		return fmt.Errorf("bring-up: %w", err)
	}

	s.mu.Lock()
	s.snapshot = snapshot
	session := ppp.NewSupervisor(s.cfg.Device, s.cfg.BaudRate, s.cfg.APN).
		WithNegotiationTimeout(s.cfg.NegotiationTimeout.Value()).
		WithPersistPolicy(s.maxFail, s.cfg.Holdoff.Value()).
		WithLogFile(s.cfg.PPPLogFile).
		WithDebug(s.cfg.Debug)
	s.session = session
	s.mu.Unlock()

	// The serial device is free now, pppd takes ownership
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("negotiation: %w", err)
	}

	log.Info("connection established", zap.String("attempt", attempt))
	return nil
}

// Monitor runs the health loop until the context is cancelled. Only
// meaningful after a successful Connect.
func (s *Supervisor) Monitor(ctx context.Context) {
	s.mu.Lock()
	session := s.session
	snapshot := s.snapshot
	s.mu.Unlock()

	if session == nil {
		log.Warn("monitor requested without an active link session")
		return
	}

	monitor.New(s.cfg.Device, session.Interface(), snapshot).
		WithInterval(s.cfg.MonitorInterval.Value()).
		Run(ctx)
}

// Run is the persistent variant: connect, monitor, and restart the
// chain from the top after a holdoff whenever a stage fails. It returns
// once the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	// The monitor has no exit condition besides cancellation, so a
	// dropped link must be recovered inside pppd itself. maxfail 0
	// keeps it redialing forever.
	s.maxFail = 0

	for {
		err := s.Connect(ctx)
		if err == nil {
			s.Monitor(ctx)
			s.Shutdown()
			return nil
		}

		s.Shutdown()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Error("connection attempt failed, restarting chain",
			zap.Error(err),
			zap.Duration("holdoff", s.cfg.Holdoff.Value()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Holdoff.Value()):
		}
	}
}

// Shutdown funnels every exit path through the one teardown
// implementation. Safe to call at any point, any number of times.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session != nil {
		session.Teardown()
	}
}
