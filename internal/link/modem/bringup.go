// Package modem drives a cellular modem from power-on to a state where
// an IP session can be negotiated: reset, echo-off, signal check,
// network registration wait, GPRS attach and operator query.
package modem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"go.uber.org/zap"
)

const (
	cmdReset         = "ATZ"
	cmdEchoOff       = "ATE0"
	cmdSignalQuery   = "AT+CSQ"
	cmdRegQuery      = "AT+CREG?"
	cmdAttachEnable  = "AT+CGATT=1"
	cmdAttachQuery   = "AT+CGATT?"
	cmdOperatorQuery = "AT+COPS?"

	DefaultRegistrationTimeout = 60 * time.Second
	DefaultRegistrationPoll    = 2 * time.Second
	DefaultAttachTimeout       = 30 * time.Second
	DefaultAttachRetries       = 10
	DefaultAttachPoll          = 2 * time.Second
	DefaultCommandTimeout      = 5 * time.Second
)

var (
	ErrRegistrationTimeout = errors.New("network registration timed out")
	ErrAttachTimeout       = errors.New("gprs attach not confirmed")
)

// Commander is the transactional AT channel the bring-up drives.
// Satisfied by atchan.Channel.
type Commander interface {
	Send(command string, timeout time.Duration) (string, error)
	Close() error
}

// BringUp runs the bring-up sequence over a Commander it takes exclusive
// ownership of. The channel is closed on every exit path: on success the
// serial device must be free before pppd can claim it, on failure the
// caller must not proceed anyway.
type BringUp struct {
	cmd Commander

	registrationTimeout time.Duration
	registrationPoll    time.Duration
	attachTimeout       time.Duration
	attachRetries       int
	attachPoll          time.Duration
	commandTimeout      time.Duration
}

func NewBringUp(cmd Commander) *BringUp {
	return &BringUp{
		cmd:                 cmd,
		registrationTimeout: DefaultRegistrationTimeout,
		registrationPoll:    DefaultRegistrationPoll,
		attachTimeout:       DefaultAttachTimeout,
		attachRetries:       DefaultAttachRetries,
		attachPoll:          DefaultAttachPoll,
		commandTimeout:      DefaultCommandTimeout,
	}
}

// WithRegistrationTimeout bounds the overall registration wait.
func (b *BringUp) WithRegistrationTimeout(d time.Duration) *BringUp {
	b.registrationTimeout = d
	return b
}

// WithRegistrationPoll sets the interval between registration queries.
func (b *BringUp) WithRegistrationPoll(d time.Duration) *BringUp {
	b.registrationPoll = d
	return b
}

// WithAttachRetries sets the bounded attach-confirm retry count.
func (b *BringUp) WithAttachRetries(n int) *BringUp {
	b.attachRetries = n
	return b
}

// WithAttachPoll sets the interval between attach-confirm queries.
func (b *BringUp) WithAttachPoll(d time.Duration) *BringUp {
	b.attachPoll = d
	return b
}

// WithCommandTimeout sets the per-command response timeout.
func (b *BringUp) WithCommandTimeout(d time.Duration) *BringUp {
	b.commandTimeout = d
	return b
}

// Run executes the bring-up sequence and returns the signal snapshot
// captured along the way. Registration and attach timeouts are fatal,
// the signal check and operator query are advisory.
func (b *BringUp) Run(ctx context.Context) (Snapshot, error) {
	defer func() {
		_ = b.cmd.Close()
	}()

	log.Info("initializing modem")

	// Reset, the reply content is irrelevant
	if _, err := b.cmd.Send(cmdReset, b.commandTimeout); err != nil {
		return UnknownSnapshot(), fmt.Errorf("modem reset: %w", err)
	}

	// Disable local echo so later replies are unambiguous
	if _, err := b.cmd.Send(cmdEchoOff, b.commandTimeout); err != nil {
		return UnknownSnapshot(), fmt.Errorf("disabling echo: %w", err)
	}

	snapshot := b.checkSignal()

	if err := b.waitForRegistration(ctx); err != nil {
		return snapshot, err
	}

	// Request packet attach with an extended timeout, the modem may
	// take a while and not confirm immediately.
	if _, err := b.cmd.Send(cmdAttachEnable, b.attachTimeout); err != nil {
		return snapshot, fmt.Errorf("requesting gprs attach: %w", err)
	}

	if err := b.confirmAttach(ctx); err != nil {
		return snapshot, err
	}

	b.queryOperator()

	log.Info("modem ready", zap.String("signal", snapshot.String()))
	return snapshot, nil
}

// checkSignal queries signal quality once. Never fatal, a modem with an
// unparseable +CSQ reply can still bring a link up.
func (b *BringUp) checkSignal() Snapshot {
	response, err := b.cmd.Send(cmdSignalQuery, b.commandTimeout)
	if err != nil {
		log.Warn("signal query failed", zap.Error(err))
		return UnknownSnapshot()
	}

	rssi, err := ParseSignalQuality(response)
	if err != nil {
		log.Warn("could not parse signal quality", zap.Error(err))
		return UnknownSnapshot()
	}

	snapshot := NewSnapshot(rssi)
	log.Info("signal quality", zap.Int("rssi", rssi), zap.String("level", snapshot.Level.String()))
	return snapshot
}

func (b *BringUp) waitForRegistration(ctx context.Context) error {
	log.Info("waiting for network registration", zap.Duration("timeout", b.registrationTimeout))
	deadline := time.Now().Add(b.registrationTimeout)

	for {
		response, err := b.cmd.Send(cmdRegQuery, b.commandTimeout)
		if err != nil {
			return fmt.Errorf("registration query: %w", err)
		}

		state := ParseRegistration(response)
		if state.Registered() {
			log.Info("registered on network", zap.String("state", state.String()))
			return nil
		}

		log.Debug("not registered yet", zap.String("state", state.String()))

		if time.Now().After(deadline) {
			return ErrRegistrationTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.registrationPoll):
		}
	}
}

func (b *BringUp) confirmAttach(ctx context.Context) error {
	for attempt := 0; attempt < b.attachRetries; attempt++ {
		response, err := b.cmd.Send(cmdAttachQuery, b.commandTimeout)
		if err != nil {
			return fmt.Errorf("attach query: %w", err)
		}

		if ParseAttach(response) == AttachAttached {
			log.Info("attached to gprs")
			return nil
		}

		log.Debug("attach pending", zap.Int("attempt", attempt+1), zap.Int("retries", b.attachRetries))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.attachPoll):
		}
	}

	return ErrAttachTimeout
}

// queryOperator is purely informational and never fatal.
func (b *BringUp) queryOperator() {
	response, err := b.cmd.Send(cmdOperatorQuery, b.commandTimeout)
	if err != nil {
		log.Warn("operator query failed", zap.Error(err))
		return
	}

	if operator, ok := ParseOperator(response); ok {
		log.Info("network operator", zap.String("operator", operator))
	}
}
