// Package atchan implements a transactional AT command channel over a
// serial byte stream.
//
// A Channel writes one command at a time and accumulates the reply until
// the modem emits a final result token (OK or ERROR) or the per-command
// timeout elapses. Retry policy belongs to the caller; the channel never
// retries on its own. A Channel is not safe for concurrent use, the
// serial device has exactly one owner at any time.
package atchan

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	ReplyOK    = "OK"
	ReplyError = "ERROR"

	DefaultCommandTimeout = 5 * time.Second

	// Delay between writing a command and the first read attempt,
	// the modem needs a moment before it starts answering.
	settleDelay = 200 * time.Millisecond

	// How long a single blocking read may take before the deadline
	// is re-checked.
	readTimeout = 100 * time.Millisecond

	readChunkSize = 256
)

type Channel struct {
	rw     io.ReadWriter
	device string

	// raw text of the most recent transaction, kept for diagnostics
	lastResponse string
}

// Open opens the serial device and wraps it in a Channel.
func Open(device string, baudRate int) (*Channel, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		log.Error("failed to open serial device", zap.String("device", device), zap.Error(err))
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}

	// Short read timeout so Send can poll its own deadline
	_ = port.SetReadTimeout(readTimeout)

	return &Channel{rw: port, device: device}, nil
}

// New wraps an existing byte stream, used by tests and alternative
// transports. The stream's Read should return after a short timeout
// rather than blocking indefinitely.
func New(rw io.ReadWriter) *Channel {
	return &Channel{rw: rw, device: "stream"}
}

// Send writes the command terminated by CRLF and collects the response
// until OK/ERROR appears or the timeout elapses. The accumulated text is
// returned trimmed either way; an absent result token is not an error at
// this layer, the caller decides what a silent step means.
func (c *Channel) Send(command string, timeout time.Duration) (string, error) {
	if _, err := c.rw.Write([]byte(command + "\r\n")); err != nil {
		log.Error("serial write failed", zap.String("command", command), zap.Error(err))
		return "", fmt.Errorf("writing %q: %w", command, err)
	}

	time.Sleep(settleDelay)
	return c.collect(command, timeout)
}

// SendRaw writes the bytes verbatim (no CRLF) and collects the response
// like Send. Used for payloads such as a Ctrl-Z terminated SMS body.
func (c *Channel) SendRaw(data []byte, timeout time.Duration) (string, error) {
	if _, err := c.rw.Write(data); err != nil {
		return "", fmt.Errorf("writing raw payload: %w", err)
	}

	time.Sleep(settleDelay)
	return c.collect("raw", timeout)
}

func (c *Channel) collect(command string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, readChunkSize)
	var response strings.Builder

	for time.Now().Before(deadline) {
		n, err := c.rw.Read(buf)
		if err != nil {
			log.Error("serial read failed", zap.String("command", command), zap.Error(err))
			return "", fmt.Errorf("reading reply to %q: %w", command, err)
		}

		if n > 0 {
			// The modem occasionally emits garbage on power state
			// changes, replace anything that is not valid UTF-8.
			response.WriteString(strings.ToValidUTF8(string(buf[:n]), "�"))

			accumulated := response.String()
			if strings.Contains(accumulated, ReplyOK) || strings.Contains(accumulated, ReplyError) {
				break
			}
		}
	}

	c.lastResponse = strings.TrimSpace(response.String())
	if c.lastResponse == "" {
		log.Debug("command yielded no response within timeout", zap.String("command", command))
	}

	return c.lastResponse, nil
}

// LastResponse returns the raw text of the most recent transaction.
func (c *Channel) LastResponse() string {
	return c.lastResponse
}

// Close releases the serial device so another owner may claim it.
func (c *Channel) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
