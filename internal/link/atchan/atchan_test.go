package atchan

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort feeds pre-canned reply chunks and behaves like a serial
// port with a read timeout: an empty script entry yields an idle read.
type scriptedPort struct {
	writes  []string
	chunks  [][]byte
	readErr error
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.writes = append(p.writes, string(b))
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}

	// Idle read, like a serial timeout expiring
	if len(p.chunks) == 0 {
		time.Sleep(10 * time.Millisecond)
		return 0, nil
	}

	chunk := p.chunks[0]
	p.chunks = p.chunks[1:]
	return copy(b, chunk), nil
}

func TestSendCollectsUntilOK(t *testing.T) {
	log.Init(true)

	port := &scriptedPort{chunks: [][]byte{
		[]byte("\r\n+CSQ: 18,0"),
		[]byte("\r\n\r\nOK\r\n"),
	}}

	ch := New(port)
	resp, err := ch.Send("AT+CSQ", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "+CSQ: 18,0\r\n\r\nOK", resp)
	assert.Equal(t, "AT+CSQ\r\n", port.writes[0])
	assert.Equal(t, resp, ch.LastResponse())
}

func TestSendStopsOnError(t *testing.T) {
	log.Init(true)

	port := &scriptedPort{chunks: [][]byte{
		[]byte("\r\nERROR\r\n"),
		[]byte("should never be read"),
	}}

	ch := New(port)
	resp, err := ch.Send("AT+BOGUS", time.Second)
	require.NoError(t, err)

	assert.Contains(t, resp, ReplyError)
	assert.Len(t, port.chunks, 1)
}

func TestSendTimeoutReturnsAccumulated(t *testing.T) {
	log.Init(true)

	port := &scriptedPort{chunks: [][]byte{
		[]byte("+CREG: 0,2"),
	}}

	ch := New(port)
	resp, err := ch.Send("AT+CREG?", 50*time.Millisecond)
	require.NoError(t, err)

	// No final token arrived, whatever accumulated is handed back
	assert.Equal(t, "+CREG: 0,2", resp)
}

func TestSendToleratesBinaryNoise(t *testing.T) {
	log.Init(true)

	port := &scriptedPort{chunks: [][]byte{
		{0xff, 0xfe, 'O', 'K', '\r', '\n'},
	}}

	ch := New(port)
	resp, err := ch.Send("AT", time.Second)
	require.NoError(t, err)

	assert.Contains(t, resp, ReplyOK)
}

func TestSendSurfacesTransportErrors(t *testing.T) {
	log.Init(true)

	port := &scriptedPort{readErr: errors.New("device gone")}

	ch := New(port)
	_, err := ch.Send("AT", time.Second)
	assert.ErrorContains(t, err, "device gone")
}
