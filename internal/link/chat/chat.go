// Package chat renders the expect/send script that drives the modem
// through the dial-up handshake before pppd takes over framing.
package chat

import (
	"fmt"
	"os"
)

// Script renders the chat script for the given access point name. The
// output is deterministic: abort triggers for every dial failure the
// modem can report, a liveness probe, echo-off, the PDP context
// definition and the dial command with an extended connect timeout.
//
// The APN is inserted verbatim into the quoted CGDCONT field. Operators
// do not use quotes in APNs and chat has no escaping mechanism, so a
// malformed APN simply fails the dial.
func Script(apn string) string {
	return fmt.Sprintf(`TIMEOUT 10
ABORT 'BUSY'
ABORT 'NO CARRIER'
ABORT 'ERROR'
ABORT 'NO DIALTONE'
'' AT
OK ATZ
OK ATE0
OK 'AT+CGDCONT=1,"IP","%s"'
OK ATD*99#
TIMEOUT 30
CONNECT ''
`, apn)
}

// Write renders the script into a fresh temporary file and returns its
// path. Deletion is owned by the link session consuming the script.
func Write(apn string) (string, error) {
	f, err := os.CreateTemp("", "gprs-chat-*")
	if err != nil {
		return "", fmt.Errorf("creating chat script: %w", err)
	}

	if _, err := f.WriteString(Script(apn)); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing chat script: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing chat script: %w", err)
	}

	return f.Name(), nil
}
