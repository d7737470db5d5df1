package modem

import (
	"fmt"
	"strconv"
	"strings"
)

// Registration is the modem's association state with the cellular
// network's signaling channel, derived from a +CREG query.
type Registration int

const (
	RegUnknown Registration = iota
	RegUnregistered
	RegRegistered
	RegSearching
	RegDenied
	RegRoaming
)

func (r Registration) String() string {
	switch r {
	case RegUnregistered:
		return "unregistered"
	case RegRegistered:
		return "registered (home)"
	case RegSearching:
		return "searching"
	case RegDenied:
		return "denied"
	case RegRoaming:
		return "registered (roaming)"
	default:
		return "unknown"
	}
}

// Registered reports whether the modem may proceed to a packet session.
func (r Registration) Registered() bool {
	return r == RegRegistered || r == RegRoaming
}

// AttachState is the modem's packet-data (GPRS) context state derived
// from a +CGATT query. An unparseable reply maps to AttachPending, the
// attach-confirm loop just keeps polling.
type AttachState int

const (
	AttachDetached AttachState = iota
	AttachPending
	AttachAttached
)

func (a AttachState) String() string {
	switch a {
	case AttachDetached:
		return "detached"
	case AttachAttached:
		return "attached"
	default:
		return "pending"
	}
}

// ParseSignalQuality extracts the RSSI field from a +CSQ reply, for
// example "+CSQ: 18,0\r\n\r\nOK".
func ParseSignalQuality(response string) (int, error) {
	_, after, found := strings.Cut(response, "+CSQ:")
	if !found {
		return 0, fmt.Errorf("no +CSQ field in %q", response)
	}

	field, _, _ := strings.Cut(after, ",")
	rssi, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, fmt.Errorf("malformed rssi in %q: %w", response, err)
	}

	return rssi, nil
}

// ParseRegistration derives the registration state from a +CREG reply.
// Unmatched output is RegUnknown, the caller treats it as "no event".
func ParseRegistration(response string) Registration {
	switch {
	case strings.Contains(response, "+CREG: 0,1"):
		return RegRegistered
	case strings.Contains(response, "+CREG: 0,5"):
		return RegRoaming
	case strings.Contains(response, "+CREG: 0,2"):
		return RegSearching
	case strings.Contains(response, "+CREG: 0,3"):
		return RegDenied
	case strings.Contains(response, "+CREG: 0,0"):
		return RegUnregistered
	default:
		return RegUnknown
	}
}

// ParseAttach derives the packet attach state from a +CGATT reply.
func ParseAttach(response string) AttachState {
	switch {
	case strings.Contains(response, "+CGATT: 1"):
		return AttachAttached
	case strings.Contains(response, "+CGATT: 0"):
		return AttachDetached
	default:
		return AttachPending
	}
}

// ParsePINStatus extracts the SIM state from a +CPIN reply, for example
// "READY" or "SIM PIN".
func ParsePINStatus(response string) (string, bool) {
	_, after, found := strings.Cut(response, "+CPIN:")
	if !found {
		return "", false
	}

	status, _, _ := strings.Cut(after, "\r")
	status = strings.TrimSpace(status)
	if status == "" {
		return "", false
	}

	return status, true
}

// ParseBattery extracts the charge percentage and supply voltage in
// millivolts from a +CBC reply, "+CBC: <charging>,<percent>,<mV>".
func ParseBattery(response string) (percent int, millivolts int, err error) {
	_, after, found := strings.Cut(response, "+CBC:")
	if !found {
		return 0, 0, fmt.Errorf("no +CBC field in %q", response)
	}

	line, _, _ := strings.Cut(after, "\r")
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("malformed battery reply %q", response)
	}

	percent, err = strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed charge level in %q: %w", response, err)
	}

	millivolts, err = strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed voltage in %q: %w", response, err)
	}

	return percent, millivolts, nil
}

// ParseOperator extracts the operator name from a +COPS reply, which
// carries it as the first quoted field.
func ParseOperator(response string) (string, bool) {
	if !strings.Contains(response, "+COPS:") {
		return "", false
	}

	parts := strings.Split(response, "\"")
	if len(parts) < 2 {
		return "", false
	}

	return parts[1], true
}
