package ppp

import "strings"

// Event is the link-state meaning of a single pppd output line.
type Event int

const (
	// EventNone means the line carries no link-state information.
	// Unmatched output is not an error, pppd is chatty.
	EventNone Event = iota

	// EventLinkUp is emitted when pppd reports the interface connect.
	EventLinkUp

	// EventIPAssigned is emitted when either the local or the remote
	// IP address has been negotiated, the wait ends successfully.
	EventIPAssigned

	// EventFailure is emitted for LCP timeouts/termination and
	// connect-script failures, the wait ends immediately.
	EventFailure
)

// pppd prints "local  IP address" with two spaces, keep it verbatim.
var failureMarkers = []string{
	"LCP: timeout",
	"LCP terminated",
	"Connect script failed",
}

// Classify maps one line of pppd output onto a link-state event.
func Classify(line string) Event {
	if strings.Contains(line, "Connect: ppp") {
		return EventLinkUp
	}

	if strings.Contains(line, "local  IP address") || strings.Contains(line, "remote IP address") {
		return EventIPAssigned
	}

	for _, marker := range failureMarkers {
		if strings.Contains(line, marker) {
			return EventFailure
		}
	}

	return EventNone
}
