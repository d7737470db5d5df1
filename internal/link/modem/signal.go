package modem

import (
	"fmt"
	"time"
)

// SignalLevel is the qualitative bucket for an RSSI reading.
type SignalLevel int

const (
	SignalUnknown SignalLevel = iota
	SignalNone
	SignalPoor
	SignalFair
	SignalGood
	SignalExcellent
)

func (l SignalLevel) String() string {
	switch l {
	case SignalNone:
		return "No Signal"
	case SignalPoor:
		return "Poor"
	case SignalFair:
		return "Fair"
	case SignalGood:
		return "Good"
	case SignalExcellent:
		return "Excellent"
	default:
		return "Unknown"
	}
}

// ClassifySignal buckets an RSSI reading. 99 is the modem's "not
// detectable" marker, negative values mean we never got a reading.
func ClassifySignal(rssi int) SignalLevel {
	switch {
	case rssi < 0:
		return SignalUnknown
	case rssi == 99:
		return SignalNone
	case rssi < 10:
		return SignalPoor
	case rssi < 15:
		return SignalFair
	case rssi < 20:
		return SignalGood
	default:
		return SignalExcellent
	}
}

// Snapshot is the signal quality captured at the end of bring-up. It is
// held immutable for the lifetime of the link: once pppd owns the serial
// device the radio can not be queried again.
type Snapshot struct {
	RSSI       int
	Level      SignalLevel
	CapturedAt time.Time
}

// NewSnapshot classifies and timestamps an RSSI reading.
func NewSnapshot(rssi int) Snapshot {
	return Snapshot{
		RSSI:       rssi,
		Level:      ClassifySignal(rssi),
		CapturedAt: time.Now(),
	}
}

// UnknownSnapshot marks a failed signal query, bring-up proceeds anyway.
func UnknownSnapshot() Snapshot {
	return Snapshot{RSSI: -1, Level: SignalUnknown, CapturedAt: time.Now()}
}

func (s Snapshot) String() string {
	if s.Level == SignalUnknown {
		return "? (Unknown)"
	}
	return fmt.Sprintf("%d (%s)", s.RSSI, s.Level)
}
