package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySignal(t *testing.T) {
	cases := []struct {
		rssi int
		want SignalLevel
	}{
		{0, SignalPoor},
		{5, SignalPoor},
		{9, SignalPoor},
		{10, SignalFair},
		{14, SignalFair},
		{15, SignalGood},
		{19, SignalGood},
		{20, SignalExcellent},
		{31, SignalExcellent},
		{99, SignalNone},
		{-1, SignalUnknown},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifySignal(tc.rssi), "rssi %d", tc.rssi)
	}
}

func TestSnapshotString(t *testing.T) {
	assert.Equal(t, "18 (Good)", NewSnapshot(18).String())
	assert.Equal(t, "99 (No Signal)", NewSnapshot(99).String())
	assert.Equal(t, "? (Unknown)", UnknownSnapshot().String())
}

func TestParseSignalQuality(t *testing.T) {
	rssi, err := ParseSignalQuality("+CSQ: 18,0\r\n\r\nOK")
	assert.NoError(t, err)
	assert.Equal(t, 18, rssi)

	rssi, err = ParseSignalQuality("+CSQ: 99,99\r\nOK")
	assert.NoError(t, err)
	assert.Equal(t, 99, rssi)

	_, err = ParseSignalQuality("OK")
	assert.Error(t, err)

	_, err = ParseSignalQuality("+CSQ: garbage,0")
	assert.Error(t, err)
}

func TestParseRegistration(t *testing.T) {
	assert.Equal(t, RegRegistered, ParseRegistration("+CREG: 0,1\r\nOK"))
	assert.Equal(t, RegRoaming, ParseRegistration("+CREG: 0,5\r\nOK"))
	assert.Equal(t, RegSearching, ParseRegistration("+CREG: 0,2\r\nOK"))
	assert.Equal(t, RegDenied, ParseRegistration("+CREG: 0,3\r\nOK"))
	assert.Equal(t, RegUnregistered, ParseRegistration("+CREG: 0,0\r\nOK"))
	assert.Equal(t, RegUnknown, ParseRegistration("ERROR"))

	assert.True(t, RegRegistered.Registered())
	assert.True(t, RegRoaming.Registered())
	assert.False(t, RegSearching.Registered())
}

func TestParseAttach(t *testing.T) {
	assert.Equal(t, AttachAttached, ParseAttach("+CGATT: 1\r\nOK"))
	assert.Equal(t, AttachDetached, ParseAttach("+CGATT: 0\r\nOK"))
	assert.Equal(t, AttachPending, ParseAttach(""))
}

func TestParseOperator(t *testing.T) {
	op, ok := ParseOperator("+COPS: 0,0,\"Airtel\"\r\nOK")
	assert.True(t, ok)
	assert.Equal(t, "Airtel", op)

	_, ok = ParseOperator("OK")
	assert.False(t, ok)

	_, ok = ParseOperator("+COPS: 0")
	assert.False(t, ok)
}

func TestParsePINStatus(t *testing.T) {
	status, ok := ParsePINStatus("+CPIN: READY\r\n\r\nOK")
	assert.True(t, ok)
	assert.Equal(t, "READY", status)

	status, ok = ParsePINStatus("+CPIN: SIM PIN\r\nOK")
	assert.True(t, ok)
	assert.Equal(t, "SIM PIN", status)

	_, ok = ParsePINStatus("ERROR")
	assert.False(t, ok)
}

func TestParseBattery(t *testing.T) {
	percent, mv, err := ParseBattery("+CBC: 0,80,3900\r\n\r\nOK")
	assert.NoError(t, err)
	assert.Equal(t, 80, percent)
	assert.Equal(t, 3900, mv)

	_, _, err = ParseBattery("OK")
	assert.Error(t, err)

	_, _, err = ParseBattery("+CBC: 0,80")
	assert.Error(t, err)
}
