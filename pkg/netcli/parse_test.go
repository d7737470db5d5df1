package netcli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ifconfigModern = `ppp0: flags=4305<UP,POINTOPOINT,RUNNING,NOARP,MULTICAST>  mtu 1500
        inet 100.91.2.107  netmask 255.255.255.255  destination 10.64.64.64
        RX packets 123  bytes 5879 (5.7 KiB)
        RX errors 0  dropped 0  overruns 0  frame 0
        TX packets 140  bytes 5960 (5.8 KiB)
        TX errors 0  dropped 0 overruns 0  carrier 0  collisions 0
`

const ifconfigLegacy = `ppp0      Link encap:Point-to-Point Protocol
          inet addr:100.91.2.107  P-t-P:10.64.64.64  Mask:255.255.255.255
          UP POINTOPOINT RUNNING NOARP MULTICAST  MTU:1500  Metric:1
          RX packets:123 errors:0 dropped:0 overruns:0 frame:0
          TX packets:140 errors:0 dropped:0 overruns:0 carrier:0
          RX bytes:5879 (5.7 KiB)  TX bytes:5960 (5.8 KiB)
`

func TestParseLinkStatsModernFormat(t *testing.T) {
	stats, err := ParseLinkStats(ifconfigModern)
	require.NoError(t, err)

	assert.Equal(t, "100.91.2.107", stats.Addr)
	assert.Equal(t, uint64(5879), stats.RXBytes)
	assert.Equal(t, uint64(5960), stats.TXBytes)
}

func TestParseLinkStatsLegacyFormat(t *testing.T) {
	stats, err := ParseLinkStats(ifconfigLegacy)
	require.NoError(t, err)

	assert.Equal(t, "100.91.2.107", stats.Addr)
	assert.Equal(t, uint64(5879), stats.RXBytes)
	assert.Equal(t, uint64(5960), stats.TXBytes)
}

func TestParseLinkStatsNoAddress(t *testing.T) {
	_, err := ParseLinkStats("ppp0: flags=4305  mtu 1500\n")
	assert.Error(t, err)
}

func TestParsePingLatency(t *testing.T) {
	out := `PING 8.8.8.8 (8.8.8.8) from 100.91.2.107 ppp0: 56(84) bytes of data.
64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=45.2 ms

--- 8.8.8.8 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms
`
	latency, ok := ParsePingLatency(out)
	assert.True(t, ok)
	assert.Equal(t, 45200*time.Microsecond, latency)

	_, ok = ParsePingLatency("Request timeout")
	assert.False(t, ok)
}

func TestParseProcessUptime(t *testing.T) {
	ps := `    PID     ELAPSED CMD
      1  1-02:03:04 /sbin/init
    812       05:43 pppd /dev/ttyS0 9600 connect chat -v -f /tmp/chat
    990       00:01 grep pppd
`
	uptime, err := ParseProcessUptime(ps, "pppd", "/dev/ttyS0")
	require.NoError(t, err)
	assert.Equal(t, "05:43", uptime)

	_, err = ParseProcessUptime(ps, "pppd", "/dev/ttyUSB7")
	assert.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512.00 B", FormatBytes(512))
	assert.Equal(t, "5.74 KB", FormatBytes(5879))
	assert.Equal(t, "1.00 MB", FormatBytes(1024*1024))
	assert.Equal(t, "2.50 GB", FormatBytes(uint64(2.5*1024*1024*1024)))
}
