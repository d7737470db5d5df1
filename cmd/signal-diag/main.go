// signal-diag runs a one-shot radio diagnostics report over the AT
// channel: module liveness, averaged signal readings, registration,
// operator and packet attach state.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fieldside/gprslink/internal/link/atchan"
	"github.com/fieldside/gprslink/internal/link/config"
	"github.com/fieldside/gprslink/internal/link/modem"
	"github.com/fieldside/gprslink/pkg/log"
	"go.uber.org/zap"
)

const signalReadings = 5

func main() {
	device := flag.String("device", config.DefaultDevice, "serial device of the modem")
	baud := flag.Int("baud", config.DefaultBaudRate, "serial baud rate")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Init(*debug)
	defer log.Sync()

	channel, err := atchan.Open(*device, *baud)
	if err != nil {
		log.Fatal("could not open modem", zap.Error(err))
	}
	defer channel.Close()

	fmt.Println("MODEM SIGNAL DIAGNOSTICS")
	fmt.Println(strings.Repeat("=", 60))

	// Liveness first, everything else is pointless without it
	resp, err := channel.Send("AT", atchan.DefaultCommandTimeout)
	if err != nil || !strings.Contains(resp, atchan.ReplyOK) {
		fmt.Println("module not responding")
		os.Exit(1)
	}
	fmt.Println("module responding")

	resp, _ = channel.Send("AT+CPIN?", atchan.DefaultCommandTimeout)
	if status, ok := modem.ParsePINStatus(resp); ok {
		fmt.Printf("sim status: %s\n", status)
	} else {
		fmt.Println("sim status: unknown")
	}

	fmt.Printf("\nsignal quality (%d readings)\n", signalReadings)
	total, count := 0, 0
	for i := 0; i < signalReadings; i++ {
		resp, err := channel.Send("AT+CSQ", atchan.DefaultCommandTimeout)
		if err != nil {
			log.Warn("signal query failed", zap.Error(err))
			continue
		}

		rssi, err := modem.ParseSignalQuality(resp)
		if err != nil {
			log.Warn("unparseable signal reading", zap.Error(err))
			continue
		}

		fmt.Printf("  reading %d: rssi %d\n", i+1, rssi)
		total += rssi
		count++
		time.Sleep(time.Second)
	}

	if count > 0 {
		avg := total / count
		fmt.Printf("  average rssi: %d -> %s\n", avg, modem.ClassifySignal(avg))
	} else {
		fmt.Println("  no usable signal readings")
	}

	resp, _ = channel.Send("AT+CREG?", atchan.DefaultCommandTimeout)
	fmt.Printf("\nregistration: %s\n", modem.ParseRegistration(resp))

	resp, _ = channel.Send("AT+COPS?", atchan.DefaultCommandTimeout)
	if operator, ok := modem.ParseOperator(resp); ok {
		fmt.Printf("operator: %s\n", operator)
	} else {
		fmt.Println("operator: unknown")
	}

	resp, _ = channel.Send("AT+CGATT?", atchan.DefaultCommandTimeout)
	fmt.Printf("gprs attach: %s\n", modem.ParseAttach(resp))

	resp, _ = channel.Send("AT+CBC", atchan.DefaultCommandTimeout)
	if percent, mv, err := modem.ParseBattery(resp); err == nil {
		fmt.Printf("battery: %d%% (%.2fV)\n", percent, float64(mv)/1000.0)
	} else {
		fmt.Println("battery: unknown")
	}
}
