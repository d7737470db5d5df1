// sms-send delivers a text-mode SMS over the AT channel. Message
// encoding beyond plain GSM text is out of scope, the modem handles the
// payload as-is.
package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/fieldside/gprslink/internal/link/atchan"
	"github.com/fieldside/gprslink/internal/link/config"
	"github.com/fieldside/gprslink/pkg/log"
	"go.uber.org/zap"
)

// Ctrl-Z terminates the message body in text mode
const endOfMessage = "\x1a"

func main() {
	device := flag.String("device", config.DefaultDevice, "serial device of the modem")
	baud := flag.Int("baud", config.DefaultBaudRate, "serial baud rate")
	number := flag.String("to", "", "destination number in international format")
	message := flag.String("message", "", "message text")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Init(*debug)
	defer log.Sync()

	if *number == "" || *message == "" {
		log.Fatal("both -to and -message are required")
	}

	channel, err := atchan.Open(*device, *baud)
	if err != nil {
		log.Fatal("could not open modem", zap.Error(err))
	}
	defer channel.Close()

	steps := []string{
		"AT",        // liveness
		"AT+CPIN?",  // SIM present
		"AT+CREG?",  // network registration
		"AT+CMGF=1", // text mode
	}
	for _, cmd := range steps {
		resp, err := channel.Send(cmd, atchan.DefaultCommandTimeout)
		if err != nil {
			log.Fatal("modem setup failed", zap.String("command", cmd), zap.Error(err))
		}
		log.Debug("setup step", zap.String("command", cmd), zap.String("response", resp))
	}

	// The CMGS prompt ("> ") carries no OK, a short settle is enough
	if _, err := channel.Send(fmt.Sprintf("AT+CMGS=%q", *number), 2*time.Second); err != nil {
		log.Fatal("could not start message entry", zap.Error(err))
	}

	resp, err := channel.SendRaw([]byte(*message+endOfMessage), 10*time.Second)
	if err != nil {
		log.Fatal("could not send message body", zap.Error(err))
	}

	if strings.Contains(resp, atchan.ReplyOK) {
		log.Info("sms sent", zap.String("to", *number))
	} else {
		log.Error("modem did not confirm the sms", zap.String("response", resp))
	}
}
