// gprs-connect brings up the cellular modem, negotiates a PPP link and
// holds it until the hold time expires or a termination signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldside/gprslink/internal/link"
	"github.com/fieldside/gprslink/internal/link/config"
	"github.com/fieldside/gprslink/pkg/log"
	"go.uber.org/zap"
)

const defaultConfigPath = "/etc/gprslink/config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the config file")
	device := flag.String("device", "", "serial device of the modem")
	baud := flag.Int("baud", 0, "serial baud rate")
	apn := flag.String("apn", "", "access point name")
	hold := flag.Duration("hold", 60*time.Second, "how long to keep the link up")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Init(*debug)
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("could not load configuration", zap.Error(err))
	}

	// Explicit flags win over the config file
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.BaudRate = *baud
	}
	if *apn != "" {
		cfg.APN = *apn
	}
	cfg.Debug = cfg.Debug || *debug

	if err := cfg.Verify(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	// An interrupt cancels the same context the failure path uses, so
	// there is exactly one teardown implementation.
	ctx, cancel := context.WithCancel(context.Background())
	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-exitSignal
		log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	supervisor := link.NewSupervisor(cfg)

	if err := supervisor.Connect(ctx); err != nil {
		supervisor.Shutdown()
		log.Error("could not establish connection", zap.Error(err))
		os.Exit(1)
	}

	log.Info("connection established, holding link", zap.Duration("hold", *hold))
	select {
	case <-ctx.Done():
	case <-time.After(*hold):
	}

	supervisor.Shutdown()
	log.Info("disconnected")
}
