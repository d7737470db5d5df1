// gprs-service is the persistent variant: it establishes the PPP link,
// then supervises it with periodic health reporting for as long as the
// process runs, restarting the whole chain on any stage failure.
// Intended to run under systemd with Restart=always.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

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
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Init(*debug)
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("could not load configuration", zap.Error(err))
	}

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

	ctx, cancel := context.WithCancel(context.Background())
	exitSignal := make(chan os.Signal, 1)
	signal.Notify(exitSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-exitSignal
		log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	supervisor := link.NewSupervisor(cfg)

	if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("link supervision ended with error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("link supervision ended")
}
