// Package config holds the connection supervisor's configuration
// surface: an optional TOML file with CLI flag overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fieldside/gprslink/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	DefaultDevice              = "/dev/ttyS0"
	DefaultBaudRate            = 9600
	DefaultRegistrationTimeout = 60 * time.Second
	DefaultNegotiationTimeout  = 90 * time.Second
	DefaultMonitorInterval     = 30 * time.Second
	DefaultHoldoff             = 30 * time.Second
	DefaultMaxFail             = 3
	DefaultPPPLogFile          = "/var/log/pppd.log"
)

var ErrMissingAPN = errors.New("no access point name configured")

type TOMLDuration time.Duration

func (d *TOMLDuration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = TOMLDuration(x)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d TOMLDuration) Value() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Device              string       `toml:"device"`
	BaudRate            int          `toml:"baud_rate"`
	APN                 string       `toml:"apn"`
	RegistrationTimeout TOMLDuration `toml:"registration_timeout"`
	NegotiationTimeout  TOMLDuration `toml:"negotiation_timeout"`
	MonitorInterval     TOMLDuration `toml:"monitor_interval"`
	Holdoff             TOMLDuration `toml:"holdoff"`
	MaxFail             int          `toml:"max_fail"`
	PPPLogFile          string       `toml:"ppp_log_file,omitempty"`
	Debug               bool         `toml:"debug,omitempty"`
}

// Defaults returns a config with every field except the APN populated.
func Defaults() Config {
	return Config{
		Device:              DefaultDevice,
		BaudRate:            DefaultBaudRate,
		RegistrationTimeout: TOMLDuration(DefaultRegistrationTimeout),
		NegotiationTimeout:  TOMLDuration(DefaultNegotiationTimeout),
		MonitorInterval:     TOMLDuration(DefaultMonitorInterval),
		Holdoff:             TOMLDuration(DefaultHoldoff),
		MaxFail:             DefaultMaxFail,
		PPPLogFile:          DefaultPPPLogFile,
	}
}

// Load reads the TOML file over the defaults. A missing file is fine,
// the flag surface may provide everything needed.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("no config file, using defaults", zap.String("path", path))
			return &cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	log.Debug("active config", zap.Any("config", cfg), zap.String("path", path))
	return &cfg, nil
}

// Verify checks the mandatory fields.
func (c *Config) Verify() error {
	if c.APN == "" {
		return ErrMissingAPN
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}

	if c.MaxFail < 0 {
		return fmt.Errorf("invalid max_fail %d", c.MaxFail)
	}

	return nil
}
