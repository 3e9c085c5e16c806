package channel

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Duration wraps time.Duration so config files can say "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config carries the tunables of the channel manager. Zero values are
// replaced with the defaults from DefaultConfig at construction.
type Config struct {
	// IdleTimeout is armed on a fixed channel the moment the last
	// holder releases it while the radio link is still up.
	IdleTimeout Duration `toml:"idle_timeout"`

	// BREDREnabled gates the dynamic-channel path entirely. Inbound
	// classic connect indications are rejected when false.
	BREDREnabled bool `toml:"bredr_enabled"`

	// LegacyTimeoutReason selects the historical 0xff reason code for
	// connection timeouts instead of the protocol timeout code 0x08.
	LegacyTimeoutReason bool `toml:"legacy_timeout_reason"`

	// DropWhenExhausted drops the radio link when an inbound LE fixed
	// channel cannot be given a session slot. A lone fixed channel
	// with no session is of no use to anyone.
	DropWhenExhausted bool `toml:"drop_acl_when_exhausted"`

	// ServiceChangeStartHandle and ServiceChangeEndHandle bound the
	// handle range announced in service-changed indications.
	ServiceChangeStartHandle uint16 `toml:"service_change_start_handle"`
	ServiceChangeEndHandle   uint16 `toml:"service_change_end_handle"`

	// ServiceChangeSuppressedNames lists stored device names of peers
	// known to mishandle the service-changed indication.
	ServiceChangeSuppressedNames []string `toml:"service_change_suppressed_names"`
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:              Duration(time.Second),
		BREDREnabled:             true,
		DropWhenExhausted:        true,
		ServiceChangeStartHandle: 0x0001,
		ServiceChangeEndHandle:   0xffff,
	}
}

// LoadConfig reads a TOML config file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "load channel config")
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.ServiceChangeEndHandle == 0 {
		c.ServiceChangeStartHandle = def.ServiceChangeStartHandle
		c.ServiceChangeEndHandle = def.ServiceChangeEndHandle
	}
	return c
}
