package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-serialbus/logger"
)

const (
	// DefaultTimeout is the time a started frame may take before the
	// receiver gives up on it.
	DefaultTimeout = 100 * time.Millisecond

	// DefaultBaudRate matches the software serial driver of the node firmware.
	DefaultBaudRate = 9600
)

// Timeout range limits. The upper bound keeps the millisecond delta within
// the positive int32 range used for wraparound-safe comparison.
const (
	MinTimeout = 1 * time.Millisecond
	MaxTimeout = 60 * time.Second
)

// Config holds the settings of one Link.
type Config struct {
	address  Address
	debug    bool
	timeout  time.Duration
	baudRate int
	clock    Clock

	logger logger.Logger
}

// NewConfig creates the configuration for a node with the given own address.
//
// The address must be within [MinAddress, MaxAddress] and cannot change
// afterwards. opts are functional options applied in order; see With* functions.
func NewConfig(address Address, opts ...Option) (*Config, error) {
	if !address.IsValid() {
		return nil, fmt.Errorf("%w: own address %s, want %s-%s", ErrAddressOutOfRange, address, MinAddress, MaxAddress)
	}

	cfg := &Config{
		address:  address,
		timeout:  DefaultTimeout,
		baudRate: DefaultBaudRate,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.clock == nil {
		cfg.clock = NewSystemClock()
	}

	switch {
	case !cfg.debug:
		cfg.logger = logger.Nop()
	case cfg.logger == nil:
		cfg.logger = logger.NewSlog(logger.DebugLevel, false)
	}

	return cfg, nil
}

// --- Getters ---

// Address returns the own node address.
func (cfg *Config) Address() Address { return cfg.address }

// IsMaster returns true if the own address is MasterAddress.
func (cfg *Config) IsMaster() bool { return cfg.address == MasterAddress }

// Debug returns true if protocol trace logging is enabled.
func (cfg *Config) Debug() bool { return cfg.debug }

// Timeout returns the receive timeout.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// TimeoutMillis returns the receive timeout in clock ticks.
func (cfg *Config) TimeoutMillis() int32 { return int32(cfg.timeout / time.Millisecond) }

// BaudRate returns the baud rate passed to Transport.Begin.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// Clock returns the clock used for the receive timeout.
func (cfg *Config) Clock() Clock { return cfg.clock }

// GetLogger returns the logger. It discards everything unless debug is enabled.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithDebug enables or disables protocol trace logging. Disabled by default.
//
// Without WithLogger, an enabled link logs to stdout at DebugLevel.
func WithDebug(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.debug = enabled
		return nil
	})
}

// WithLogger sets the logger used when debug is enabled.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("link: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithTimeout sets the receive timeout, in [MinTimeout, MaxTimeout].
// Sub-millisecond precision is truncated.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("link: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d.Truncate(time.Millisecond)

		return nil
	})
}

// WithBaudRate sets the baud rate passed to Transport.Begin.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("link: baud rate %d must be positive", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithClock sets the millisecond clock. Defaults to a SystemClock.
func WithClock(c Clock) Option {
	return optFunc(func(cfg *Config) error {
		if c == nil {
			return errors.New("link: clock must not be nil")
		}
		cfg.clock = c

		return nil
	})
}
