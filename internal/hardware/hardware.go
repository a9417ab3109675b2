// Package hardware drives the assistant's indicator LED, wake button and
// buzzer. The implementation is picked once at startup: no hardware, local
// GPIO lines, or a remote hub reached over the device protocol.
package hardware

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"iveri/internal/config"
)

var ErrUnavailable = errors.New("hardware not available")

// LED is the indicator light.
type LED interface {
	Set(ctx context.Context, on bool) error
	Blink(ctx context.Context, times int, interval time.Duration) error
	State(ctx context.Context) (bool, error)
	Close() error
}

// Button blocks until the wake button is pressed.
type Button interface {
	WaitPress(ctx context.Context) error
}

// Buzzer sounds a short tone.
type Buzzer interface {
	Buzz(ctx context.Context, d time.Duration) error
}

const (
	DriverAuto   = "auto"
	DriverNone   = "none"
	DriverGPIO   = "gpio"
	DriverRemote = "remote"
)

// Select builds the LED for cfg.Driver. "auto" tries GPIO and degrades to
// None; an explicit driver that fails to start is an error.
func Select(cfg config.HardwareConfig, shard string, logger *log.Logger) (LED, error) {
	if logger == nil {
		logger = log.Default()
	}

	switch cfg.Driver {
	case DriverNone:
		return None{}, nil

	case DriverGPIO:
		return NewGPIO(cfg, logger)

	case DriverRemote:
		return NewRemote(RemoteConfig{
			URL:    cfg.HubURL,
			Hub:    cfg.HubShard,
			Device: cfg.Device,
			Shard:  shard,
			Logger: logger,
		})

	case DriverAuto, "":
		g, err := NewGPIO(cfg, logger)
		if err != nil {
			logger.Info("GPIO not available, hardware control disabled", "err", err)
			return None{}, nil
		}
		return g, nil
	}

	return nil, fmt.Errorf("unknown hardware driver %q", cfg.Driver)
}

// None is the LED of a machine without hardware. Every call reports
// ErrUnavailable.
type None struct{}

func (None) Set(context.Context, bool) error { return ErrUnavailable }
func (None) Blink(context.Context, int, time.Duration) error { return ErrUnavailable }
func (None) State(context.Context) (bool, error) { return false, ErrUnavailable }
func (None) Close() error { return nil }
func (None) WaitPress(context.Context) error { return ErrUnavailable }
func (None) Buzz(context.Context, time.Duration) error { return ErrUnavailable }

// Toggle flips the LED and returns the new state.
func Toggle(ctx context.Context, led LED) (bool, error) {
	on, err := led.State(ctx)
	if err != nil {
		return false, err
	}
	if err := led.Set(ctx, !on); err != nil {
		return false, err
	}
	return !on, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
