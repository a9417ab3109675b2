package hardware

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"iveri/internal/config"
)

// GPIO drives the LED, button and buzzer on local BCM lines.
type GPIO struct {
	mu     sync.Mutex
	led    gpio.PinIO
	button gpio.PinIO
	buzzer gpio.PinIO
	on     bool
	logger *log.Logger
}

func NewGPIO(cfg config.HardwareConfig, logger *log.Logger) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	led, err := pin(cfg.LEDPin)
	if err != nil {
		return nil, err
	}
	if err := led.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configure led %s: %w", led, err)
	}

	g := &GPIO{led: led, logger: logger}

	// Button and buzzer are optional.
	if p, err := pin(cfg.ButtonPin); err == nil {
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err == nil {
			g.button = p
		} else {
			logger.Warn("Button line unusable", "pin", p, "err", err)
		}
	}
	if p, err := pin(cfg.BuzzerPin); err == nil {
		if err := p.Out(gpio.Low); err == nil {
			g.buzzer = p
		} else {
			logger.Warn("Buzzer line unusable", "pin", p, "err", err)
		}
	}

	logger.Debug("GPIO ready", "led", cfg.LEDPin, "button", cfg.ButtonPin, "buzzer", cfg.BuzzerPin)
	return g, nil
}

func pin(n int) (gpio.PinIO, error) {
	if n <= 0 {
		return nil, fmt.Errorf("gpio line %d: %w", n, ErrUnavailable)
	}
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if p == nil {
		return nil, fmt.Errorf("gpio line %d not found: %w", n, ErrUnavailable)
	}
	return p, nil
}

func level(on bool) gpio.Level {
	if on {
		return gpio.High
	}
	return gpio.Low
}

func (g *GPIO) Set(_ context.Context, on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.led.Out(level(on)); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	g.on = on
	return nil
}

func (g *GPIO) Blink(ctx context.Context, times int, interval time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var stopped error
	for i := 0; i < times && stopped == nil; i++ {
		if err := g.led.Out(gpio.High); err != nil {
			return err
		}
		if stopped = sleep(ctx, interval); stopped != nil {
			break
		}
		if err := g.led.Out(gpio.Low); err != nil {
			return err
		}
		stopped = sleep(ctx, interval)
	}

	// Blinking ends in the state the LED had before, even when cancelled.
	if err := g.led.Out(level(g.on)); err != nil {
		return err
	}
	return stopped
}

func (g *GPIO) State(context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.on, nil
}

// WaitPress polls for a falling edge so ctx cancellation is honoured.
func (g *GPIO) WaitPress(ctx context.Context) error {
	if g.button == nil {
		return ErrUnavailable
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if g.button.WaitForEdge(200*time.Millisecond) && g.button.Read() == gpio.Low {
			return nil
		}
	}
}

func (g *GPIO) Buzz(ctx context.Context, d time.Duration) error {
	if g.buzzer == nil {
		return ErrUnavailable
	}
	if err := g.buzzer.Out(gpio.High); err != nil {
		return err
	}
	_ = sleep(ctx, d)
	return g.buzzer.Out(gpio.Low)
}

func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.led.Out(gpio.Low); err != nil {
		g.logger.Warn("GPIO cleanup", "err", err)
	}
	for _, p := range []gpio.PinIO{g.led, g.button, g.buzzer} {
		if p == nil {
			continue
		}
		if err := p.Halt(); err != nil {
			g.logger.Warn("GPIO cleanup", "pin", p, "err", err)
		}
	}
	return nil
}
