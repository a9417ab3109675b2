package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iveri/internal/hardware"
	"iveri/internal/nlu"
)

const (
	HardwareUnavailable = "Hardware control not available on this system."

	blinkTimes    = 3
	blinkInterval = 500 * time.Millisecond
)

// Hardware controls the indicator LED. It claims every input naming the LED
// that also names an action; with no hardware the answer says so.
func Hardware(led hardware.LED) *nlu.RuleSet {
	h := hardwareRules{led: led}
	isLED := nlu.Words("led", "leds", "light", "lights")

	return nlu.NewRuleSet("hardware",
		nlu.Rule{Name: "on", Match: nlu.All(isLED, nlu.Words("on")), Act: h.set(true)},
		nlu.Rule{Name: "off", Match: nlu.All(isLED, nlu.Words("off")), Act: h.set(false)},
		nlu.Rule{Name: "blink", Match: nlu.All(isLED, nlu.Contains("blink")), Act: h.blink},
		nlu.Rule{Name: "toggle", Match: nlu.All(isLED, nlu.Contains("toggle")), Act: h.toggle},
		nlu.Rule{Name: "status", Match: nlu.All(isLED, nlu.Contains("status")), Act: h.status},
	)
}

type hardwareRules struct {
	led hardware.LED
}

func (h hardwareRules) reply(text string, err error) (string, bool, error) {
	if errors.Is(err, hardware.ErrUnavailable) {
		return HardwareUnavailable, true, nil
	}
	if err != nil {
		return "", true, err
	}
	return text, true, nil
}

func (h hardwareRules) set(on bool) nlu.Action {
	return func(ctx context.Context, _ string) (string, bool, error) {
		return h.reply("LED is now "+onOff(on)+".", h.led.Set(ctx, on))
	}
}

func (h hardwareRules) blink(ctx context.Context, _ string) (string, bool, error) {
	err := h.led.Blink(ctx, blinkTimes, blinkInterval)
	return h.reply(fmt.Sprintf("LED blinked %d times.", blinkTimes), err)
}

func (h hardwareRules) toggle(ctx context.Context, _ string) (string, bool, error) {
	on, err := hardware.Toggle(ctx, h.led)
	return h.reply("LED is now "+onOff(on)+".", err)
}

func (h hardwareRules) status(ctx context.Context, _ string) (string, bool, error) {
	on, err := h.led.State(ctx)
	return h.reply("The LED is currently "+onOff(on)+".", err)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
