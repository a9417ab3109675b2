package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"iveri/internal/assistant"
	"iveri/internal/audio"
	"iveri/internal/audio/pulse"
	"iveri/internal/config"
	"iveri/internal/hardware"
	"iveri/internal/ipc"
	"iveri/internal/notify"
	"iveri/internal/speech"
	"iveri/internal/system"
	"iveri/internal/tts"
	"iveri/internal/wake"
	"iveri/pkg/stt"
)

// platform owns the devices behind a run: indicator hardware, microphone,
// speech engines and the control socket.
type platform struct {
	cfg    *config.Config
	logger *log.Logger

	led     hardware.LED
	tr      stt.Transcriber
	closers []func() error
}

func newPlatform(cfg *config.Config, logger *log.Logger) *platform {
	return &platform{cfg: cfg, logger: logger}
}

func (p *platform) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Debug("Close failed", "err", err)
		}
	}
}

// Transcriber loads the configured speech-to-text engine once.
func (p *platform) Transcriber() (stt.Transcriber, error) {
	if p.tr != nil {
		return p.tr, nil
	}

	tr, closeFn, err := speech.NewTranscriber(p.cfg)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, closeFn)
	p.tr = tr

	return tr, nil
}

// Devices fills the parts of deps every run needs, one-shot or not. The
// selected LED is released by the assistant.
func (p *platform) Devices(deps *assistant.Deps) error {
	if p.led == nil {
		led, err := hardware.Select(p.cfg.Hardware, p.cfg.Bus.Shard, p.logger)
		if err != nil {
			return fmt.Errorf("hardware: %w", err)
		}
		p.led = led
	}
	deps.LED = p.led
	return nil
}

// Interactive fills deps with the devices of a chat/wake session. Missing
// audio degrades to text only; a broken explicit hardware driver is fatal.
func (p *platform) Interactive(ctx context.Context, deps *assistant.Deps) error {
	if err := p.Devices(deps); err != nil {
		return err
	}
	led := deps.LED

	pa := pulse.New()
	deps.Desktop = system.NewHost(system.WithPulse(pa), system.WithLogger(p.logger))

	deps.Listener = p.listener(pa)

	if p.cfg.TTS.Enabled {
		deps.Speaker = tts.NewEspeak(p.cfg.TTS.Voice, p.cfg.TTS.Rate)
	}

	deps.Notifier = p.notifier(led)

	if err := p.triggers(ctx, deps, led); err != nil {
		return err
	}

	return nil
}

func (p *platform) listener(pa *pulse.Client) speech.Listener {
	tr, err := p.Transcriber()
	if err != nil {
		p.logger.Warn("Speech recognition disabled", "err", err)
		return speech.Unavailable{}
	}

	rec := audio.NewRecorder()
	if err := rec.Init(); err != nil {
		p.logger.Warn("Microphone unavailable", "err", err)
		return speech.Unavailable{}
	}
	p.closers = append(p.closers, func() error { rec.Close(); return nil })

	cfg := speech.Config{
		Recorder:    rec,
		Transcriber: tr,
		Limits: audio.Limits{
			Wait:   p.cfg.Speech.WaitTimeout,
			Phrase: p.cfg.Speech.PhraseLimit,
		},
		Window:  rec,
		SpotFor: p.cfg.Speech.KeywordWindow,
		Logger:  p.logger,
	}
	if p.cfg.Speech.Duck {
		cfg.Ducker = pulse.NewDucker(pa, []string{"iveri", "espeak"}, 5)
	}

	return speech.NewMic(cfg)
}

func (p *platform) notifier(led hardware.LED) notify.Notifier {
	all := notify.All{notify.Desktop{Title: p.cfg.Assistant.Name, Body: "Listening..."}}

	if p.cfg.TTS.Chime != "" {
		all = append(all, notify.NewChime(p.cfg.TTS.Chime))
	}
	if b, ok := led.(hardware.Buzzer); ok && hasHardware(led) {
		all = append(all, notify.Buzzer{Buzz: b.Buzz})
	}
	return all
}

// triggers starts the control socket and adds the configured wake source.
// The keyboard is always available.
func (p *platform) triggers(ctx context.Context, deps *assistant.Deps, led hardware.LED) error {
	fired := make(chan struct{}, 1)
	srv, err := ipc.Listen(p.cfg.Wake.Socket, func(m ipc.ControlMessage) error {
		switch m.Cmd {
		case ipc.CmdTrigger:
			select {
			case fired <- struct{}{}:
			default:
			}
			return nil
		case ipc.CmdPing:
			return nil
		}
		return fmt.Errorf("unknown command %q", m.Cmd)
	}, p.logger)
	if err != nil {
		p.logger.Warn("Control socket disabled", "err", err)
	} else {
		go srv.Serve(ctx)
		p.closers = append(p.closers, srv.Close)
		deps.Triggers = append(deps.Triggers, wake.Channel(fired))
	}

	switch p.cfg.Wake.Source {
	case "button":
		b, ok := led.(hardware.Button)
		if !ok || !hasHardware(led) {
			p.logger.Warn("Wake button needs the gpio driver")
			break
		}
		deps.Triggers = append(deps.Triggers, wake.Button{B: b})

	case "keyword":
		mic, ok := deps.Listener.(*speech.Mic)
		if !ok {
			p.logger.Warn("Wake word needs a microphone, using keyboard")
			break
		}
		deps.Triggers = append(deps.Triggers, wake.NewKeyword(p.cfg.Wake.Word, mic.Spot))
		deps.Keyword = p.cfg.Wake.Word

	case "keyboard", "ipc", "":

	default:
		return errors.New("unknown wake source " + p.cfg.Wake.Source)
	}

	return nil
}

func hasHardware(led hardware.LED) bool {
	_, none := led.(hardware.None)
	return !none
}
