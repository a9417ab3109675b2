// Package speech records one spoken utterance and returns it as text.
package speech

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"iveri/internal/audio"
	"iveri/pkg/stt"
)

var (
	// ErrNoSpeech means nothing intelligible was heard in the wait window.
	ErrNoSpeech    = errors.New("no speech recognised")
	ErrUnavailable = errors.New("speech input not available")
)

type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Recorder captures audio. *audio.Recorder satisfies it.
type Recorder interface {
	RecordUtterance(ctx context.Context, lim audio.Limits) ([]float32, error)
}

// Window records a fixed span for wake-word spotting. *audio.Recorder
// satisfies it.
type Window interface {
	RecordFor(ctx context.Context, d time.Duration) ([]float32, error)
	Loud(pcm []float32) bool
}

// Ducker lowers other playback while listening. *pulse.Ducker satisfies it.
type Ducker interface {
	Duck(ctx context.Context, factor float64, duration time.Duration) error
	Restore(ctx context.Context, duration time.Duration) error
}

type Config struct {
	Recorder    Recorder
	Transcriber stt.Transcriber
	Ducker      Ducker
	Limits      audio.Limits
	// Window and SpotFor drive Spot. Without a Window, Spot listens for a
	// whole utterance.
	Window  Window
	SpotFor time.Duration
	Logger  *log.Logger
}

// Mic listens on the default microphone.
type Mic struct {
	rec    Recorder
	tr     stt.Transcriber
	duck   Ducker
	lim    audio.Limits
	win    Window
	spot   time.Duration
	logger *log.Logger
}

func NewMic(cfg Config) *Mic {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.SpotFor <= 0 {
		cfg.SpotFor = 2 * time.Second
	}
	return &Mic{
		rec:    cfg.Recorder,
		tr:     cfg.Transcriber,
		duck:   cfg.Ducker,
		lim:    cfg.Limits,
		win:    cfg.Window,
		spot:   cfg.SpotFor,
		logger: cfg.Logger,
	}
}

// Listen records until the speaker pauses and transcribes the result.
// Silence and empty transcripts are reported as ErrNoSpeech.
func (m *Mic) Listen(ctx context.Context) (string, error) {
	if m.duck != nil {
		if err := m.duck.Duck(ctx, 0.3, 150*time.Millisecond); err != nil {
			m.logger.Debug("Ducking failed", "err", err)
		}
		defer func() {
			if err := m.duck.Restore(context.WithoutCancel(ctx), 300*time.Millisecond); err != nil {
				m.logger.Debug("Restore failed", "err", err)
			}
		}()
	}

	start := time.Now()
	pcm, err := m.rec.RecordUtterance(ctx, m.lim)
	if errors.Is(err, audio.ErrNoSpeech) {
		return "", ErrNoSpeech
	}
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	m.logger.Debug("Recorded", "samples", len(pcm), "elapsed", time.Since(start).Round(time.Millisecond))

	text, err := m.transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}
	m.logger.Info("Transcribed", "text", text)
	return text, nil
}

// Spot records one fixed window for wake-word detection. Quiet windows are
// reported as ErrNoSpeech without being transcribed.
func (m *Mic) Spot(ctx context.Context) (string, error) {
	if m.win == nil {
		return m.Listen(ctx)
	}

	pcm, err := m.win.RecordFor(ctx, m.spot)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if !m.win.Loud(pcm) {
		return "", ErrNoSpeech
	}

	text, err := m.transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}
	m.logger.Debug("Spotted", "text", text)
	return text, nil
}

func (m *Mic) transcribe(ctx context.Context, pcm []float32) (string, error) {
	text, err := m.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// Normalize drops whisper's non-speech markers such as "[BLANK_AUDIO]" and
// "(wind blowing)".
func Normalize(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch r {
		case '[', '(':
			depth++
			continue
		case ']', ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth == 0 {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Unavailable is the Listener of a machine without a microphone or speech
// engine.
type Unavailable struct{}

func (Unavailable) Listen(context.Context) (string, error) {
	return "", ErrUnavailable
}
