// Package notify plays the short chime that tells the user the assistant is
// listening.
package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

type Notifier interface {
	Notify(ctx context.Context) error
}

// Chime plays an mp3 file through the default output.
type Chime struct {
	path string

	once    sync.Once
	initErr error
	rate    beep.SampleRate
}

func NewChime(path string) *Chime {
	return &Chime{path: path}
}

func (c *Chime) Notify(ctx context.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", c.path, err)
	}
	defer streamer.Close()

	// The speaker can only be initialised once per process.
	c.once.Do(func() {
		c.rate = format.SampleRate
		c.initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != c.rate {
		s = beep.Resample(4, format.SampleRate, c.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Buzzer adapts a hardware buzzer to a Notifier.
type Buzzer struct {
	Buzz     func(ctx context.Context, d time.Duration) error
	Duration time.Duration
}

func (b Buzzer) Notify(ctx context.Context) error {
	d := b.Duration
	if d <= 0 {
		d = 150 * time.Millisecond
	}
	return b.Buzz(ctx, d)
}

// All runs every notifier and returns the first error.
type All []Notifier

func (a All) Notify(ctx context.Context) error {
	var first error
	for _, n := range a {
		if err := n.Notify(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Desktop pops a desktop notification through notify-send.
type Desktop struct {
	Title string
	Body  string
}

func (d Desktop) Notify(ctx context.Context) error {
	return exec.CommandContext(ctx, "notify-send", "-t", "2000", d.Title, d.Body).Run()
}
