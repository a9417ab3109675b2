// Package tts renders assistant replies as speech.
package tts

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Console prints what would have been spoken. It stands in when speech
// output is disabled.
type Console struct {
	w      io.Writer
	prefix string
}

func NewConsole(w io.Writer, name string) *Console {
	return &Console{w: w, prefix: name + ": "}
}

func (c *Console) Speak(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := fmt.Fprintln(c.w, c.prefix+text)
	return err
}

// Silent discards speech.
type Silent struct{}

func (Silent) Speak(context.Context, string) error { return nil }

// Tee speaks through every speaker in order and returns the first error.
type Tee []Speaker

func (t Tee) Speak(ctx context.Context, text string) error {
	var first error
	for _, s := range t {
		if err := s.Speak(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
