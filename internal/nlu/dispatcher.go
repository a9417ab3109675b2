// Package nlu routes free-form input through an ordered chain of keyword
// handlers and falls back to a language model when none claims it.
package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"iveri/internal/llm"
	"iveri/internal/session"
)

const (
	NotUnderstood = "I didn't understand that."
	Apology       = "Sorry, I had trouble processing that. Please try again."
	NoModel       = "I can only handle built-in commands right now. Set OPENAI_API_KEY in your .env file to enable open questions."
)

// Fallback completes input that no handler claimed.
type Fallback interface {
	Complete(ctx context.Context, history []session.Turn, input string) (string, error)
}

type Dispatcher struct {
	handlers []Handler
	fallback Fallback
	session  *session.Session
	logger   *log.Logger
}

// NewDispatcher wires the handlers in priority order. The first handler to
// match wins.
func NewDispatcher(sess *session.Session, fallback Fallback, logger *log.Logger, handlers ...Handler) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		handlers: handlers,
		fallback: fallback,
		session:  sess,
		logger:   logger,
	}
}

func (d *Dispatcher) Handlers() []Handler {
	return d.handlers
}

func (d *Dispatcher) Session() *session.Session {
	return d.session
}

// Process answers one input. It never returns an empty string and never
// panics.
func (d *Dispatcher) Process(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return NotUnderstood
	}

	start := time.Now()

	for _, h := range d.handlers {
		resp, matched, err := d.try(ctx, h, input)
		if err != nil {
			d.logger.Error("Handler failed", "handler", h.Name(), "err", err)
			return Apology
		}
		if matched {
			d.logger.Debug("Handled",
				"handler", h.Name(),
				"elapsed", time.Since(start).Round(time.Millisecond))
			return resp
		}
	}

	return d.complete(ctx, input)
}

func (d *Dispatcher) try(ctx context.Context, h Handler, input string) (resp string, matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, matched, err = "", true, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.TryHandle(ctx, input)
}

func (d *Dispatcher) complete(ctx context.Context, input string) (out string) {
	if d.fallback == nil {
		return NoModel
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Fallback panicked", "panic", r)
			out = Apology
		}
	}()

	resp, err := d.fallback.Complete(ctx, d.session.Turns(), input)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		d.logger.Warn("Language model unavailable", "err", err)
		return NoModel
	case errors.Is(err, llm.ErrTransient):
		d.logger.Warn("Language model transient failure", "err", err)
		return Apology
	case err != nil:
		d.logger.Error("Language model failed", "err", err)
		return Apology
	}

	d.session.Append(input, resp)
	return resp
}
