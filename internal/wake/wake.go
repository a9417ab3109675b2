// Package wake provides the things wake mode blocks on until the user wants
// to talk: the keyboard, an iveri-ctl trigger, the hardware button or a
// spoken keyword.
package wake

import (
	"bufio"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"

	"iveri/internal/hardware"
	"iveri/internal/speech"
)

type Event int

const (
	// Trigger asks the assistant to listen.
	Trigger Event = iota
	// SwitchChat returns to chat mode.
	SwitchChat
	// Exit ends the run.
	Exit
)

func (e Event) String() string {
	switch e {
	case Trigger:
		return "trigger"
	case SwitchChat:
		return "chat"
	case Exit:
		return "exit"
	}
	return "unknown"
}

type Source interface {
	Wait(ctx context.Context) (Event, error)
}

// Lines reads r line by line in the background so a pending read never
// blocks context cancellation. Chat mode and the keyboard source share it.
type Lines struct {
	ch   chan string
	err  error
	done chan struct{}

	mu sync.Mutex
	// held is a line received by a read that was cancelled meanwhile. The
	// next read returns it first.
	held *string
}

func NewLines(r io.Reader) *Lines {
	l := &Lines{ch: make(chan string), done: make(chan struct{})}
	go l.read(r)
	return l
}

func (l *Lines) read(r io.Reader) {
	defer close(l.done)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		l.ch <- sc.Text()
	}
	l.err = sc.Err()
	if l.err == nil {
		l.err = io.EOF
	}
}

// Next returns the next line. io.EOF is returned once the input is
// exhausted. A cancelled read never consumes a line.
func (l *Lines) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if line, ok := l.takeHeld(); ok {
		return line, nil
	}

	select {
	case line := <-l.ch:
		if err := ctx.Err(); err != nil {
			l.hold(line)
			return "", err
		}
		return line, nil
	case <-l.done:
		return "", l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *Lines) hold(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = &line
}

func (l *Lines) takeHeld() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		return "", false
	}
	line := *l.held
	l.held = nil
	return line, true
}

// Keyboard fires on ENTER. Typing "chat" switches modes, "quit" or "exit"
// ends the run.
type Keyboard struct {
	lines *Lines
}

func NewKeyboard(lines *Lines) *Keyboard {
	return &Keyboard{lines: lines}
}

func (k *Keyboard) Wait(ctx context.Context) (Event, error) {
	line, err := k.lines.Next(ctx)
	if errors.Is(err, io.EOF) {
		return Exit, nil
	}
	if err != nil {
		return Trigger, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "chat":
		return SwitchChat, nil
	case "quit", "exit":
		return Exit, nil
	}
	return Trigger, nil
}

// Channel fires once per value received, typically from the IPC server.
type Channel <-chan struct{}

func (c Channel) Wait(ctx context.Context) (Event, error) {
	select {
	case <-c:
		return Trigger, nil
	case <-ctx.Done():
		return Trigger, ctx.Err()
	}
}

// Button fires when the hardware button is pressed.
type Button struct {
	B hardware.Button
}

func (b Button) Wait(ctx context.Context) (Event, error) {
	if err := b.B.WaitPress(ctx); err != nil {
		return Trigger, err
	}
	return Trigger, nil
}

// Keyword listens continuously and fires when the wake word is heard.
// Hearing "chat mode" switches back to chat.
type Keyword struct {
	hear func(ctx context.Context) (string, error)
	word *regexp.Regexp
}

func NewKeyword(word string, hear func(ctx context.Context) (string, error)) *Keyword {
	return &Keyword{
		hear: hear,
		word: regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(word)) + `\b`),
	}
}

var chatMode = regexp.MustCompile(`\bchat mode\b`)

func (k *Keyword) Wait(ctx context.Context) (Event, error) {
	for {
		text, err := k.hear(ctx)
		if err := ctx.Err(); err != nil {
			return Trigger, err
		}
		if errors.Is(err, speech.ErrNoSpeech) {
			continue
		}
		if err != nil {
			return Trigger, err
		}

		text = strings.ToLower(text)
		switch {
		case chatMode.MatchString(text):
			return SwitchChat, nil
		case k.word.MatchString(text):
			return Trigger, nil
		}
	}
}

// Any waits on every source and returns the first event. The others are
// cancelled and drained before it returns.
func Any(sources ...Source) Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return anySource(sources)
}

type anySource []Source

type result struct {
	ev  Event
	err error
}

func (a anySource) Wait(ctx context.Context) (Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(a))
	for _, s := range a {
		go func(s Source) {
			ev, err := s.Wait(ctx)
			results <- result{ev, err}
		}(s)
	}

	var first *result
	pending := len(a)
	for pending > 0 {
		r := <-results
		pending--

		if first == nil && (r.err == nil || ctx.Err() != nil) {
			first = &r
			cancel()
		} else if first == nil && pending == 0 {
			first = &r
		}
	}
	return first.ev, first.err
}
