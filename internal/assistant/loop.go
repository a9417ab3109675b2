package assistant

import (
	"context"
	"errors"
	"io"
	"strings"

	"iveri/internal/wake"
)

func (a *Assistant) chatLoop(ctx context.Context) (Mode, error) {
	a.printf("\n--- CHAT MODE ---\n")
	a.printf("Type message or press ENTER to speak\n")
	a.printf("Type 'wake' to switch | 'quit' to exit\n")
	a.printf("%s\n\n", strings.Repeat("-", 30))

	for {
		a.printf("You: ")
		line, err := a.lines.Next(ctx)
		if errors.Is(err, io.EOF) {
			return modeExit, nil
		}
		if err != nil {
			return modeExit, err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			a.printf("Listening...\n")
			input = a.listen(ctx)
			if input == "" {
				a.printf("%s: Didn't catch that.\n\n", a.cfg.Assistant.Name)
				continue
			}
			a.printf("(You said: %s)\n", input)
		}

		if strings.ToLower(input) == "wake" {
			return ModeWake, nil
		}
		if IsExit(input) {
			a.printf("%s: Goodbye!\n", a.cfg.Assistant.Name)
			return modeExit, nil
		}

		a.printf("%s: %s\n\n", a.cfg.Assistant.Name, a.Process(ctx, input))
	}
}

func (a *Assistant) wakeLoop(ctx context.Context) (Mode, error) {
	sources := append([]wake.Source{wake.NewKeyboard(a.lines)}, a.triggers...)
	src := wake.Any(sources...)
	keyboardOnly := len(a.triggers) == 0

	a.printf("\n--- WAKE MODE ---\n")
	switch {
	case a.keyword != "":
		a.printf("Say '%s' to activate\n", a.keywordTitle())
	case keyboardOnly:
		a.printf("Press ENTER to speak\n")
	default:
		a.printf("Press ENTER or trigger to speak\n")
	}
	a.printf("Say 'goodbye' to exit | Type 'chat' for text mode\n")
	a.printf("%s\n\n", strings.Repeat("-", 30))

	a.say(ctx, "Wake mode active.")

	for {
		if keyboardOnly {
			a.printf(">>> Press ENTER to speak: ")
		} else if a.keyword != "" {
			a.printf("Waiting for '%s'...\n", a.keywordTitle())
		}

		ev, err := src.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return modeExit, ctx.Err()
			}
			a.logger.Error("Wake sources failed", "err", err)
			return ModeChat, nil
		}

		switch ev {
		case wake.SwitchChat:
			return ModeChat, nil
		case wake.Exit:
			a.say(ctx, "Goodbye!")
			return modeExit, nil
		}

		if next, done := a.converse(ctx); done {
			return next, nil
		}
	}
}

// converse handles one wake trigger. done is set when the mode changes.
func (a *Assistant) converse(ctx context.Context) (next Mode, done bool) {
	if a.notifier != nil {
		if err := a.notifier.Notify(ctx); err != nil {
			a.logger.Debug("Notify failed", "err", err)
		}
	}

	a.say(ctx, "Yes?")
	a.printf("Listening...\n")

	input := a.listen(ctx)
	if input == "" {
		a.say(ctx, "Didn't catch that.")
		return "", false
	}
	a.printf("You said: %s\n", input)

	if IsExit(input) {
		a.say(ctx, "Goodbye!")
		return modeExit, true
	}
	if strings.Contains(strings.ToLower(input), "chat mode") {
		a.say(ctx, "Switching to chat.")
		return ModeChat, true
	}

	a.say(ctx, a.Process(ctx, input))
	return "", false
}

// listen returns the transcribed utterance, or "" when nothing was heard.
func (a *Assistant) listen(ctx context.Context) string {
	text, err := a.listener.Listen(ctx)
	if err != nil {
		a.logger.Debug("Listen failed", "err", err)
		return ""
	}
	return strings.TrimSpace(text)
}
