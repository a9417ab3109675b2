// Package assistant owns one run of IVERI: the persistent store, the
// conversation session and the dispatcher, plus the chat and wake loops
// that feed them.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"iveri/internal/config"
	"iveri/internal/handlers"
	"iveri/internal/hardware"
	"iveri/internal/httpkit"
	"iveri/internal/llm"
	"iveri/internal/memory"
	"iveri/internal/nlu"
	"iveri/internal/notify"
	"iveri/internal/session"
	"iveri/internal/speech"
	"iveri/internal/system"
	"iveri/internal/tts"
	"iveri/internal/wake"
	"iveri/internal/web"
)

type Mode string

const (
	ModeChat Mode = "chat"
	ModeWake Mode = "wake"
	modeExit Mode = "exit"
)

// ParseMode maps the startup answer to a mode. Anything unrecognised is chat.
func ParseMode(choice string) Mode {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "2", "wake", "w":
		return ModeWake
	}
	return ModeChat
}

var exitWords = regexp.MustCompile(`\b(goodbye|exit|quit|bye|stop)\b`)

// IsExit reports whether text asks to end the run.
func IsExit(text string) bool {
	return exitWords.MatchString(strings.ToLower(text))
}

// Deps are the side-effecting parts of a run. Nil network clients are built
// from the config; other nil fields fall back to inert implementations.
type Deps struct {
	In  io.Reader
	Out io.Writer

	HTTPClient *http.Client
	Fallback   nlu.Fallback
	Weather    handlers.Weather
	News       handlers.News

	Desktop  system.Desktop
	LED      hardware.LED
	Listener speech.Listener
	Speaker  tts.Speaker
	Notifier notify.Notifier

	// Triggers are wake sources besides the keyboard.
	Triggers []wake.Source
	// Keyword is set when a spoken wake word is among the triggers.
	Keyword string
}

type Assistant struct {
	cfg        *config.Config
	store      *memory.Store
	session    *session.Session
	dispatcher *nlu.Dispatcher

	lines    *wake.Lines
	out      io.Writer
	listener speech.Listener
	voice    tts.Speaker
	notifier notify.Notifier
	led      hardware.LED
	triggers []wake.Source
	keyword  string

	runID  string
	logger *log.Logger
}

func New(cfg *config.Config, deps Deps, logger *log.Logger) (*Assistant, error) {
	if logger == nil {
		logger = log.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("run", runID[:8])

	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.HTTPClient == nil {
		c, err := httpkit.NewClient(httpkit.WithProxy(cfg.Proxy))
		if err != nil {
			return nil, fmt.Errorf("http client: %w", err)
		}
		deps.HTTPClient = c
	}
	if deps.Fallback == nil {
		// Completions outlive the lookup timeout.
		llmHTTP, err := httpkit.NewClient(httpkit.WithProxy(cfg.Proxy), httpkit.WithTimeout(cfg.LLM.Timeout))
		if err != nil {
			return nil, fmt.Errorf("http client: %w", err)
		}
		deps.Fallback = llm.New(llm.Config{
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Model:      cfg.LLM.Model,
			Name:       cfg.Assistant.Name,
			MaxTokens:  cfg.LLM.MaxTokens,
			Timeout:    cfg.LLM.Timeout,
			HTTPClient: llmHTTP,
			Logger:     logger,
		})
	}
	if deps.Weather == nil {
		deps.Weather = web.NewWeatherClient(deps.HTTPClient, cfg.Weather.BaseURL, cfg.Weather.APIKey)
	}
	if deps.News == nil {
		deps.News = web.NewNewsClient(deps.HTTPClient, cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Country)
	}
	if deps.Desktop == nil {
		deps.Desktop = system.NewHost(system.WithLogger(logger))
	}
	if deps.LED == nil {
		deps.LED = hardware.None{}
	}
	if deps.Listener == nil {
		deps.Listener = speech.Unavailable{}
	}
	if deps.Speaker == nil {
		deps.Speaker = tts.Silent{}
	}

	store := memory.Open(cfg.MemoryFile(), cfg.NotesFile(), memory.WithLogger(logger))
	sess := session.New(cfg.Assistant.HistoryPairs)

	dispatcher := nlu.NewDispatcher(sess, deps.Fallback, logger,
		handlers.Local(handlers.LocalDeps{Desktop: deps.Desktop, Session: sess}),
		handlers.Memory(store),
		handlers.Internet(handlers.InternetDeps{
			Weather:     deps.Weather,
			News:        deps.News,
			Desktop:     deps.Desktop,
			DefaultCity: cfg.Weather.DefaultCity,
			Logger:      logger,
		}),
		handlers.Hardware(deps.LED),
	)

	return &Assistant{
		cfg:        cfg,
		store:      store,
		session:    sess,
		dispatcher: dispatcher,
		lines:      wake.NewLines(deps.In),
		out:        deps.Out,
		listener:   deps.Listener,
		voice:      tts.Tee{tts.NewConsole(deps.Out, cfg.Assistant.Name), deps.Speaker},
		notifier:   deps.Notifier,
		led:        deps.LED,
		triggers:   deps.Triggers,
		keyword:    deps.Keyword,
		runID:      runID,
		logger:     logger,
	}, nil
}

func (a *Assistant) Store() *memory.Store { return a.store }
func (a *Assistant) Session() *session.Session { return a.session }
func (a *Assistant) Dispatcher() *nlu.Dispatcher { return a.dispatcher }
func (a *Assistant) RunID() string { return a.runID }

// Process answers one input through the handler chain.
func (a *Assistant) Process(ctx context.Context, text string) string {
	return a.dispatcher.Process(ctx, text)
}

// Close releases the hardware.
func (a *Assistant) Close() error {
	return a.led.Close()
}

func (a *Assistant) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *Assistant) say(ctx context.Context, text string) {
	if err := a.voice.Speak(ctx, text); err != nil {
		a.logger.Warn("Speech output failed", "err", err)
	}
}

// Banner prints the startup header.
func (a *Assistant) Banner() {
	rule := strings.Repeat("=", 50)
	a.printf("\n%s\n%s AI ASSISTANT\n%s\n", rule, strings.ToUpper(a.cfg.Assistant.Name), rule)
	a.printf("Model: %s\n", a.cfg.LLM.Model)
	a.printf("Modes: chat (text) | wake (voice)\n%s\n", rule)
}

// ChooseMode asks for the starting mode on the input stream.
func (a *Assistant) ChooseMode(ctx context.Context) Mode {
	a.printf("\nSelect mode:\n")
	a.printf("  1. chat - Type messages (press ENTER to speak)\n")
	a.printf("  2. wake - Voice mode (%s or keyboard)\n", a.keywordTitle())
	a.printf("\nMode [chat]: ")

	choice, err := a.lines.Next(ctx)
	if err != nil {
		return ModeChat
	}
	return ParseMode(choice)
}

// Run alternates between chat and wake mode until the user exits, the
// input ends or ctx is cancelled.
func (a *Assistant) Run(ctx context.Context, mode Mode) error {
	a.logger.Info("Assistant running", "mode", mode)

	var err error
	for mode != modeExit {
		switch mode {
		case ModeWake:
			mode, err = a.wakeLoop(ctx)
		default:
			mode, err = a.chatLoop(ctx)
		}
		if err != nil {
			break
		}
		a.logger.Debug("Mode switch", "mode", mode)
	}

	a.printf("\n%s shut down. Bye!\n", a.cfg.Assistant.Name)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Assistant) keywordTitle() string {
	if a.keyword == "" {
		return "Jarvis"
	}
	return strings.ToUpper(a.keyword[:1]) + a.keyword[1:]
}
