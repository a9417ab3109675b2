package main

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/spf13/pflag"

	"iveri/internal/assistant"
	"iveri/internal/config"
	"iveri/internal/httpkit"
	"iveri/pkg/audioconv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the process exit code so deferred cleanup always happens.
func run(args []string, stdout io.Writer) int {
	flags := cli.NewFlagSet("iveri", cli.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Config file path")
	envFile := flags.StringP("env", "e", ".env", "Env file path")
	logLevel := flags.StringP("log", "l", "", "Log level (trace, debug, info, warn, error)")
	mode := flags.StringP("mode", "m", "", "Start mode: chat or wake (asks when unset)")
	proxyAddr := flags.StringP("proxy", "p", "", "Socks Proxy Address")
	say := flags.String("say", "", "Process one input and exit")
	audioFile := flags.String("audio", "", "Transcribe an audio file, process it and exit")
	_ = flags.Parse(args)

	cfg, path, err := config.Resolve(*envFile, *configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		log.Error("Bad log level", "err", err)
		return 1
	}
	logger := config.NewLogger(os.Stderr, level)
	log.SetDefault(logger)

	log.Info("Booting up", "config", path, "data", cfg.DataDir)
	for svc, ok := range cfg.Summary() {
		if !ok {
			log.Debug("Service not configured", "service", svc)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := httpkit.NewClient(httpkit.WithProxy(cfg.Proxy))
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		return 1
	}

	oneShot := *say != "" || *audioFile != ""

	p := newPlatform(cfg, logger)
	defer p.Close()

	deps := assistant.Deps{HTTPClient: httpClient, Out: stdout}
	if oneShot {
		err = p.Devices(&deps)
	} else {
		err = p.Interactive(ctx, &deps)
	}
	if err != nil {
		log.Error("Failed to start", "err", err)
		return 1
	}

	a, err := assistant.New(cfg, deps, logger)
	if err != nil {
		if deps.LED != nil {
			deps.LED.Close()
		}
		log.Error("Failed to build assistant", "err", err)
		return 1
	}
	defer a.Close()

	log.Info("Boot up - successful")

	switch {
	case *say != "":
		fmt.Fprintln(stdout, a.Process(ctx, *say))
		return 0

	case *audioFile != "":
		text, err := transcribeFile(ctx, p, *audioFile)
		if err != nil {
			log.Error("Failed to transcribe", "file", *audioFile, "err", err)
			return 1
		}
		fmt.Fprintf(stdout, "(You said: %s)\n", text)
		fmt.Fprintln(stdout, a.Process(ctx, text))
		return 0
	}

	a.Banner()

	if *mode == "" {
		*mode = cfg.Assistant.Mode
	}
	m := assistant.ParseMode(*mode)
	if *mode == "" {
		m = a.ChooseMode(ctx)
	}

	if err := a.Run(ctx, m); err != nil {
		log.Error("Assistant stopped", "err", err)
		return 1
	}
	return 0
}

func transcribeFile(ctx context.Context, p *platform, path string) (string, error) {
	tr, err := p.Transcriber()
	if err != nil {
		return "", err
	}

	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{})
	if err != nil {
		return "", err
	}

	return tr.Transcribe(ctx, pcm)
}
