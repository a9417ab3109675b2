package main

import (
	"context"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cli "github.com/spf13/pflag"

	"iveri/internal/assistant"
	"iveri/internal/bus"
	"iveri/internal/config"
	"iveri/internal/speech"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := cli.NewFlagSet("iveri-shard", cli.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Config file path")
	envFile := flags.StringP("env", "e", ".env", "Env file path")
	url := flags.StringP("url", "u", "", "Url of bus")
	logLevel := flags.StringP("log", "l", "", "Log level")
	_ = flags.Parse(args)

	cfg, _, err := config.Resolve(*envFile, *configPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *url != "" {
		cfg.Bus.URL = *url
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		log.Error("Bad log level", "err", err)
		return 1
	}
	logger := config.NewLogger(os.Stdout, level)
	log.SetDefault(logger)

	log.Info("Starting IVERI shard", "bus", cfg.Bus.URL, "name", cfg.Bus.Shard)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The shard has no terminal, and keeps its facts and notes apart from
	// an interactive run on the same machine.
	cfg = cfg.ForShard()
	log.Info("Shard store", "data", cfg.DataDir)

	a, err := assistant.New(cfg, assistant.Deps{In: strings.NewReader("")}, logger)
	if err != nil {
		log.Error("Failed to build assistant", "err", err)
		return 1
	}
	defer a.Close()

	tr, closeSTT, err := speech.NewTranscriber(cfg)
	if err != nil {
		log.Warn("Audio requests disabled", "err", err)
	}
	defer closeSTT()

	b, err := bus.Dial(ctx, cfg.Bus.URL)
	if err != nil {
		log.Error("Failed to connect to bus", "err", err)
		return 1
	}

	shard := bus.NewShard(b, bus.ShardConfig{
		Name:        cfg.Bus.Shard,
		Processor:   a,
		Transcriber: tr,
		Logger:      logger,
	})
	if err := shard.Run(ctx); err != nil {
		log.Error("Bus connection lost", "err", err)
		return 1
	}
	return 0
}
