// Package stt turns recorded speech into text, either locally with
// whisper.cpp or through the OpenAI transcription API.
package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"iveri/pkg/audioconv"
)

var (
	ErrNoAudio       = errors.New("no audio samples provided")
	ErrNotConfigured = errors.New("speech recognition not configured")
)

// Transcriber converts mono 16 kHz PCM into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm16k []float32) (string, error)
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// OpenAI uploads the utterance as WAV to the transcription endpoint.
type OpenAI struct {
	api      openai.Client
	model    string
	language string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		api:      openai.NewClient(opts...),
		model:    cfg.Model,
		language: cfg.Language,
	}, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, pcm16k []float32) (string, error) {
	if len(pcm16k) == 0 {
		return "", ErrNoAudio
	}

	tmp, err := os.CreateTemp("", "iveri-*.wav")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := audioconv.EncodeWAV(tmp, pcm16k, audioconv.TargetRate); err != nil {
		return "", err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(tmp, "speech.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" && o.language != "auto" {
		params.Language = openai.String(o.language)
	}

	res, err := o.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}

type EngineConfig struct {
	// Engine is "whisper" (the default), "openai" or "none".
	Engine    string
	ModelPath string
	Language  string

	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New builds the configured engine. The returned close func releases a
// loaded model and is never nil.
func New(cfg EngineConfig) (Transcriber, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Engine {
	case "whisper", "":
		w, err := NewWhisper(cfg.ModelPath, Options{Language: cfg.Language})
		if err != nil {
			return nil, nop, err
		}
		return w, w.Close, nil

	case "openai":
		o, err := NewOpenAI(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Language:   cfg.Language,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			return nil, nop, err
		}
		return o, nop, nil

	case "none":
		return nil, nop, ErrNotConfigured
	}

	return nil, nop, fmt.Errorf("unknown speech engine %q", cfg.Engine)
}
