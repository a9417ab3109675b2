package speech

import (
	"fmt"

	"iveri/internal/config"
	"iveri/internal/httpkit"
	"iveri/pkg/stt"
)

// NewTranscriber builds the speech-to-text engine named by cfg.Speech. Cloud
// uploads get the language model's timeout rather than the lookup one.
func NewTranscriber(cfg *config.Config) (stt.Transcriber, func() error, error) {
	ec := stt.EngineConfig{
		Engine:    cfg.Speech.Engine,
		ModelPath: cfg.Speech.ModelPath,
		Language:  cfg.Speech.Language,
	}

	if cfg.Speech.Engine == "openai" {
		c, err := httpkit.NewClient(httpkit.WithProxy(cfg.Proxy), httpkit.WithTimeout(cfg.LLM.Timeout))
		if err != nil {
			return nil, func() error { return nil }, fmt.Errorf("http client: %w", err)
		}
		ec.APIKey = cfg.LLM.APIKey
		ec.BaseURL = cfg.LLM.BaseURL
		ec.HTTPClient = c
	}

	return stt.New(ec)
}
