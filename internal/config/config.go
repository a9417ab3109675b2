// Package config loads IVERI settings from an optional YAML file, a .env
// file and the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order used when no
// explicit path is given.
func DefaultSearchPaths() []string {
	paths := []string{"iveri.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "iveri", "iveri.yaml"))
	}

	return append(paths, "/etc/iveri/iveri.yaml")
}

// FindConfig locates a config file. An explicit path must exist; otherwise
// the first existing entry of DefaultSearchPaths is returned. An empty
// result with a nil error means no file was found and defaults apply.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Proxy     string          `yaml:"proxy"`
	Assistant AssistantConfig `yaml:"assistant"`
	LLM       LLMConfig       `yaml:"llm"`
	Weather   WeatherConfig   `yaml:"weather"`
	News      NewsConfig      `yaml:"news"`
	Speech    SpeechConfig    `yaml:"speech"`
	TTS       TTSConfig       `yaml:"tts"`
	Wake      WakeConfig      `yaml:"wake"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Bus       BusConfig       `yaml:"bus"`
}

type AssistantConfig struct {
	Name string `yaml:"name"`
	// Mode is the initial interactive mode: "chat" or "wake". Empty asks
	// on startup.
	Mode string `yaml:"mode"`
	// HistoryPairs caps the conversation session fed to the language model.
	HistoryPairs int `yaml:"history_pairs"`
}

type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// MaxTokens caps the completion; zero leaves it unset.
	MaxTokens int64         `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// WeatherConfig targets the OpenWeatherMap current weather API.
type WeatherConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	DefaultCity string        `yaml:"default_city"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NewsConfig targets the NewsAPI top-headlines endpoint.
type NewsConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Country string        `yaml:"country"`
	Timeout time.Duration `yaml:"timeout"`
}

type SpeechConfig struct {
	// Engine selects speech-to-text: "whisper" (local model), "openai" or "none".
	Engine    string `yaml:"engine"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	// WaitTimeout bounds how long the listener waits for speech to start.
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	// PhraseLimit bounds the length of one utterance.
	PhraseLimit time.Duration `yaml:"phrase_limit"`
	// Duck lowers other audio streams while listening.
	Duck bool `yaml:"duck"`
	// KeywordWindow is the fixed span recorded per wake-word check.
	KeywordWindow time.Duration `yaml:"keyword_window"`
}

type TTSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Voice   string `yaml:"voice"`
	Rate    int    `yaml:"rate"`
	Chime   string `yaml:"chime"`
}

type WakeConfig struct {
	// Source is "keyboard", "ipc", "button" or "keyword".
	Source string `yaml:"source"`
	Word   string `yaml:"word"`
	Socket string `yaml:"socket"`
}

type HardwareConfig struct {
	// Driver is "auto", "gpio", "remote" or "none".
	Driver    string `yaml:"driver"`
	LEDPin    int    `yaml:"led_pin"`
	ButtonPin int    `yaml:"button_pin"`
	BuzzerPin int    `yaml:"buzzer_pin"`
	HubURL    string `yaml:"hub_url"`
	HubShard  string `yaml:"hub_shard"`
	Device    string `yaml:"device"`
}

type BusConfig struct {
	URL   string `yaml:"url"`
	Shard string `yaml:"shard"`
	// DataDir holds the shard's facts and notes. Empty means
	// <data_dir>/shard; it must differ from the interactive data_dir.
	DataDir string `yaml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := "data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, "iveri", "data")
	}

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		Assistant: AssistantConfig{
			Name:         "IVERI",
			HistoryPairs: 6,
		},
		LLM: LLMConfig{
			Model:   "gpt-5-nano",
			Timeout: 60 * time.Second,
		},
		Weather: WeatherConfig{
			BaseURL:     "https://api.openweathermap.org",
			DefaultCity: "London",
			Timeout:     10 * time.Second,
		},
		News: NewsConfig{
			BaseURL: "https://newsapi.org",
			Country: "us",
			Timeout: 10 * time.Second,
		},
		Speech: SpeechConfig{
			Engine:        "whisper",
			ModelPath:     "third_party/whisper.cpp/models/ggml-base.en.bin",
			Language:      "en",
			WaitTimeout:   5 * time.Second,
			PhraseLimit:   10 * time.Second,
			KeywordWindow: 2 * time.Second,
		},
		TTS: TTSConfig{
			Enabled: true,
			Voice:   "en",
			Rate:    150,
			Chime:   "beep.mp3",
		},
		Wake: WakeConfig{
			Source: "keyboard",
			Word:   "jarvis",
			Socket: "/tmp/iveri.sock",
		},
		Hardware: HardwareConfig{
			Driver:    "auto",
			LEDPin:    17,
			ButtonPin: 27,
			BuzzerPin: 22,
			HubShard:  "VERTEX",
			Device:    "LED",
		},
		Bus: BusConfig{
			URL:   "ws://localhost:8092/ws",
			Shard: "iveri",
		},
	}
}

// Load reads a YAML file over the defaults. ${VAR} references are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve loads the .env file (missing is fine), then the config file if
// one is found, then applies environment overrides.
func Resolve(envFile, explicit string) (*Config, string, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	path, err := FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg := Default()
	if path != "" {
		if cfg, err = Load(path); err != nil {
			return nil, "", err
		}
	}

	cfg.ApplyEnv()
	return cfg, path, nil
}

// ApplyEnv overrides secrets and paths from the environment. Environment
// values win over the file so keys can stay in .env.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&c.LLM.APIKey, "OPENAI_API_KEY")
	override(&c.Weather.APIKey, "WEATHER_API_KEY")
	override(&c.News.APIKey, "NEWS_API_KEY")
	override(&c.DataDir, "IVERI_DATA_DIR")
}

func (c *Config) MemoryFile() string {
	return filepath.Join(c.DataDir, "memory.json")
}

func (c *Config) NotesFile() string {
	return filepath.Join(c.DataDir, "notes.json")
}

// ForShard returns a copy of c whose store files live in the shard's own
// data directory, so a shard and an interactive run never share files.
func (c *Config) ForShard() *Config {
	sc := *c
	sc.DataDir = c.Bus.DataDir
	if sc.DataDir == "" || filepath.Clean(sc.DataDir) == filepath.Clean(c.DataDir) {
		sc.DataDir = filepath.Join(c.DataDir, "shard")
	}
	return &sc
}

// Summary lists which optional services are configured, without secrets.
func (c *Config) Summary() map[string]bool {
	return map[string]bool{
		"openai":  c.LLM.APIKey != "",
		"weather": c.Weather.APIKey != "",
		"news":    c.News.APIKey != "",
	}
}
