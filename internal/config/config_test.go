package config

import (
	log "log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindConfig_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iveri.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	got, err := FindConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/iveri.yaml")
	assert.Error(t, err)
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "iveri.yaml"), []byte("{}\n"), 0o600))
	t.Chdir(dir)

	got, err := FindConfig("")
	require.NoError(t, err)
	assert.Equal(t, "iveri.yaml", got)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iveri.yaml")
	yml := `
assistant:
  history_pairs: 3
weather:
  default_city: Paris
  timeout: 3s
hardware:
  driver: none
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Assistant.HistoryPairs)
	assert.Equal(t, "IVERI", cfg.Assistant.Name)
	assert.Equal(t, "Paris", cfg.Weather.DefaultCity)
	assert.Equal(t, 3*time.Second, cfg.Weather.Timeout)
	assert.Equal(t, "none", cfg.Hardware.Driver)
	assert.Equal(t, 17, cfg.Hardware.LEDPin)
	assert.Equal(t, "gpt-5-nano", cfg.LLM.Model)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iveri.yaml")
	require.NoError(t, os.WriteFile(path, []byte("news:\n  api_key: ${IVERI_TEST_NEWS}\n"), 0o600))
	t.Setenv("IVERI_TEST_NEWS", "secret123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.News.APIKey)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iveri.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assistant: [\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEATHER_API_KEY", "")
	t.Setenv("IVERI_DATA_DIR", "/tmp/iveri-data")

	cfg := Default()
	cfg.Weather.APIKey = "from-file"
	cfg.ApplyEnv()

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "from-file", cfg.Weather.APIKey)
	assert.Equal(t, "/tmp/iveri-data/memory.json", cfg.MemoryFile())
	assert.Equal(t, "/tmp/iveri-data/notes.json", cfg.NotesFile())
	assert.Equal(t, map[string]bool{"openai": true, "weather": true, "news": cfg.News.APIKey != ""}, cfg.Summary())
}

func TestForShard(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/srv/iveri"

	sc := cfg.ForShard()
	assert.Equal(t, "/srv/iveri/shard/memory.json", sc.MemoryFile())
	assert.Equal(t, "/srv/iveri/shard/notes.json", sc.NotesFile())
	assert.Equal(t, "/srv/iveri", cfg.DataDir)

	cfg.Bus.DataDir = "/var/lib/iveri-shard"
	assert.Equal(t, "/var/lib/iveri-shard/notes.json", cfg.ForShard().NotesFile())

	cfg.Bus.DataDir = "/srv/iveri/"
	assert.Equal(t, "/srv/iveri/shard", cfg.ForShard().DataDir)
}

func TestResolve_EnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NEWS_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("NEWS_API_KEY", "")
	os.Unsetenv("NEWS_API_KEY")

	cfg, path, err := Resolve(envFile, "")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "from-dotenv", cfg.News.APIKey)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"", log.LevelInfo, false},
		{"INFO", log.LevelInfo, false},
		{" debug ", log.LevelDebug, false},
		{"trace", LevelTrace, false},
		{"warning", log.LevelWarn, false},
		{"error", log.LevelError, false},
		{"verbose", log.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
