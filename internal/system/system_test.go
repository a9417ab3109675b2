package system

import (
	"context"
	"errors"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iveri/internal/audio/pulse"
)

type recExec struct {
	started []string
	ran     []string
	have    map[string]bool
	runErr  error
}

func (r *recExec) Start(name string, args ...string) error {
	r.started = append(r.started, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil
}

func (r *recExec) Run(_ context.Context, name string, args ...string) error {
	r.ran = append(r.ran, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return r.runErr
}

func (r *recExec) LookPath(name string) (string, error) {
	if r.have[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func TestOpenURL_PerPlatform(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open https://example.com"},
		{"darwin", "open https://example.com"},
		{"windows", "rundll32 url.dll,FileProtocolHandler https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			ex := &recExec{}
			h := NewHost(WithExec(ex), WithGOOS(tt.goos), WithPulse(pulse.NewWithRunner(nil)))
			require.NoError(t, h.OpenURL(context.Background(), "https://example.com"))
			assert.Equal(t, []string{tt.want}, ex.started)
		})
	}

	h := NewHost(WithExec(&recExec{}), WithGOOS("plan9"))
	assert.ErrorIs(t, h.OpenURL(context.Background(), "x"), ErrUnsupported)
}

func TestOpenApp(t *testing.T) {
	ex := &recExec{}
	h := NewHost(WithExec(ex), WithGOOS("linux"), WithHome("/home/me"))

	require.NoError(t, h.OpenApp(context.Background(), AppCalculator))
	require.NoError(t, h.OpenApp(context.Background(), AppFileManager))
	assert.Equal(t, []string{"gnome-calculator", "xdg-open /home/me"}, ex.started)

	assert.ErrorIs(t, h.OpenApp(context.Background(), "photoshop"), ErrUnsupported)
}

func TestOpenFolder(t *testing.T) {
	ex := &recExec{}
	h := NewHost(WithExec(ex), WithGOOS("linux"), WithHome("/home/me"))

	path, err := h.OpenFolder(context.Background(), "downloads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/me", "Downloads"), path)
	assert.Equal(t, []string{"xdg-open " + path}, ex.started)
}

func TestScreenshot_UsesFirstAvailableTool(t *testing.T) {
	home := t.TempDir()
	ex := &recExec{have: map[string]bool{"grim": true, "scrot": true}}
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	h := NewHost(WithExec(ex), WithGOOS("linux"), WithHome(home),
		WithClock(func() time.Time { return now }))

	path, err := h.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Pictures", "screenshot_20240309_140506.png"), path)
	assert.Equal(t, []string{"grim " + path}, ex.ran)

	ex.have = nil
	_, err = h.Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestVolume_WithoutPulse(t *testing.T) {
	h := NewHost(WithExec(&recExec{}), WithGOOS("windows"))
	assert.ErrorIs(t, h.ChangeVolume(context.Background(), 10), ErrUnsupported)
	assert.ErrorIs(t, h.SetMute(context.Background(), true), ErrUnsupported)
}

func TestVolume_ThroughPulse(t *testing.T) {
	var calls []string
	pa := pulse.NewWithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil, nil
	})
	h := NewHost(WithExec(&recExec{}), WithGOOS("linux"), WithPulse(pa))

	require.NoError(t, h.ChangeVolume(context.Background(), -10))
	require.NoError(t, h.SetMute(context.Background(), true))
	assert.Equal(t, []string{
		"pactl set-sink-volume @DEFAULT_SINK@ -10%",
		"pactl set-sink-mute @DEFAULT_SINK@ 1",
	}, calls)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBatteryAndTemperature(t *testing.T) {
	sysfs := t.TempDir()
	h := NewHost(WithExec(&recExec{}), WithSysfs(sysfs))

	_, err := h.Battery(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = h.CPUTemperature(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)

	writeFile(t, filepath.Join(sysfs, "class", "power_supply", "BAT0", "capacity"), "87\n")
	writeFile(t, filepath.Join(sysfs, "class", "power_supply", "BAT0", "status"), "Charging\n")
	writeFile(t, filepath.Join(sysfs, "class", "thermal", "thermal_zone0", "temp"), "48500\n")

	b, err := h.Battery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Battery{Percent: 87, Charging: true}, b)

	temp, err := h.CPUTemperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.5, temp, 0.001)
}

func TestNoCgoAudioImports(t *testing.T) {
	fset := token.NewFileSet()
	for _, dir := range []string{".", "../audio/pulse"} {
		files, err := filepath.Glob(filepath.Join(dir, "*.go"))
		require.NoError(t, err)

		for _, f := range files {
			if strings.HasSuffix(f, "_test.go") {
				continue
			}
			af, err := parser.ParseFile(fset, f, nil, parser.ImportsOnly)
			require.NoError(t, err)
			for _, imp := range af.Imports {
				path := strings.Trim(imp.Path.Value, `"`)
				assert.NotEqual(t, "C", path, f)
				assert.NotEqual(t, "iveri/internal/audio", path, f)
				assert.NotContains(t, path, "portaudio", f)
			}
		}
	}
}
