// Package system performs the desktop side effects behind local commands:
// launching URLs, apps and folders, screenshots, screen lock, volume and a
// few read-only probes.
package system

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"iveri/internal/audio/pulse"
)

var ErrUnsupported = errors.New("not supported on this system")

type Battery struct {
	Percent  int
	Charging bool
}

// Desktop is the set of side effects local commands may trigger.
type Desktop interface {
	OpenURL(ctx context.Context, url string) error
	OpenApp(ctx context.Context, app string) error
	OpenFolder(ctx context.Context, folder string) (string, error)
	Screenshot(ctx context.Context) (string, error)
	LockScreen(ctx context.Context) error
	ChangeVolume(ctx context.Context, delta int) error
	SetMute(ctx context.Context, mute bool) error
	IPAddress(ctx context.Context) (string, error)
	Battery(ctx context.Context) (Battery, error)
	CPUTemperature(ctx context.Context) (float64, error)
}

// Exec runs a command. Start launches without waiting; Run waits.
type Exec interface {
	Start(name string, args ...string) error
	Run(ctx context.Context, name string, args ...string) error
	LookPath(name string) (string, error)
}

type osExec struct{}

func (osExec) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

func (osExec) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osExec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

type Option func(*Host)

func WithExec(e Exec) Option       { return func(h *Host) { h.exec = e } }
func WithGOOS(goos string) Option  { return func(h *Host) { h.goos = goos } }
func WithHome(dir string) Option   { return func(h *Host) { h.home = dir } }
func WithSysfs(root string) Option { return func(h *Host) { h.sysfs = root } }
func WithPulse(p *pulse.Client) Option {
	return func(h *Host) { h.pulse = p }
}
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// Host is the Desktop of the machine the assistant runs on.
type Host struct {
	exec   Exec
	goos   string
	home   string
	sysfs  string
	pulse  *pulse.Client
	now    func() time.Time
	logger *log.Logger
}

func NewHost(opts ...Option) *Host {
	h := &Host{
		exec:   osExec{},
		goos:   runtime.GOOS,
		sysfs:  "/sys",
		now:    time.Now,
		logger: log.Default(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		h.home = home
	}
	for _, o := range opts {
		o(h)
	}
	if h.pulse == nil && h.goos == "linux" {
		h.pulse = pulse.New()
	}
	return h
}

func (h *Host) OpenURL(_ context.Context, url string) error {
	h.logger.Debug("Opening url", "url", url)

	switch h.goos {
	case "linux", "freebsd", "openbsd":
		return h.exec.Start("xdg-open", url)
	case "darwin":
		return h.exec.Start("open", url)
	case "windows":
		return h.exec.Start("rundll32", "url.dll,FileProtocolHandler", url)
	}
	return ErrUnsupported
}

// Apps known to OpenApp.
const (
	AppCalculator  = "calculator"
	AppNotepad     = "notepad"
	AppTerminal    = "terminal"
	AppFileManager = "file manager"
	AppSettings    = "settings"
)

var appCommands = map[string]map[string][]string{
	"linux": {
		AppCalculator:  {"gnome-calculator"},
		AppNotepad:     {"gnome-text-editor"},
		AppTerminal:    {"x-terminal-emulator"},
		AppFileManager: {"xdg-open", "~"},
		AppSettings:    {"gnome-control-center"},
	},
	"darwin": {
		AppCalculator:  {"open", "-a", "Calculator"},
		AppNotepad:     {"open", "-a", "TextEdit"},
		AppTerminal:    {"open", "-a", "Terminal"},
		AppFileManager: {"open", "~"},
		AppSettings:    {"open", "-a", "System Settings"},
	},
	"windows": {
		AppCalculator:  {"calc"},
		AppNotepad:     {"notepad"},
		AppTerminal:    {"cmd", "/c", "start", "cmd"},
		AppFileManager: {"explorer", "~"},
		AppSettings:    {"cmd", "/c", "start", "ms-settings:"},
	},
}

func (h *Host) OpenApp(_ context.Context, app string) error {
	argv, ok := appCommands[h.goos][app]
	if !ok {
		return fmt.Errorf("open %s: %w", app, ErrUnsupported)
	}

	args := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		if a == "~" {
			a = h.home
		}
		args = append(args, a)
	}

	h.logger.Debug("Launching app", "app", app, "cmd", argv[0])
	return h.exec.Start(argv[0], args...)
}

// Folder resolves a well-known folder name ("downloads", "documents",
// "desktop", "pictures") under the home directory.
func (h *Host) Folder(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return h.home
	}
	return filepath.Join(h.home, strings.ToUpper(name[:1])+name[1:])
}

func (h *Host) OpenFolder(ctx context.Context, folder string) (string, error) {
	path := h.Folder(folder)
	if err := h.OpenURL(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// Screenshot captures the screen into ~/Pictures and returns the file path.
func (h *Host) Screenshot(ctx context.Context) (string, error) {
	dir := h.Folder("pictures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "screenshot_"+h.now().Format("20060102_150405")+".png")

	var candidates [][]string
	switch h.goos {
	case "linux":
		candidates = [][]string{
			{"gnome-screenshot", "-f", path},
			{"grim", path},
			{"scrot", path},
			{"import", "-window", "root", path},
		}
	case "darwin":
		candidates = [][]string{{"screencapture", "-x", path}}
	}

	for _, c := range candidates {
		if _, err := h.exec.LookPath(c[0]); err != nil {
			continue
		}
		if err := h.exec.Run(ctx, c[0], c[1:]...); err != nil {
			return "", fmt.Errorf("%s: %w", c[0], err)
		}
		return path, nil
	}

	return "", ErrUnsupported
}

func (h *Host) LockScreen(ctx context.Context) error {
	switch h.goos {
	case "linux":
		return h.exec.Run(ctx, "loginctl", "lock-session")
	case "darwin":
		return h.exec.Run(ctx, "pmset", "displaysleepnow")
	case "windows":
		return h.exec.Run(ctx, "rundll32.exe", "user32.dll,LockWorkStation")
	}
	return ErrUnsupported
}

func (h *Host) ChangeVolume(ctx context.Context, delta int) error {
	if h.pulse == nil {
		return ErrUnsupported
	}
	return h.pulse.ChangeVolume(ctx, delta)
}

func (h *Host) SetMute(ctx context.Context, mute bool) error {
	if h.pulse == nil {
		return ErrUnsupported
	}
	return h.pulse.SetMute(ctx, mute)
}

// IPAddress returns the local address of the default route. Dialing UDP
// sends no packets.
func (h *Host) IPAddress(ctx context.Context) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("resolve local address: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", ErrUnsupported
	}
	return addr.IP.String(), nil
}

func (h *Host) Battery(_ context.Context) (Battery, error) {
	matches, _ := filepath.Glob(filepath.Join(h.sysfs, "class", "power_supply", "BAT*"))
	for _, dir := range matches {
		capacity, err := readInt(filepath.Join(dir, "capacity"))
		if err != nil {
			continue
		}
		status, _ := os.ReadFile(filepath.Join(dir, "status"))
		s := strings.TrimSpace(string(status))
		return Battery{
			Percent:  capacity,
			Charging: s == "Charging" || s == "Full",
		}, nil
	}
	return Battery{}, ErrUnsupported
}

func (h *Host) CPUTemperature(_ context.Context) (float64, error) {
	milli, err := readInt(filepath.Join(h.sysfs, "class", "thermal", "thermal_zone0", "temp"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrUnsupported
		}
		return 0, err
	}
	return float64(milli) / 1000, nil
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
