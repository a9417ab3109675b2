package handlers

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iveri/internal/hardware"
	"iveri/internal/memory"
	"iveri/internal/nlu"
	"iveri/internal/session"
	"iveri/internal/system"
	"iveri/internal/web"
)

func quietLogger() *log.Logger {
	return log.New(log.NewTextHandler(io.Discard, nil))
}

type fakeDesktop struct {
	opened  []string
	apps    []string
	folders []string
	volume  []int
	muted   []bool
	err     error
}

func (d *fakeDesktop) OpenURL(_ context.Context, url string) error {
	d.opened = append(d.opened, url)
	return d.err
}

func (d *fakeDesktop) OpenApp(_ context.Context, app string) error {
	d.apps = append(d.apps, app)
	return d.err
}

func (d *fakeDesktop) OpenFolder(_ context.Context, folder string) (string, error) {
	d.folders = append(d.folders, folder)
	return "/home/me/" + folder, d.err
}

func (d *fakeDesktop) Screenshot(context.Context) (string, error) {
	return "/home/me/Pictures/shot.png", d.err
}

func (d *fakeDesktop) LockScreen(context.Context) error { return d.err }

func (d *fakeDesktop) ChangeVolume(_ context.Context, delta int) error {
	d.volume = append(d.volume, delta)
	return d.err
}

func (d *fakeDesktop) SetMute(_ context.Context, mute bool) error {
	d.muted = append(d.muted, mute)
	return d.err
}

func (d *fakeDesktop) IPAddress(context.Context) (string, error) { return "192.168.1.20", d.err }

func (d *fakeDesktop) Battery(context.Context) (system.Battery, error) {
	return system.Battery{Percent: 76, Charging: false}, d.err
}

func (d *fakeDesktop) CPUTemperature(context.Context) (float64, error) { return 51.25, d.err }

type fakeWeather struct {
	city string
	w    *web.Weather
	err  error
}

func (f *fakeWeather) Current(_ context.Context, city string) (*web.Weather, error) {
	f.city = city
	if f.err != nil {
		return nil, f.err
	}
	w := *f.w
	w.City = city
	return &w, nil
}

type fakeNews struct {
	category string
	titles   []string
	err      error
}

func (f *fakeNews) Headlines(_ context.Context, category string) ([]string, error) {
	f.category = category
	return f.titles, f.err
}

type fakeLED struct {
	on     bool
	blinks int
}

func (l *fakeLED) Set(_ context.Context, on bool) error {
	l.on = on
	return nil
}

func (l *fakeLED) Blink(_ context.Context, times int, _ time.Duration) error {
	l.blinks += times
	return nil
}

func (l *fakeLED) State(context.Context) (bool, error) { return l.on, nil }

func (l *fakeLED) Close() error { return nil }

func newStore(t *testing.T) *memory.Store {
	dir := t.TempDir()
	return memory.Open(filepath.Join(dir, "memory.json"), filepath.Join(dir, "notes.json"),
		memory.WithLogger(quietLogger()))
}

func try(t *testing.T, h nlu.Handler, input string) (string, bool) {
	t.Helper()
	resp, ok, err := h.TryHandle(context.Background(), input)
	require.NoError(t, err)
	return resp, ok
}

// --- memory ---

func TestMemory_Scenarios(t *testing.T) {
	store := newStore(t)
	h := Memory(store)

	resp, ok := try(t, h, "remember my favorite color is blue")
	require.True(t, ok)
	assert.Equal(t, "I'll remember that your favorite color is blue.", resp)
	v, found := store.Recall("favorite color")
	require.True(t, found)
	assert.Equal(t, "blue", v)

	resp, ok = try(t, h, "What is my favorite color?")
	require.True(t, ok)
	assert.Equal(t, "Your favorite color is blue.", resp)

	resp, ok = try(t, h, "forget my favorite color")
	require.True(t, ok)
	assert.Equal(t, "I've forgotten your favorite color.", resp)

	resp, _ = try(t, h, "what's my favorite color")
	assert.Equal(t, "I don't know your favorite color yet. Tell me to remember it!", resp)

	resp, _ = try(t, h, "forget my favorite color")
	assert.Equal(t, "I don't have anything stored for favorite color.", resp)
}

func TestMemory_RememberVariants(t *testing.T) {
	store := newStore(t)
	h := Memory(store)

	resp, ok := try(t, h, "Remember that my name is John")
	require.True(t, ok)
	assert.Contains(t, resp, "john")

	resp, ok = try(t, h, "remember my birthday")
	assert.True(t, ok)
	assert.Equal(t, rememberHelp, resp)

	resp, ok = try(t, h, "what is my")
	assert.True(t, ok)
	assert.Equal(t, recallHelp, resp)

	_, ok = try(t, h, "forget my")
	assert.False(t, ok)
}

func TestMemory_ListMemories(t *testing.T) {
	store := newStore(t)
	h := Memory(store)

	resp, _ := try(t, h, "what do you remember")
	assert.Equal(t, noMemories, resp)

	store.Remember("name", "john")
	store.Remember("city", "paris")

	resp, _ = try(t, h, "list memories")
	assert.Equal(t, "Here's what I remember about you:\n- Your city is paris\n- Your name is john", resp)
}

func TestMemory_Notes(t *testing.T) {
	store := newStore(t)
	h := Memory(store)

	resp, ok := try(t, h, "add a note buy milk")
	require.True(t, ok)
	assert.Equal(t, "Note saved: buy milk", resp)
	notes := store.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "1", notes[0].ID)
	assert.Equal(t, "buy milk", notes[0].Text)

	resp, _ = try(t, h, "take a note that I need to call mom")
	assert.Equal(t, "Note saved: i need call mom", resp)

	resp, _ = try(t, h, "make a note to buy tomatoes")
	assert.Equal(t, "Note saved: buy tomatoes", resp)

	resp, _ = try(t, h, "add a note")
	assert.Equal(t, noteHelp, resp)

	resp, _ = try(t, h, "show my notes")
	assert.Equal(t, "Your notes:\nNote 1: buy milk\nNote 2: i need call mom\nNote 3: buy tomatoes", resp)

	resp, _ = try(t, h, "delete note 1")
	assert.Equal(t, "Note 1 deleted.", resp)
	resp, _ = try(t, h, "remove note number 9")
	assert.Equal(t, "Note 9 not found.", resp)

	resp, _ = try(t, h, "add a note walk the dog")
	assert.Equal(t, "Note saved: walk the dog", resp)
	ids := []string{}
	for _, n := range store.Notes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"2", "3", "4"}, ids)

	resp, _ = try(t, h, "delete all notes")
	assert.Equal(t, notesCleared, resp)
	resp, _ = try(t, h, "read notes")
	assert.Equal(t, noNotes, resp)
}

func TestMemory_Declines(t *testing.T) {
	h := Memory(newStore(t))
	for _, in := range []string{"hello there", "what's the weather", "turn led on"} {
		_, ok := try(t, h, in)
		assert.False(t, ok, in)
	}
}

// --- internet ---

func TestWeatherCity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"what's the weather in paris?", "paris"},
		{"weather in new york today", "new york"},
		{"what is the weather for tokyo please", "tokyo"},
		{"weather at the beach", "beach"},
		{"what's the weather now", ""},
		{"weather in the theatre district", "theatre district"},
		{"weather in rome in italy", "italy"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, WeatherCity(tt.in))
		})
	}
}

func TestNewsCategory(t *testing.T) {
	tests := map[string]string{
		"tech news":              "technology",
		"latest technology news": "technology",
		"sports news":            "sports",
		"finance news":           "business",
		"business headlines":     "business",
		"celebrity news":         "entertainment",
		"health news":            "health",
		"science news":           "science",
		"what's in the news":     "general",
	}
	for in, want := range tests {
		assert.Equal(t, want, NewsCategory(in), in)
	}
}

func TestInternet_Weather(t *testing.T) {
	fw := &fakeWeather{w: &web.Weather{Description: "light rain", Temp: 12.6, FeelsLike: 10.2, Humidity: 81}}
	h := Internet(InternetDeps{Weather: fw, News: &fakeNews{}, Desktop: &fakeDesktop{}, Logger: quietLogger()})

	resp, ok := try(t, h, "What's the weather in Paris?")
	require.True(t, ok)
	assert.Equal(t, "The weather in paris is currently light rain with a temperature of 13°C, feels like 10°C. Humidity is at 81%.", resp)

	_, _ = try(t, h, "weather")
	assert.Equal(t, "London", fw.city)

	errs := map[error]string{
		web.ErrNotConfigured:   weatherNotConfigured,
		web.ErrNotFound:        "I couldn't find weather information for London. Please check the city name.",
		web.ErrTimeout:         weatherTimeout,
		errors.New("bad json"): weatherTrouble,
	}
	for err, want := range errs {
		fw.err = err
		resp, ok := try(t, h, "weather")
		assert.True(t, ok)
		assert.Equal(t, want, resp)
	}
}

func TestInternet_News(t *testing.T) {
	fn := &fakeNews{titles: []string{"Chips get faster", "Robots learn to fold laundry."}}
	h := Internet(InternetDeps{Weather: &fakeWeather{}, News: fn, Desktop: &fakeDesktop{}, Logger: quietLogger()})

	resp, ok := try(t, h, "tell me the tech news")
	require.True(t, ok)
	assert.Equal(t, "technology", fn.category)
	assert.Equal(t, "Here are the top 2 technology headlines: 1. Chips get faster. 2. Robots learn to fold laundry.", resp)

	fn.err = web.ErrNotConfigured
	resp, _ = try(t, h, "news")
	assert.Equal(t, newsNotConfigured, resp)

	fn.err = web.ErrUnavailable
	resp, _ = try(t, h, "news")
	assert.Equal(t, newsUnavailable, resp)
}

func TestInternet_Google(t *testing.T) {
	d := &fakeDesktop{}
	h := Internet(InternetDeps{Weather: &fakeWeather{}, News: &fakeNews{}, Desktop: d, Logger: quietLogger()})

	resp, ok := try(t, h, "google raspberry pi")
	require.True(t, ok)
	assert.Equal(t, "I've opened Google search for 'raspberry pi' in your browser.", resp)
	assert.Equal(t, []string{web.GoogleSearchURL("raspberry pi")}, d.opened)

	_, ok = try(t, h, "open google please")
	assert.False(t, ok)
}

// --- hardware ---

func TestHardware_Absent(t *testing.T) {
	h := Hardware(hardware.None{})

	for _, in := range []string{"turn led on", "turn the light off", "blink the led", "toggle lights", "led status"} {
		resp, ok := try(t, h, in)
		assert.True(t, ok, in)
		assert.Equal(t, HardwareUnavailable, resp, in)
	}
}

func TestHardware_WithLED(t *testing.T) {
	led := &fakeLED{}
	h := Hardware(led)

	tests := []struct {
		in   string
		want string
	}{
		{"turn led on", "LED is now on."},
		{"what is the led status", "The LED is currently on."},
		{"switch the lights off", "LED is now off."},
		{"toggle the light", "LED is now on."},
		{"blink the led", "LED blinked 3 times."},
	}
	for _, tt := range tests {
		resp, ok := try(t, h, tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, resp, tt.in)
	}
	assert.True(t, led.on)
	assert.Equal(t, 3, led.blinks)
}

func TestHardware_WholeWordsOnly(t *testing.T) {
	h := Hardware(&fakeLED{})

	for _, in := range []string{
		"the flight was cancelled once",
		"delightful",
		"led zeppelin",
		"turn on the tv",
	} {
		_, ok := try(t, h, in)
		assert.False(t, ok, in)
	}
}

// --- local ---

func TestLocal_Commands(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	d := &fakeDesktop{}
	sess := session.New(2)
	sess.Append("hi", "hello")
	h := Local(LocalDeps{Desktop: d, Session: sess, Now: func() time.Time { return now }})

	tests := []struct {
		in   string
		want string
	}{
		{"open youtube", "Opening YouTube."},
		{"go to github", "Opening GitHub."},
		{"open calculator", "Opening Calculator."},
		{"launch the file manager", "Opening File Manager."},
		{"open downloads", "Opening your Downloads folder."},
		{"search youtube for python tutorial", "Searching YouTube for 'python tutorial'."},
		{"youtube search lo-fi beats", "Searching YouTube for 'lo-fi beats'."},
		{"search cats on youtube", "Searching YouTube for 'cats'."},
		{"search google for raspberry pi", "Searching Google for 'raspberry pi'."},
		{"search for golang generics", "Searching Google for 'golang generics'."},
		{"wikipedia alan turing", "Opening Wikipedia for 'alan turing'."},
		{"what time is it", "It's 2:05 PM."},
		{"what's the date today", "Today is Saturday, March 9, 2024."},
		{"what day is it", "Today is Saturday."},
		{"take a screenshot", "Screenshot saved to /home/me/Pictures/shot.png."},
		{"lock screen", "Locking the screen."},
		{"volume up", "Volume increased."},
		{"volume down", "Volume decreased."},
		{"mute", "Sound muted."},
		{"unmute", "Sound unmuted."},
		{"what's my ip address", "Your IP address is 192.168.1.20."},
		{"battery", "Battery is at 76% and not charging."},
		{"cpu temperature", "CPU temperature is 51.2°C."},
		{"clear history", HistoryCleared},
	}

	for _, tt := range tests {
		resp, ok := try(t, h, tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, resp, tt.in)
	}

	assert.Zero(t, sess.Len())
	assert.Equal(t, []int{10, -10}, d.volume)
	assert.Equal(t, []bool{true, false}, d.muted)
	assert.Contains(t, d.opened, web.YouTubeSearchURL("python tutorial"))
	assert.Contains(t, d.opened, web.WikipediaURL("alan turing"))
	assert.Equal(t, []string{system.AppCalculator, system.AppFileManager}, d.apps)

	resp, ok := try(t, h, "help")
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(resp, "I can help with:"))
}

func TestLocal_Failures(t *testing.T) {
	d := &fakeDesktop{err: system.ErrUnsupported}
	h := Local(LocalDeps{Desktop: d})

	resp, ok := try(t, h, "lock screen")
	assert.True(t, ok)
	assert.Equal(t, Unsupported, resp)

	d.err = errors.New("exec: xdg-open not found")
	_, ok, err := h.TryHandle(context.Background(), "open reddit")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestLocal_DeclinesOtherVocabularies(t *testing.T) {
	h := Local(LocalDeps{Desktop: &fakeDesktop{}})

	for _, in := range []string{
		"remember my favorite color is blue",
		"what is my favorite color",
		"add a note buy milk",
		"what's the weather in paris",
		"google golang",
		"turn led on",
		"tell me a joke",
	} {
		_, ok := try(t, h, in)
		assert.False(t, ok, in)
	}
}
