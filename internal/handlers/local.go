// Package handlers holds the keyword handlers the dispatcher tries in
// order: local commands, memory, internet lookups and hardware.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"iveri/internal/nlu"
	"iveri/internal/session"
	"iveri/internal/system"
	"iveri/internal/web"
)

const (
	Unsupported    = "Sorry, that isn't supported on this system."
	HistoryCleared = "Conversation history cleared."
)

const helpText = `I can help with:
- Websites: open youtube, google, github, gmail and more
- Apps: open calculator, notepad, terminal, file manager, settings
- Search: search youtube for cats, search google for recipes, wikipedia alan turing
- Time: what time is it, what's the date, what day is it
- Folders: open downloads, documents or desktop
- System: screenshot, lock screen, volume up/down, mute, ip address, battery, cpu temperature
- Memory: remember my name is John, what is my name, forget my name, what do you remember
- Notes: add a note buy milk, show notes, delete note 1, clear notes
- Internet: weather in Paris, tech news, google golang
- Hardware: turn the led on/off, blink the led, led status
- Anything else goes to the language model. Say 'clear history' to start over.`

type site struct {
	key  string
	name string
	url  string
}

var sites = []site{
	{"youtube", "YouTube", "https://www.youtube.com"},
	{"google", "Google", "https://www.google.com"},
	{"facebook", "Facebook", "https://www.facebook.com"},
	{"twitter", "Twitter", "https://twitter.com"},
	{"github", "GitHub", "https://github.com"},
	{"instagram", "Instagram", "https://www.instagram.com"},
	{"linkedin", "LinkedIn", "https://www.linkedin.com"},
	{"reddit", "Reddit", "https://www.reddit.com"},
	{"whatsapp", "WhatsApp", "https://web.whatsapp.com"},
	{"gmail", "Gmail", "https://mail.google.com"},
	{"spotify", "Spotify", "https://open.spotify.com"},
	{"netflix", "Netflix", "https://www.netflix.com"},
}

var apps = []struct {
	key  string
	name string
}{
	{system.AppCalculator, "Calculator"},
	{system.AppNotepad, "Notepad"},
	{system.AppTerminal, "Terminal"},
	{system.AppFileManager, "File Manager"},
	{system.AppSettings, "Settings"},
}

var folders = []string{"downloads", "documents", "desktop"}

type LocalDeps struct {
	Desktop system.Desktop
	Session *session.Session
	Now     func() time.Time
}

// Local answers commands that need no network: launching sites, apps and
// folders, web searches in the browser, clock questions and system actions.
func Local(deps LocalDeps) *nlu.RuleSet {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	l := localRules{deps}

	opening := nlu.Words("open", "launch", "start", "show")

	rules := []nlu.Rule{
		{Name: "clear history", Match: nlu.Contains("clear history", "clear conversation", "reset conversation"), Act: l.clearHistory},
		{Name: "help", Match: nlu.Equals("help", "what can you do", "commands"), Act: nlu.Reply(helpText)},

		// Searches precede sites so "search youtube for x" is not "open youtube".
		{Name: "youtube search", Match: nlu.All(nlu.Contains("youtube"), nlu.Words("search")), Act: l.youtubeSearch},
		{Name: "wikipedia", Match: nlu.Contains("wikipedia"), Act: l.wikipedia},
		{Name: "google search", Match: nlu.Contains("search google for", "search for"), Act: l.googleSearch},

		{Name: "time", Match: nlu.Any(nlu.Contains("what time", "current time", "time is it"), nlu.Equals("time")), Act: l.clock},
		{Name: "date", Match: nlu.Contains("what's the date", "what is the date", "today's date", "what date"), Act: l.date},
		{Name: "day", Match: nlu.Contains("what day"), Act: l.day},

		{Name: "screenshot", Match: nlu.Contains("screenshot", "screen shot"), Act: l.screenshot},
		{Name: "lock screen", Match: nlu.Contains("lock screen", "lock the screen", "lock computer", "lock my computer"), Act: l.lock},
		{Name: "volume up", Match: nlu.Contains("volume up", "increase volume", "turn up the volume", "louder"), Act: l.volume(10)},
		{Name: "volume down", Match: nlu.Contains("volume down", "decrease volume", "turn down the volume", "quieter"), Act: l.volume(-10)},
		{Name: "unmute", Match: nlu.Words("unmute"), Act: l.mute(false)},
		{Name: "mute", Match: nlu.Words("mute"), Act: l.mute(true)},
		{Name: "ip address", Match: nlu.Contains("ip address", "my ip"), Act: l.ip},
		{Name: "battery", Match: nlu.Words("battery"), Act: l.battery},
		{Name: "cpu temperature", Match: nlu.All(nlu.Words("cpu"), nlu.Contains("temp")), Act: l.cpuTemp},
	}

	for _, f := range folders {
		rules = append(rules, nlu.Rule{Name: f, Match: nlu.All(opening, nlu.Words(f)), Act: l.folder(f)})
	}
	for _, a := range apps {
		rules = append(rules, nlu.Rule{Name: a.key, Match: nlu.All(opening, nlu.Contains(a.key)), Act: l.app(a.key, a.name)})
	}
	for _, s := range sites {
		rules = append(rules, nlu.Rule{
			Name:  s.key,
			Match: nlu.Contains("open "+s.key, "go to "+s.key, "launch "+s.key),
			Act:   l.site(s),
		})
	}

	return nlu.NewRuleSet("local", rules...)
}

type localRules struct {
	LocalDeps
}

// done turns a desktop error into a reply. Unsupported actions are
// answered; other failures propagate to the dispatcher.
func done(text string, err error) (string, bool, error) {
	if errors.Is(err, system.ErrUnsupported) {
		return Unsupported, true, nil
	}
	if err != nil {
		return "", true, err
	}
	return text, true, nil
}

func (l localRules) clearHistory(context.Context, string) (string, bool, error) {
	if l.Session != nil {
		l.Session.Clear()
	}
	return HistoryCleared, true, nil
}

// YouTubeQuery extracts X from "search youtube for X", "youtube search X"
// and "search X on youtube".
func YouTubeQuery(text string) string {
	if q := nlu.After(text, "search youtube for", "youtube search for", "youtube search", "search youtube"); q != "" {
		return q
	}
	if head, _, ok := strings.Cut(text, " on youtube"); ok {
		return nlu.After(head, "search for", "search")
	}
	return ""
}

func (l localRules) youtubeSearch(ctx context.Context, text string) (string, bool, error) {
	q := YouTubeQuery(text)
	if q == "" {
		return "What should I search YouTube for?", true, nil
	}
	return done(fmt.Sprintf("Searching YouTube for '%s'.", q), l.Desktop.OpenURL(ctx, web.YouTubeSearchURL(q)))
}

func (l localRules) wikipedia(ctx context.Context, text string) (string, bool, error) {
	q := nlu.After(text, "search wikipedia for", "wikipedia for", "wikipedia")
	if q == "" {
		q = nlu.Strip(text, "on wikipedia", "search", "look up")
	}
	if q == "" {
		return "What should I look up on Wikipedia?", true, nil
	}
	return done(fmt.Sprintf("Opening Wikipedia for '%s'.", q), l.Desktop.OpenURL(ctx, web.WikipediaURL(q)))
}

func (l localRules) googleSearch(ctx context.Context, text string) (string, bool, error) {
	q := nlu.After(text, "search google for", "search for")
	if q == "" {
		return "What should I search for?", true, nil
	}
	return done(fmt.Sprintf("Searching Google for '%s'.", q), l.Desktop.OpenURL(ctx, web.GoogleSearchURL(q)))
}

func (l localRules) clock(context.Context, string) (string, bool, error) {
	return "It's " + l.Now().Format("3:04 PM") + ".", true, nil
}

func (l localRules) date(context.Context, string) (string, bool, error) {
	return "Today is " + l.Now().Format("Monday, January 2, 2006") + ".", true, nil
}

func (l localRules) day(context.Context, string) (string, bool, error) {
	return "Today is " + l.Now().Format("Monday") + ".", true, nil
}

func (l localRules) screenshot(ctx context.Context, _ string) (string, bool, error) {
	path, err := l.Desktop.Screenshot(ctx)
	return done("Screenshot saved to "+path+".", err)
}

func (l localRules) lock(ctx context.Context, _ string) (string, bool, error) {
	return done("Locking the screen.", l.Desktop.LockScreen(ctx))
}

func (l localRules) volume(delta int) nlu.Action {
	text := "Volume increased."
	if delta < 0 {
		text = "Volume decreased."
	}
	return func(ctx context.Context, _ string) (string, bool, error) {
		return done(text, l.Desktop.ChangeVolume(ctx, delta))
	}
}

func (l localRules) mute(mute bool) nlu.Action {
	text := "Sound unmuted."
	if mute {
		text = "Sound muted."
	}
	return func(ctx context.Context, _ string) (string, bool, error) {
		return done(text, l.Desktop.SetMute(ctx, mute))
	}
}

func (l localRules) ip(ctx context.Context, _ string) (string, bool, error) {
	addr, err := l.Desktop.IPAddress(ctx)
	return done("Your IP address is "+addr+".", err)
}

func (l localRules) battery(ctx context.Context, _ string) (string, bool, error) {
	b, err := l.Desktop.Battery(ctx)
	state := "not charging"
	if b.Charging {
		state = "charging"
	}
	return done(fmt.Sprintf("Battery is at %d%% and %s.", b.Percent, state), err)
}

func (l localRules) cpuTemp(ctx context.Context, _ string) (string, bool, error) {
	c, err := l.Desktop.CPUTemperature(ctx)
	return done(fmt.Sprintf("CPU temperature is %.1f°C.", c), err)
}

func (l localRules) folder(name string) nlu.Action {
	return func(ctx context.Context, _ string) (string, bool, error) {
		_, err := l.Desktop.OpenFolder(ctx, name)
		return done(fmt.Sprintf("Opening your %s folder.", strings.ToUpper(name[:1])+name[1:]), err)
	}
}

func (l localRules) app(key, name string) nlu.Action {
	return func(ctx context.Context, _ string) (string, bool, error) {
		return done("Opening "+name+".", l.Desktop.OpenApp(ctx, key))
	}
}

func (l localRules) site(s site) nlu.Action {
	return func(ctx context.Context, _ string) (string, bool, error) {
		return done("Opening "+s.name+".", l.Desktop.OpenURL(ctx, s.url))
	}
}
