package assistant

import (
	"bytes"
	"context"
	"io"
	log "log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iveri/internal/config"
	"iveri/internal/llm"
	"iveri/internal/nlu"
	"iveri/internal/session"
	"iveri/internal/speech"
)

type fakeFallback struct {
	calls int
	reply string
	err   error
}

func (f *fakeFallback) Complete(_ context.Context, _ []session.Turn, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeListener struct {
	heard []string
}

func (l *fakeListener) Listen(context.Context) (string, error) {
	if len(l.heard) == 0 {
		return "", speech.ErrNoSpeech
	}
	h := l.heard[0]
	l.heard = l.heard[1:]
	if h == "" {
		return "", speech.ErrNoSpeech
	}
	return h, nil
}

type recordSpeaker struct {
	said []string
}

func (r *recordSpeaker) Speak(_ context.Context, text string) error {
	r.said = append(r.said, text)
	return nil
}

type fixture struct {
	a        *Assistant
	out      *bytes.Buffer
	fallback *fakeFallback
	speaker  *recordSpeaker
}

func newFixture(t *testing.T, input string, heard ...string) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	f := &fixture{
		out:      &bytes.Buffer{},
		fallback: &fakeFallback{reply: "Paris."},
		speaker:  &recordSpeaker{},
	}

	a, err := New(cfg, Deps{
		In:       strings.NewReader(input),
		Out:      f.out,
		Fallback: f.fallback,
		Listener: &fakeListener{heard: heard},
		Speaker:  f.speaker,
	}, log.New(log.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	f.a = a
	return f
}

func TestIsExit(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"goodbye", true},
		{"Bye for now", true},
		{"please stop", true},
		{"QUIT", true},
		{"exit", true},
		{"start the stopwatch", false},
		{"what is the exit velocity of the earth", true},
		{"byelaw", false},
		{"", false},
		{"hello there", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExit(tt.text))
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"":      ModeChat,
		"1":     ModeChat,
		"chat":  ModeChat,
		"2":     ModeWake,
		" W ":   ModeWake,
		"wake":  ModeWake,
		"dance": ModeChat,
	} {
		assert.Equal(t, want, ParseMode(in), "input %q", in)
	}
}

func TestChatMemoryRoundTrip(t *testing.T) {
	f := newFixture(t, "remember my name is Ada\nwhat is my name\ngoodbye\n")

	require.NoError(t, f.a.Run(context.Background(), ModeChat))

	out := f.out.String()
	assert.Contains(t, out, "IVERI: I'll remember that your name is ada.")
	assert.Contains(t, out, "IVERI: Your name is ada.")
	assert.Contains(t, out, "IVERI: Goodbye!")
	assert.Contains(t, out, "IVERI shut down. Bye!")

	v, ok := f.a.Store().Recall("name")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
	assert.Zero(t, f.fallback.calls)
}

func TestChatEmptyLineListens(t *testing.T) {
	f := newFixture(t, "\n\n", "", "what is my name")

	require.NoError(t, f.a.Run(context.Background(), ModeChat))

	out := f.out.String()
	assert.Contains(t, out, "IVERI: Didn't catch that.")
	assert.Contains(t, out, "(You said: what is my name)")
	assert.Contains(t, out, "I don't know your name yet.")
}

func TestChatFallbackUsesSession(t *testing.T) {
	f := newFixture(t, "what is the capital of France\n")

	require.NoError(t, f.a.Run(context.Background(), ModeChat))

	assert.Contains(t, f.out.String(), "IVERI: Paris.")
	assert.Equal(t, 1, f.fallback.calls)
	assert.Equal(t, 2, f.a.Session().Len())
}

func TestChatFallbackNotConfigured(t *testing.T) {
	f := newFixture(t, "what is the capital of France\n")
	f.fallback.err = llm.ErrNotConfigured

	require.NoError(t, f.a.Run(context.Background(), ModeChat))

	assert.Contains(t, f.out.String(), "IVERI: "+nlu.NoModel)
	assert.Zero(t, f.a.Session().Len())
}

func TestChatSwitchesToWake(t *testing.T) {
	f := newFixture(t, "wake\nchat\nquit\n")

	require.NoError(t, f.a.Run(context.Background(), ModeChat))

	out := f.out.String()
	assert.Contains(t, out, "--- WAKE MODE ---")
	assert.Equal(t, 2, strings.Count(out, "--- CHAT MODE ---"))
	assert.Equal(t, []string{"Wake mode active."}, f.speaker.said)
}

func TestWakeConversation(t *testing.T) {
	f := newFixture(t, "\n\n\nexit\n", "remember my city is Oslo", "", "chat mode")

	require.NoError(t, f.a.Run(context.Background(), ModeWake))

	assert.Equal(t, []string{
		"Wake mode active.",
		"Yes?",
		"I'll remember that your city is oslo.",
		"Yes?",
		"Didn't catch that.",
		"Yes?",
		"Switching to chat.",
	}, f.speaker.said)

	out := f.out.String()
	assert.Contains(t, out, "You said: remember my city is Oslo")
	assert.Contains(t, out, "--- CHAT MODE ---")
}

func TestWakeSpokenExit(t *testing.T) {
	f := newFixture(t, "\n", "okay goodbye")

	require.NoError(t, f.a.Run(context.Background(), ModeWake))

	assert.Equal(t, []string{"Wake mode active.", "Yes?", "Goodbye!"}, f.speaker.said)
}

func TestChooseMode(t *testing.T) {
	f := newFixture(t, "2\n")
	assert.Equal(t, ModeWake, f.a.ChooseMode(context.Background()))

	f = newFixture(t, "")
	assert.Equal(t, ModeChat, f.a.ChooseMode(context.Background()))
}

func TestRunCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	a, err := New(cfg, Deps{In: r, Out: io.Discard, Fallback: &fakeFallback{}}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, a.Run(ctx, ModeChat))
}
