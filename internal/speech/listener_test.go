package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iveri/internal/audio"
)

type fakeRecorder struct {
	pcm []float32
	err error
}

func (f fakeRecorder) RecordUtterance(context.Context, audio.Limits) ([]float32, error) {
	return f.pcm, f.err
}

type fakeWindow struct {
	pcm   []float32
	loud  bool
	asked time.Duration
}

func (f *fakeWindow) RecordFor(_ context.Context, d time.Duration) ([]float32, error) {
	f.asked = d
	return f.pcm, nil
}

func (f *fakeWindow) Loud([]float32) bool { return f.loud }

type countingTranscriber struct {
	text  string
	calls int
}

func (c *countingTranscriber) Transcribe(context.Context, []float32) (string, error) {
	c.calls++
	return c.text, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []float32) (string, error) {
	return f.text, f.err
}

type fakeDucker struct {
	ducked, restored int
}

func (d *fakeDucker) Duck(context.Context, float64, time.Duration) error {
	d.ducked++
	return nil
}

func (d *fakeDucker) Restore(context.Context, time.Duration) error {
	d.restored++
	return errors.New("pactl missing")
}

func TestMic_Listen(t *testing.T) {
	d := &fakeDucker{}
	m := NewMic(Config{
		Recorder:    fakeRecorder{pcm: make([]float32, 320)},
		Transcriber: fakeTranscriber{text: "  What time is it? [BLANK_AUDIO] "},
		Ducker:      d,
	})

	text, err := m.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "What time is it?", text)
	assert.Equal(t, 1, d.ducked)
	assert.Equal(t, 1, d.restored)
}

func TestMic_NoSpeech(t *testing.T) {
	m := NewMic(Config{
		Recorder:    fakeRecorder{err: audio.ErrNoSpeech},
		Transcriber: fakeTranscriber{},
	})
	_, err := m.Listen(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)

	m = NewMic(Config{
		Recorder:    fakeRecorder{pcm: make([]float32, 320)},
		Transcriber: fakeTranscriber{text: "[BLANK_AUDIO]"},
	})
	_, err = m.Listen(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestMic_Failures(t *testing.T) {
	boom := errors.New("device busy")
	m := NewMic(Config{Recorder: fakeRecorder{err: boom}, Transcriber: fakeTranscriber{}})
	_, err := m.Listen(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = Unavailable{}.Listen(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMic_Spot(t *testing.T) {
	win := &fakeWindow{pcm: make([]float32, 320)}
	tr := &countingTranscriber{text: "hey Jarvis"}
	m := NewMic(Config{
		Recorder:    fakeRecorder{err: errors.New("utterance recording must not be used")},
		Transcriber: tr,
		Window:      win,
		SpotFor:     1500 * time.Millisecond,
	})

	_, err := m.Spot(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.Zero(t, tr.calls, "quiet windows are not transcribed")
	assert.Equal(t, 1500*time.Millisecond, win.asked)

	win.loud = true
	text, err := m.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hey Jarvis", text)
	assert.Equal(t, 1, tr.calls)
}

func TestMic_SpotWithoutWindow(t *testing.T) {
	m := NewMic(Config{
		Recorder:    fakeRecorder{pcm: make([]float32, 320)},
		Transcriber: fakeTranscriber{text: "jarvis"},
	})

	text, err := m.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jarvis", text)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", Normalize(" hello   (music) world "))
	assert.Equal(t, "", Normalize("[BLANK_AUDIO]"))
	assert.Equal(t, "a b", Normalize("a ] b"))
}
