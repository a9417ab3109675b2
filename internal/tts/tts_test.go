package tts

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleSpeak(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "IVERI")

	require.NoError(t, c.Speak(context.Background(), "Wake mode active."))
	require.NoError(t, c.Speak(context.Background(), "   "))

	assert.Equal(t, "IVERI: Wake mode active.\n", buf.String())
}

func TestSilentSpeak(t *testing.T) {
	assert.NoError(t, Silent{}.Speak(context.Background(), "anything"))
}

type failSpeaker struct{ err error }

func (f failSpeaker) Speak(context.Context, string) error { return f.err }

func TestTee(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("no audio device")

	err := Tee{failSpeaker{boom}, NewConsole(&buf, "IVERI")}.Speak(context.Background(), "Yes?")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "IVERI: Yes?\n", buf.String())
}
