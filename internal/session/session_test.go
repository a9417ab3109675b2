package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendAndTurns(t *testing.T) {
	s := New(3)
	s.Append("hi", "hello")

	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}, s.Turns())
	assert.Equal(t, 1, s.Len())
}

func TestSession_TrimsOldestPairs(t *testing.T) {
	s := New(2)
	for i := 1; i <= 5; i++ {
		s.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := s.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "q4", turns[0].Content)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "a5", turns[3].Content)
	assert.Equal(t, 2, s.Len())
}

func TestSession_TurnsIsCopy(t *testing.T) {
	s := New(2)
	s.Append("q", "a")

	turns := s.Turns()
	turns[0].Content = "changed"

	assert.Equal(t, "q", s.Turns()[0].Content)
}

func TestSession_DefaultCapAndClear(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultPairs, s.MaxPairs())

	s.Append("q", "a")
	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Turns())
}
