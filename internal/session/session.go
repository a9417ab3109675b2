// Package session keeps the recent conversation turns that are sent to the
// language model for context. Turns are never persisted.
package session

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

// DefaultPairs is the number of user/assistant exchanges kept.
const DefaultPairs = 6

// Session is a bounded FIFO of turn pairs. It is owned by a single
// dispatcher and is not safe for concurrent use.
type Session struct {
	maxPairs int
	turns    []Turn
}

func New(maxPairs int) *Session {
	if maxPairs <= 0 {
		maxPairs = DefaultPairs
	}
	return &Session{maxPairs: maxPairs}
}

// Append records one exchange and drops the oldest pairs beyond the cap.
func (s *Session) Append(user, assistant string) {
	s.turns = append(s.turns,
		Turn{Role: RoleUser, Content: user},
		Turn{Role: RoleAssistant, Content: assistant},
	)

	if over := len(s.turns) - 2*s.maxPairs; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
}

// Turns returns a copy of the held turns, oldest first.
func (s *Session) Turns() []Turn {
	return append([]Turn(nil), s.turns...)
}

// Len is the number of held pairs.
func (s *Session) Len() int {
	return len(s.turns) / 2
}

func (s *Session) MaxPairs() int {
	return s.maxPairs
}

func (s *Session) Clear() {
	s.turns = nil
}
