package session

import (
	"time"
)

// TimestampLayout is the layout of Turn timestamps, local time with second
// resolution.
const TimestampLayout = "02.01.2006 15:04:05"

// DefaultWindowSize is the number of most recent turns kept by a truncated
// context window.
const DefaultWindowSize = 8

// Role identifies who wrote a Turn. It is stored as "User" or "Assistant" in
// session files.
type Role string

// Roles of a conversation.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	// Timestamp is kept verbatim as read from or written to a session file.
	Timestamp string
	Role      Role
	Content   string
}

// NewTurn creates a turn stamped with t.
func NewTurn(role Role, content string, t time.Time) Turn {
	return Turn{
		Timestamp: t.Format(TimestampLayout),
		Role:      role,
		Content:   content,
	}
}

// Transcript is the ordered conversation of one session.
type Transcript []Turn

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	*t = append(*t, turn)
}

// Last returns a copy of the k most recent turns, or all of them when the
// transcript is shorter than k.
func (t Transcript) Last(k int) Transcript {
	if k < 0 {
		k = 0
	}
	start := len(t) - k
	if start < 0 {
		start = 0
	}
	return t[start:].Clone()
}

// Clone returns a copy that does not share the backing array.
func (t Transcript) Clone() Transcript {
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
