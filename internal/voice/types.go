package voice

import "time"

// AudioChunk is one immutable segment of captured audio. Seq is monotonic
// within a single capture; a new capture starts a new sequence at zero.
type AudioChunk struct {
	Data []byte
	Seq  int64
}

// PlaybackItem is one synthesized-audio segment queued for playback.
type PlaybackItem struct {
	Data        []byte
	ContentType string
	IsLast      bool
}

// Role identifies the speaker of one conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one committed utterance in the conversation context.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// Context is the rolling conversation history, capped to a fixed number of
// most recent turns.
type Context struct {
	turns []Turn
	limit int
}

// NewContext builds a conversation context holding at most limit turns.
func NewContext(limit int) *Context {
	if limit <= 0 {
		limit = 16
	}
	return &Context{limit: limit}
}

// Append records a turn, evicting the oldest once the cap is reached.
func (c *Context) Append(role Role, text string) {
	c.turns = append(c.turns, Turn{Role: role, Text: text, Timestamp: time.Now()})
	if len(c.turns) > c.limit {
		c.turns = c.turns[len(c.turns)-c.limit:]
	}
}

// Turns returns a snapshot of the retained history, oldest first.
func (c *Context) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports the number of retained turns.
func (c *Context) Len() int {
	return len(c.turns)
}
