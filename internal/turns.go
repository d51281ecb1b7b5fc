package internal

// Role identifies the speaker of a turn
type Role string

const (
	RoleSystem       Role = "system"
	RoleUser         Role = "user"
	RoleBot          Role = "bot"
	RoleToolResponse Role = "tool_response"
)

// Turn is one role-tagged message in a conversation. Turns are immutable
// once appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Index   int    `json:"sequence_index"`
}

// TurnStore is an ordered, append-only log of dialogue turns. It assumes
// single-writer access per call; concurrent callers must serialize through
// the session lock.
type TurnStore struct {
	turns   []Turn
	onReset func()
}

// NewTurnStore creates an empty turn store. If systemPrompt is non-empty it
// is seeded as the initial system turn.
func NewTurnStore(systemPrompt string) *TurnStore {
	s := &TurnStore{}
	if systemPrompt != "" {
		s.Append(RoleSystem, systemPrompt)
	}
	return s
}

// OnReset registers a callback invoked whenever the store is cleared, so the
// cache tracker can invalidate state tied to the old turn sequence.
func (s *TurnStore) OnReset(fn func()) {
	s.onReset = fn
}

// Append adds a turn at the end of the log and returns it.
func (s *TurnStore) Append(role Role, content string) Turn {
	t := Turn{Role: role, Content: content, Index: len(s.turns)}
	s.turns = append(s.turns, t)
	return t
}

// Reset clears all turns and signals cache invalidation.
func (s *TurnStore) Reset() {
	s.turns = nil
	if s.onReset != nil {
		s.onReset()
	}
}

// Len returns the number of turns in the store.
func (s *TurnStore) Len() int {
	return len(s.turns)
}

// Last returns the most recent turn, or false when the store is empty.
func (s *TurnStore) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Turns returns a copy of the turn sequence.
func (s *TurnStore) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// NextRole reports which role is expected to speak next. The interactive
// loop only prompts the user when NextRole returns RoleUser.
func (s *TurnStore) NextRole() Role {
	last, ok := s.Last()
	if !ok || last.Role == RoleBot || last.Role == RoleSystem || last.Role == RoleToolResponse {
		return RoleUser
	}
	return RoleBot
}
