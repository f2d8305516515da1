package domain

import "context"

// MaxComments caps the rolling audience comment log. The overlay only renders
// the two most recent comments, so older entries are evicted on append.
const MaxComments = 2

// Matchup pairs the two teams currently on stream. Team ids are opaque
// references into the roster reference data; nil means the slot is unset.
// A matchup is always replaced wholesale, never merged field by field.
type Matchup struct {
	Alpha *string `json:"alpha"`
	Bravo *string `json:"bravo"`
}

// Comment is one audience comment. SenderID is the posting session's id,
// not a stable user identity: it changes on every reconnect.
type Comment struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

// RoomState is the authoritative aggregate for the single room: the team
// pairing, the cursor into the commentary script, and the comment log.
// It is owned and mutated exclusively by the room dispatcher.
type RoomState struct {
	Matchup      Matchup   `json:"matchup"`
	ScriptCursor int       `json:"scriptCursor"`
	Comments     []Comment `json:"comments"`
}

// NewRoomState returns the default state used when nothing has been
// persisted yet: no matchup, cursor at the first script line, empty log.
func NewRoomState() RoomState {
	return RoomState{Comments: []Comment{}}
}

// AppendComment appends a comment and evicts the oldest entry once the log
// exceeds MaxComments. Ordering is oldest first, newest last.
func (s *RoomState) AppendComment(c Comment) {
	s.Comments = append(s.Comments, c)
	if len(s.Comments) > MaxComments {
		s.Comments = s.Comments[len(s.Comments)-MaxComments:]
	}
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (s *RoomState) Snapshot() RoomState {
	cp := *s
	cp.Comments = make([]Comment, len(s.Comments))
	copy(cp.Comments, s.Comments)
	return cp
}

// RoomStore persists the three room fields independently. Each save is
// durable when the call returns; there is no cross-field transaction.
type RoomStore interface {
	Load(ctx context.Context) (RoomState, error)
	SaveMatchup(ctx context.Context, m Matchup) error
	SaveScriptCursor(ctx context.Context, cursor int) error
	SaveComments(ctx context.Context, comments []Comment) error
}
