package domain

import "encoding/json"

// Message types exchanged over the websocket channel.
const (
	// Client to server.
	TypeSetMatchup    = "setMatchup"
	TypeAdvanceScript = "advanceScript"
	TypePostComment   = "postComment"

	// Server to client.
	TypeInitialState = "initialState"
	TypeStateUpdate  = "stateUpdate"
)

// Envelope is the wire frame for both directions: a type tag and an
// optional type-specific payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PostCommentPayload carries the text of a postComment command.
type PostCommentPayload struct {
	Text string `json:"text"`
}

// InitialStatePayload is pushed once right after a connection is accepted.
// SessionID lets the client recognize its own comments in later updates.
type InitialStatePayload struct {
	Matchup      Matchup   `json:"matchup"`
	ScriptCursor int       `json:"scriptCursor"`
	Comments     []Comment `json:"comments"`
	SessionID    string    `json:"sessionId"`
}

// StateUpdatePayload is the unified broadcast shape sent after every
// mutation: the full room snapshot rather than per-field delta events,
// so every frame is self-contained.
type StateUpdatePayload struct {
	Matchup      Matchup   `json:"matchup"`
	ScriptCursor int       `json:"scriptCursor"`
	Comments     []Comment `json:"comments"`
}

// NewInitialStateMessage builds the initialState envelope for a fresh session.
func NewInitialStateMessage(state RoomState, sessionID string) ([]byte, error) {
	payload, err := json.Marshal(InitialStatePayload{
		Matchup:      state.Matchup,
		ScriptCursor: state.ScriptCursor,
		Comments:     state.Comments,
		SessionID:    sessionID,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeInitialState, Payload: payload})
}

// NewStateUpdateMessage builds the stateUpdate envelope broadcast after a mutation.
func NewStateUpdateMessage(state RoomState) ([]byte, error) {
	payload, err := json.Marshal(StateUpdatePayload{
		Matchup:      state.Matchup,
		ScriptCursor: state.ScriptCursor,
		Comments:     state.Comments,
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeStateUpdate, Payload: payload})
}
