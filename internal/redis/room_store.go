package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rei1007/daigakuhai-support/internal/domain"
)

const roomKey = "room:state"

// Redis hash field names for the room key.
const (
	fieldMatchup      = "matchup"
	fieldScriptCursor = "script_cursor"
	fieldComments     = "comments"
)

// RoomStore persists the room's three fields in a single Redis hash.
type RoomStore struct {
	rdb *goredis.Client
}

func NewRoomStore(rdb *goredis.Client) *RoomStore {
	return &RoomStore{rdb: rdb}
}

// Load reads the persisted room state. Absent fields fall back to defaults;
// a corrupt field value is logged and defaulted rather than failing the load,
// so one bad field cannot keep the room from starting.
func (s *RoomStore) Load(ctx context.Context) (domain.RoomState, error) {
	state := domain.NewRoomState()

	fields, err := s.rdb.HGetAll(ctx, roomKey).Result()
	if err != nil {
		return state, fmt.Errorf("failed to load room state: %w", err)
	}

	if raw, ok := fields[fieldMatchup]; ok {
		var m domain.Matchup
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			slog.Warn("Ignoring corrupt persisted matchup", "error", err)
		} else {
			state.Matchup = m
		}
	}

	if raw, ok := fields[fieldScriptCursor]; ok {
		cursor, err := strconv.Atoi(raw)
		if err != nil || cursor < 0 {
			slog.Warn("Ignoring corrupt persisted script cursor", "value", raw)
		} else {
			state.ScriptCursor = cursor
		}
	}

	if raw, ok := fields[fieldComments]; ok {
		var comments []domain.Comment
		if err := json.Unmarshal([]byte(raw), &comments); err != nil {
			slog.Warn("Ignoring corrupt persisted comments", "error", err)
		} else {
			state.Comments = comments
		}
	}

	return state, nil
}

// SaveMatchup persists the matchup field.
func (s *RoomStore) SaveMatchup(ctx context.Context, m domain.Matchup) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal matchup: %w", err)
	}
	if err := s.rdb.HSet(ctx, roomKey, fieldMatchup, raw).Err(); err != nil {
		return fmt.Errorf("failed to save matchup: %w", err)
	}
	return nil
}

// SaveScriptCursor persists the script cursor field.
func (s *RoomStore) SaveScriptCursor(ctx context.Context, cursor int) error {
	if err := s.rdb.HSet(ctx, roomKey, fieldScriptCursor, strconv.Itoa(cursor)).Err(); err != nil {
		return fmt.Errorf("failed to save script cursor: %w", err)
	}
	return nil
}

// SaveComments persists the comment log field.
func (s *RoomStore) SaveComments(ctx context.Context, comments []domain.Comment) error {
	raw, err := json.Marshal(comments)
	if err != nil {
		return fmt.Errorf("failed to marshal comments: %w", err)
	}
	if err := s.rdb.HSet(ctx, roomKey, fieldComments, raw).Err(); err != nil {
		return fmt.Errorf("failed to save comments: %w", err)
	}
	return nil
}
