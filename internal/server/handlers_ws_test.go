package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rei1007/daigakuhai-support/internal/broadcast"
	"github.com/rei1007/daigakuhai-support/internal/config"
	"github.com/rei1007/daigakuhai-support/internal/domain"
	"github.com/rei1007/daigakuhai-support/internal/refdata"
	"github.com/rei1007/daigakuhai-support/internal/room"
)

// memStore is an in-memory RoomStore for gateway tests.
type memStore struct {
	mu    sync.Mutex
	state domain.RoomState
}

func newMemStore() *memStore {
	return &memStore{state: domain.NewRoomState()}
}

func (m *memStore) Load(_ context.Context) (domain.RoomState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Snapshot(), nil
}

func (m *memStore) SaveMatchup(_ context.Context, v domain.Matchup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Matchup = v
	return nil
}

func (m *memStore) SaveScriptCursor(_ context.Context, cursor int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ScriptCursor = cursor
	return nil
}

func (m *memStore) SaveComments(_ context.Context, comments []domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Comments = comments
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		RedisURL:                "redis://localhost:6379",
		MaxWebSocketConnections: 10,
		ConnectsPerSecond:       1000,
		ConnectsBurst:           1000,
	}
}

func testServer(t *testing.T, cfg *config.Config, store domain.RoomStore) (*httptest.Server, *Server) {
	t.Helper()

	if store == nil {
		store = newMemStore()
	}

	broadcaster := broadcast.NewBroadcaster(clockwork.NewRealClock(), cfg.MaxWebSocketConnections)
	t.Cleanup(broadcaster.Stop)

	dispatcher, err := room.NewDispatcher(context.Background(), store, broadcaster)
	require.NoError(t, err)
	t.Cleanup(dispatcher.Stop)

	srv := NewServer(cfg, dispatcher, broadcaster, refdata.Static{}, nil, nil)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return ts, srv
}

func dialWS(t *testing.T, ts *httptest.Server) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *ws.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func readInitialState(t *testing.T, conn *ws.Conn) domain.InitialStatePayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, domain.TypeInitialState, env.Type)

	var payload domain.InitialStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func readStateUpdate(t *testing.T, conn *ws.Conn) domain.StateUpdatePayload {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, domain.TypeStateUpdate, env.Type)

	var payload domain.StateUpdatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func TestWebSocket_InitialStateOnConnect(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	conn := dialWS(t, ts)
	payload := readInitialState(t, conn)

	assert.NotEmpty(t, payload.SessionID)
	assert.Nil(t, payload.Matchup.Alpha)
	assert.Zero(t, payload.ScriptCursor)
	assert.Empty(t, payload.Comments)
}

func TestWebSocket_UniqueSessionIDs(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	first := readInitialState(t, dialWS(t, ts))
	second := readInitialState(t, dialWS(t, ts))

	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestWebSocket_MutationFansOutToAllClients(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	connA := dialWS(t, ts)
	connB := dialWS(t, ts)
	readInitialState(t, connA)
	readInitialState(t, connB)

	require.NoError(t, connA.WriteMessage(ws.TextMessage,
		[]byte(`{"type":"setMatchup","payload":{"alpha":"team_a","bravo":"team_b"}}`)))

	for _, conn := range []*ws.Conn{connA, connB} {
		payload := readStateUpdate(t, conn)
		require.NotNil(t, payload.Matchup.Alpha)
		assert.Equal(t, "team_a", *payload.Matchup.Alpha)
		require.NotNil(t, payload.Matchup.Bravo)
		assert.Equal(t, "team_b", *payload.Matchup.Bravo)
	}
}

func TestWebSocket_CommentCarriesSenderSessionID(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	conn := dialWS(t, ts)
	initial := readInitialState(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage,
		[]byte(`{"type":"postComment","payload":{"text":"gg"}}`)))

	payload := readStateUpdate(t, conn)
	require.Len(t, payload.Comments, 1)
	assert.Equal(t, initial.SessionID, payload.Comments[0].SenderID)
	assert.Equal(t, "gg", payload.Comments[0].Text)
}

func TestWebSocket_LateJoinerSeesCurrentState(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	connA := dialWS(t, ts)
	readInitialState(t, connA)

	require.NoError(t, connA.WriteMessage(ws.TextMessage, []byte(`{"type":"advanceScript"}`)))
	update := readStateUpdate(t, connA)
	require.Equal(t, 1, update.ScriptCursor)

	connB := dialWS(t, ts)
	payload := readInitialState(t, connB)
	assert.Equal(t, 1, payload.ScriptCursor)
}

func TestWebSocket_MalformedFrameDoesNotKillConnection(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	conn := dialWS(t, ts)
	readInitialState(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{oops`)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"advanceScript"}`)))

	// The bad frame is dropped silently; the next command still applies.
	payload := readStateUpdate(t, conn)
	assert.Equal(t, 1, payload.ScriptCursor)
}

func TestWebSocket_UnknownCommandProducesNoBroadcast(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	conn := dialWS(t, ts)
	readInitialState(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"resetEverything"}`)))
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"advanceScript"}`)))

	payload := readStateUpdate(t, conn)
	assert.Equal(t, 1, payload.ScriptCursor, "first broadcast must come from the known command")
}

func TestWebSocket_ConnectDuringMutationsSeesNoGap(t *testing.T) {
	ts, _ := testServer(t, testConfig(), nil)

	driver := dialWS(t, ts)
	readInitialState(t, driver)

	// Drain the driver so its own send buffer never fills.
	go func() {
		for {
			if _, _, err := driver.ReadMessage(); err != nil {
				return
			}
		}
	}()

	const total = 30
	go func() {
		for range total {
			_ = driver.WriteMessage(ws.TextMessage, []byte(`{"type":"advanceScript"}`))
		}
	}()

	// Join mid-storm. The welcome must be current at registration time and
	// every later mutation must arrive as an update: welcome cursor k, then
	// k+1, k+2, ... with no gap the client could render stale state across.
	joiner := dialWS(t, ts)
	cursor := readInitialState(t, joiner).ScriptCursor
	for cursor < total {
		update := readStateUpdate(t, joiner)
		require.Equal(t, cursor+1, update.ScriptCursor)
		cursor = update.ScriptCursor
	}
}

func TestWebSocket_StatePersistsAcrossRestart(t *testing.T) {
	store := newMemStore()

	ts, _ := testServer(t, testConfig(), store)
	conn := dialWS(t, ts)
	readInitialState(t, conn)

	require.NoError(t, conn.WriteMessage(ws.TextMessage,
		[]byte(`{"type":"setMatchup","payload":{"alpha":"team_a","bravo":"team_b"}}`)))
	readStateUpdate(t, conn)

	// Saves are fire-and-forget; give the persister a moment.
	require.Eventually(t, func() bool {
		state, _ := store.Load(context.Background())
		return state.Matchup.Alpha != nil
	}, time.Second, 5*time.Millisecond)

	// Same store, new process.
	ts2, _ := testServer(t, testConfig(), store)
	payload := readInitialState(t, dialWS(t, ts2))
	require.NotNil(t, payload.Matchup.Alpha)
	assert.Equal(t, "team_a", *payload.Matchup.Alpha)
}

func TestWebSocket_RateLimitRejectsConnection(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectsPerSecond = 0.001
	cfg.ConnectsBurst = 1

	ts, _ := testServer(t, cfg, nil)

	readInitialState(t, dialWS(t, ts))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 429, resp.StatusCode)
}
