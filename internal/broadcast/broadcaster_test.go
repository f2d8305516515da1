package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxClients = 50

func testBroadcaster(t *testing.T) (*Broadcaster, func(welcome []byte) (*ws.Conn, string)) {
	t.Helper()

	broadcaster := NewBroadcaster(clockwork.NewRealClock(), testMaxClients)
	t.Cleanup(func() { broadcaster.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	type pending struct {
		welcome []byte
		idCh    chan string
	}
	pendingCh := make(chan pending, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		p := <-pendingCh
		sessionID := uuid.NewString()
		_ = broadcaster.Register(sessionID, conn, p.welcome)
		p.idCh <- sessionID

		go func() {
			defer broadcaster.Unregister(sessionID)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func(welcome []byte) (*ws.Conn, string) {
		t.Helper()
		idCh := make(chan string, 1)
		pendingCh <- pending{welcome: welcome, idCh: idCh}
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn, <-idCh
	}

	return broadcaster, dial
}

func waitForClientCount(b *Broadcaster, expected int) bool {
	for range 200 {
		if b.ClientCount() == expected {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func readMessage(t *testing.T, conn *ws.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return msg
}

func TestBroadcaster_WelcomeDeliveredFirst(t *testing.T) {
	broadcaster, dial := testBroadcaster(t)

	conn, _ := dial([]byte(`{"type":"initialState"}`))
	require.True(t, waitForClientCount(broadcaster, 1))

	broadcaster.Broadcast([]byte(`{"type":"stateUpdate","n":1}`))

	assert.JSONEq(t, `{"type":"initialState"}`, string(readMessage(t, conn)))
	assert.JSONEq(t, `{"type":"stateUpdate","n":1}`, string(readMessage(t, conn)))
}

func TestBroadcaster_FanOutReachesAllSessions(t *testing.T) {
	broadcaster, dial := testBroadcaster(t)

	conn1, _ := dial(nil)
	conn2, _ := dial(nil)
	conn3, _ := dial(nil)
	require.True(t, waitForClientCount(broadcaster, 3))

	broadcaster.Broadcast([]byte(`{"type":"stateUpdate"}`))

	for _, conn := range []*ws.Conn{conn1, conn2, conn3} {
		assert.JSONEq(t, `{"type":"stateUpdate"}`, string(readMessage(t, conn)))
	}
}

func TestBroadcaster_UnregisterOnDisconnect(t *testing.T) {
	broadcaster, dial := testBroadcaster(t)

	conn1, _ := dial(nil)
	conn2, _ := dial(nil)
	require.True(t, waitForClientCount(broadcaster, 2))

	conn1.Close()
	require.True(t, waitForClientCount(broadcaster, 1))

	// The remaining session is unaffected.
	broadcaster.Broadcast([]byte(`{"type":"stateUpdate"}`))
	assert.JSONEq(t, `{"type":"stateUpdate"}`, string(readMessage(t, conn2)))
}

func TestBroadcaster_UnregisterIdempotent(t *testing.T) {
	broadcaster, dial := testBroadcaster(t)

	_, sessionID := dial(nil)
	require.True(t, waitForClientCount(broadcaster, 1))

	broadcaster.Unregister(sessionID)
	broadcaster.Unregister(sessionID)
	broadcaster.Unregister("never-registered")

	require.True(t, waitForClientCount(broadcaster, 0))
}

func TestBroadcaster_EvictsDeadClient(t *testing.T) {
	// No read pump on the server side here: the only way the dead session can
	// leave the registry is the broadcast-time eviction.
	broadcaster := NewBroadcaster(clockwork.NewRealClock(), testMaxClients)
	t.Cleanup(func() { broadcaster.Stop() })

	deadServer, deadClient := newTestConnPair(t)
	require.NoError(t, broadcaster.Register(uuid.NewString(), deadServer, nil))

	liveServer, live := newTestConnPair(t)
	require.NoError(t, broadcaster.Register(uuid.NewString(), liveServer, nil))
	require.Equal(t, 2, broadcaster.ClientCount())

	// Kill the first client's TCP side. Once its writer goroutine dies, its
	// send buffer fills and a later broadcast prunes it from the registry.
	deadClient.Close()

	require.Eventually(t, func() bool {
		broadcaster.Broadcast([]byte(`{"type":"stateUpdate"}`))
		return broadcaster.ClientCount() == 1
	}, 5*time.Second, 10*time.Millisecond)

	// The survivor still receives broadcasts.
	broadcaster.Broadcast([]byte(`{"type":"stateUpdate","last":true}`))
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, live.SetReadDeadline(time.Now().Add(time.Second)))
		_, msg, err := live.ReadMessage()
		require.NoError(t, err)
		if strings.Contains(string(msg), "last") {
			break
		}
		require.True(t, time.Now().Before(deadline), "never saw final broadcast")
	}
}

func TestBroadcaster_RejectsWhenFull(t *testing.T) {
	broadcaster := NewBroadcaster(clockwork.NewRealClock(), 2)
	t.Cleanup(func() { broadcaster.Stop() })

	for range 2 {
		server, _ := newTestConnPair(t)
		require.NoError(t, broadcaster.Register(uuid.NewString(), server, nil))
	}
	assert.Equal(t, 2, broadcaster.ClientCount())

	server, _ := newTestConnPair(t)
	err := broadcaster.Register(uuid.NewString(), server, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "room is full")
}

func TestBroadcaster_StopClosesClients(t *testing.T) {
	broadcaster := NewBroadcaster(clockwork.NewRealClock(), testMaxClients)

	server, client := newTestConnPair(t)
	require.NoError(t, broadcaster.Register(uuid.NewString(), server, nil))

	broadcaster.Stop()

	// The client sees a normal close from the server side.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal closure, got %v", err)
}

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })

	return serverConn, clientConn
}
