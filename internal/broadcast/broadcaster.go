package broadcast

import (
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/rei1007/daigakuhai-support/internal/metrics"
)

// session is one live connection plus its generated identifier. Ids are never
// persisted or reused across reconnects.
type session struct {
	id     string
	writer *clientWriter
}

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	sessionID    string
	connection   *websocket.Conn
	welcome      []byte
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	sessionID string
}

type broadcastCmd struct {
	baseBroadcasterCmd
	message []byte
}

type clientCountCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the session registry for the single room and fans state
// messages out to every registered session. Membership changes and broadcast
// iteration run on the same actor goroutine, so they can never race.
type Broadcaster struct {
	cmdCh      chan broadcasterCmd
	clock      clockwork.Clock
	sessions   map[string]*session
	maxClients int
	done       chan struct{}
}

// NewBroadcaster creates a broadcaster and starts its actor goroutine.
// maxClients caps the number of registered sessions.
func NewBroadcaster(clock clockwork.Clock, maxClients int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:      make(chan broadcasterCmd, 256),
		clock:      clock,
		sessions:   make(map[string]*session),
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go b.run()
	return b
}

// Register adds a session to the registry. The welcome message, if any, is
// queued as the session's first outbound frame, ahead of later broadcasts.
// Returns an error only if the room is full.
func (b *Broadcaster) Register(sessionID string, conn *websocket.Conn, welcome []byte) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{sessionID: sessionID, connection: conn, welcome: welcome, errorChannel: errCh}
	return <-errCh
}

// Unregister removes a session from the registry. Idempotent.
func (b *Broadcaster) Unregister(sessionID string) {
	b.cmdCh <- unregisterCmd{sessionID: sessionID}
}

// Broadcast pushes a serialized state message to every registered session.
// Sessions whose delivery fails are pruned in the same call; there is no
// acknowledgment, retry, or backpressure.
func (b *Broadcaster) Broadcast(message []byte) {
	b.cmdCh <- broadcastCmd{message: message}
}

// ClientCount returns the number of registered sessions.
func (b *Broadcaster) ClientCount() int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{replyChannel: replyCh}
	return <-replyCh
}

// Stop shuts down the broadcaster, closing all client connections.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}
	<-b.done
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c.sessionID)
		case broadcastCmd:
			b.handleBroadcast(c.message)
		case clientCountCmd:
			c.replyChannel <- len(b.sessions)
		case stopCmd:
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if len(b.sessions) >= b.maxClients {
		slog.Warn("Rejecting client: room full", "session_id", c.sessionID, "max_clients", b.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("room is full (%d clients)", b.maxClients)
		return
	}

	cw := newClientWriter(c.connection, b.clock)
	if c.welcome != nil {
		cw.sendChannel <- c.welcome
	}
	b.sessions[c.sessionID] = &session{id: c.sessionID, writer: cw}

	metrics.BroadcasterConnectedClients.Set(float64(len(b.sessions)))
	slog.Debug("Client registered", "session_id", c.sessionID, "total_clients", len(b.sessions))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(sessionID string) {
	sess, exists := b.sessions[sessionID]
	if !exists {
		return
	}

	sess.writer.stop()
	delete(b.sessions, sessionID)

	metrics.BroadcasterConnectedClients.Set(float64(len(b.sessions)))
	slog.Debug("Client unregistered", "session_id", sessionID, "remaining_clients", len(b.sessions))
}

func (b *Broadcaster) handleBroadcast(message []byte) {
	start := b.clock.Now()

	var dead []string
	for id, sess := range b.sessions {
		select {
		case sess.writer.sendChannel <- message:
		default:
			dead = append(dead, id)
		}
	}

	// Self-healing membership: a session that cannot accept the frame is
	// removed here; it receives no further broadcasts.
	for _, id := range dead {
		slog.Warn("Evicting unresponsive client", "session_id", id)
		metrics.SlowClientsEvicted.Inc()
		b.handleUnregister(id)
	}

	metrics.BroadcastsTotal.Inc()
	metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "clients", len(b.sessions))
	for id, sess := range b.sessions {
		sess.writer.stopGraceful("Server shutting down")
		delete(b.sessions, id)
	}
	metrics.BroadcasterConnectedClients.Set(0)
}
