package room

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rei1007/daigakuhai-support/internal/domain"
	"github.com/rei1007/daigakuhai-support/internal/metrics"
)

const (
	persistTimeout   = 2 * time.Second
	persistQueueSize = 256
	cmdQueueSize     = 256
)

// Sink receives the serialized state message after every applied mutation.
type Sink interface {
	Broadcast(message []byte)
}

// dispatcherCmd is the command interface for the Dispatcher actor.
type dispatcherCmd interface{ isDispatcherCmd() }

type baseDispatcherCmd struct{}

func (baseDispatcherCmd) isDispatcherCmd() {}

type setMatchupCmd struct {
	baseDispatcherCmd
	matchup domain.Matchup
}

type advanceScriptCmd struct {
	baseDispatcherCmd
}

type postCommentCmd struct {
	baseDispatcherCmd
	sessionID string
	text      string
}

type connectCmd struct {
	baseDispatcherCmd
	sessionID    string
	register     func(welcome []byte) error
	errorChannel chan error
}

type snapshotCmd struct {
	baseDispatcherCmd
	replyChannel chan domain.RoomState
}

type stopCmd struct {
	baseDispatcherCmd
}

type persistJob struct {
	field string
	save  func(context.Context) error
}

// Dispatcher is the single mutation authority for the room. All commands are
// serialized through its actor goroutine, so no two mutations interleave and
// every broadcast reflects a fully-applied state.
type Dispatcher struct {
	cmdCh     chan dispatcherCmd
	persistCh chan persistJob
	state     domain.RoomState
	store     domain.RoomStore
	sink      Sink
	done      chan struct{}
}

// NewDispatcher loads the persisted room state and starts the actor.
// The load is synchronous: by the time the constructor returns, the state is
// initialized and the dispatcher can serve commands and snapshots. Callers
// must not accept traffic before this returns.
func NewDispatcher(ctx context.Context, store domain.RoomStore, sink Sink) (*Dispatcher, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load room state: %w", err)
	}

	d := &Dispatcher{
		cmdCh:     make(chan dispatcherCmd, cmdQueueSize),
		persistCh: make(chan persistJob, persistQueueSize),
		state:     state,
		store:     store,
		sink:      sink,
		done:      make(chan struct{}),
	}
	go d.run()
	go d.runPersister()
	return d, nil
}

// Dispatch parses one inbound message frame and queues the resulting command.
// Malformed frames and unknown command types are logged and dropped; no error
// ever reaches the sending client.
func (d *Dispatcher) Dispatch(raw []byte, sessionID string) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("Dropping unparseable message", "session_id", sessionID, "error", err)
		metrics.MalformedMessagesTotal.Inc()
		return
	}

	switch env.Type {
	case domain.TypeSetMatchup:
		var m domain.Matchup
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			slog.Warn("Dropping setMatchup with bad payload", "session_id", sessionID, "error", err)
			metrics.MalformedMessagesTotal.Inc()
			return
		}
		d.cmdCh <- setMatchupCmd{matchup: m}

	case domain.TypeAdvanceScript:
		d.cmdCh <- advanceScriptCmd{}

	case domain.TypePostComment:
		var p domain.PostCommentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			slog.Warn("Dropping postComment with bad payload", "session_id", sessionID, "error", err)
			metrics.MalformedMessagesTotal.Inc()
			return
		}
		d.cmdCh <- postCommentCmd{sessionID: sessionID, text: p.Text}

	default:
		slog.Debug("Ignoring unknown command type", "type", env.Type, "session_id", sessionID)
		metrics.CommandsTotal.WithLabelValues(env.Type, "ignored").Inc()
	}
}

// Connect builds the initialState welcome from the live state and registers
// the session via register, both inside the actor goroutine. The actor is the
// only broadcast trigger, so no mutation can slip between the snapshot and
// the registration: the welcome is current, and every later mutation reaches
// the registered session as a stateUpdate.
func (d *Dispatcher) Connect(sessionID string, register func(welcome []byte) error) error {
	errCh := make(chan error, 1)
	d.cmdCh <- connectCmd{sessionID: sessionID, register: register, errorChannel: errCh}
	return <-errCh
}

// Snapshot returns a copy of the current room state.
func (d *Dispatcher) Snapshot() domain.RoomState {
	replyCh := make(chan domain.RoomState, 1)
	d.cmdCh <- snapshotCmd{replyChannel: replyCh}
	return <-replyCh
}

// Stop shuts down the actor. Blocks until pending commands are processed.
func (d *Dispatcher) Stop() {
	d.cmdCh <- stopCmd{}
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for cmd := range d.cmdCh {
		switch c := cmd.(type) {
		case setMatchupCmd:
			d.handleSetMatchup(c)
		case advanceScriptCmd:
			d.handleAdvanceScript()
		case postCommentCmd:
			d.handlePostComment(c)
		case connectCmd:
			d.handleConnect(c)
		case snapshotCmd:
			c.replyChannel <- d.state.Snapshot()
		case stopCmd:
			close(d.persistCh)
			return
		default:
			slog.Warn("Dispatcher received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (d *Dispatcher) handleConnect(c connectCmd) {
	welcome, err := domain.NewInitialStateMessage(d.state.Snapshot(), c.sessionID)
	if err != nil {
		c.errorChannel <- fmt.Errorf("failed to build initial state: %w", err)
		return
	}
	c.errorChannel <- c.register(welcome)
}

func (d *Dispatcher) handleSetMatchup(c setMatchupCmd) {
	// Wholesale replace, never a field merge.
	d.state.Matchup = c.matchup
	metrics.CommandsTotal.WithLabelValues(domain.TypeSetMatchup, "applied").Inc()

	m := c.matchup
	d.persist("matchup", func(ctx context.Context) error {
		return d.store.SaveMatchup(ctx, m)
	})
	d.publish()
}

func (d *Dispatcher) handleAdvanceScript() {
	// Monotonic increment; never clamped against the script length. Clients
	// are responsible for ignoring a cursor past the end of the script.
	d.state.ScriptCursor++
	metrics.CommandsTotal.WithLabelValues(domain.TypeAdvanceScript, "applied").Inc()

	cursor := d.state.ScriptCursor
	d.persist("script_cursor", func(ctx context.Context) error {
		return d.store.SaveScriptCursor(ctx, cursor)
	})
	d.publish()
}

func (d *Dispatcher) handlePostComment(c postCommentCmd) {
	d.state.AppendComment(domain.Comment{SenderID: c.sessionID, Text: c.text})
	metrics.CommandsTotal.WithLabelValues(domain.TypePostComment, "applied").Inc()

	comments := d.state.Snapshot().Comments
	d.persist("comments", func(ctx context.Context) error {
		return d.store.SaveComments(ctx, comments)
	})
	d.publish()
}

// publish serializes the current state once and hands it to the sink.
func (d *Dispatcher) publish() {
	message, err := domain.NewStateUpdateMessage(d.state.Snapshot())
	if err != nil {
		slog.Error("Failed to marshal state update", "error", err)
		return
	}
	d.sink.Broadcast(message)
}

// persist queues a best-effort save. Saves never gate the broadcast: a
// failure leaves the in-memory state authoritative for the process lifetime.
func (d *Dispatcher) persist(field string, save func(context.Context) error) {
	select {
	case d.persistCh <- persistJob{field: field, save: save}:
	default:
		slog.Warn("Persist queue full, dropping save", "field", field)
		metrics.PersistenceFailuresTotal.WithLabelValues(field).Inc()
	}
}

// runPersister drains the persist queue on a single goroutine, preserving
// per-field write order while keeping saves off the mutation path.
func (d *Dispatcher) runPersister() {
	for job := range d.persistCh {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := job.save(ctx); err != nil {
			slog.Error("Failed to persist room field", "field", job.field, "error", err)
			metrics.PersistenceFailuresTotal.WithLabelValues(job.field).Inc()
		}
		cancel()
	}
}
