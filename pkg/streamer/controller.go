package streamer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/answerstream/pkg/conversation"
	"github.com/go-go-golems/answerstream/pkg/events"
	"github.com/go-go-golems/answerstream/pkg/session"
)

// State tracks the controller through one stream's lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedSuccess
	StateClosedError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedSuccess:
		return "closed(success)"
	case StateClosedError:
		return "closed(error)"
	default:
		return "unknown"
	}
}

// User-visible failure messages. Deliberately static and non-technical.
const (
	failedStreamMessage  = "Sorry, there was an error processing your request."
	failedConnectMessage = "Sorry, there was an error connecting to the server."

	connectionErrorAnnotation  = "Connection error"
	connectionFailedAnnotation = "Connection failed"
)

// ErrStreamActive is returned when Submit is called while a previous stream
// is still open. A stale stream is never silently orphaned; callers must
// wait for the current one to close.
var ErrStreamActive = errors.New("a stream is already active for this conversation")

// TurnLog receives terminal turn snapshots (complete or failed) for
// persistence. Save errors are logged, never propagated into the stream.
type TurnLog interface {
	Save(ctx context.Context, convID string, turn conversation.Turn) error
}

// Controller opens one push connection per submitted query and drives the
// merge engine against the assistant turn it created. Frames are consumed
// by a single goroutine, so no two frames for the same turn are ever
// processed concurrently.
type Controller struct {
	store     *conversation.Store
	transport Transport
	turnLog   TurnLog

	mu          sync.Mutex
	state       State
	turnID      int64
	contentSeen bool
	reader      FrameReader
	done        chan struct{}
}

type Option func(*Controller)

// WithTurnLog attaches a persistence observer for terminal turns.
func WithTurnLog(tl TurnLog) Option {
	return func(c *Controller) { c.turnLog = tl }
}

func NewController(store *conversation.Store, transport Transport, opts ...Option) *Controller {
	c := &Controller{store: store, transport: transport, state: StateIdle}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit records the user turn plus an assistant placeholder, opens the
// stream and starts consuming it. It returns the assistant turn id. Setup
// failures surface synchronously: the placeholder is marked failed with a
// fixed message before Submit returns.
func (c *Controller) Submit(ctx context.Context, text string) (int64, error) {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return 0, ErrStreamActive
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.store.AppendUserTurn(text)
	turnID := c.store.AppendAssistantPlaceholder()

	req := OpenRequest{Message: text, CheckpointID: c.store.ResumeToken()}
	reader, err := c.transport.Open(ctx, req)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "streamer").
			Int64("turn_id", turnID).
			Msg("stream setup failed")
		c.failTurn(ctx, turnID, failedConnectMessage, connectionFailedAnnotation)
		c.setState(StateClosedError)
		return turnID, errors.Wrap(err, "open stream")
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.state = StateOpen
	c.turnID = turnID
	c.contentSeen = false
	c.reader = reader
	c.done = done
	c.mu.Unlock()

	log.Debug().
		Str("component", "streamer").
		Int64("turn_id", turnID).
		Bool("resuming", req.CheckpointID != "").
		Msg("stream open")

	go c.consume(ctx, reader, turnID, done)
	return turnID, nil
}

// Wait blocks until the currently open stream (if any) has closed.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close tears down an open connection. This is the only cancellation
// primitive; the producer is not notified beyond the connection closing.
func (c *Controller) Close() {
	c.mu.Lock()
	reader := c.reader
	c.reader = nil
	c.mu.Unlock()
	if reader != nil {
		_ = reader.Close()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) consume(ctx context.Context, reader FrameReader, turnID int64, done chan struct{}) {
	defer close(done)
	defer func() { _ = reader.Close() }()

	st := session.State{}
	if turn, ok := c.store.Turn(turnID); ok && turn.Session != nil {
		st = *turn.Session
	}

	for {
		frame, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				// Deliberate teardown, not a failure: leave the turn as-is.
				log.Debug().
					Str("component", "streamer").
					Int64("turn_id", turnID).
					Msg("stream canceled")
				c.setState(StateClosedError)
				return
			}
			// io.EOF without an end event means the producer dropped the
			// connection mid-answer; both take the transport-error path.
			c.handleTransportError(ctx, turnID, st, err)
			return
		}

		evs, err := events.Decode(frame)
		if err != nil {
			// A single undecodable frame never terminates the connection.
			log.Warn().Err(err).
				Str("component", "streamer").
				Int64("turn_id", turnID).
				Msg("skipping undecodable frame")
			continue
		}
		for _, ev := range evs {
			finished := c.dispatch(ctx, turnID, &st, ev)
			if finished {
				c.setState(StateClosedSuccess)
				return
			}
		}
	}
}

// dispatch routes one event: checkpoint and content touch conversation and
// turn state directly, everything else goes through the reducer with the
// result written back copy-on-write. Returns true on the terminal end event.
func (c *Controller) dispatch(ctx context.Context, turnID int64, st *session.State, ev events.Event) bool {
	switch e := ev.(type) {
	case events.Checkpoint:
		c.store.SetResumeToken(e.CheckpointID)
	case events.Content:
		c.mu.Lock()
		c.contentSeen = true
		c.mu.Unlock()
		streaming := conversation.StatusStreaming
		if err := c.store.UpdateTurn(turnID, conversation.TurnPatch{AppendText: &e.Text, Status: &streaming}); err != nil {
			log.Warn().Err(err).Str("component", "streamer").Msg("append content failed")
		}
	case events.End:
		*st = session.Apply(*st, ev)
		snap := *st
		complete := conversation.StatusComplete
		if err := c.store.UpdateTurn(turnID, conversation.TurnPatch{Status: &complete, Session: &snap}); err != nil {
			log.Warn().Err(err).Str("component", "streamer").Msg("complete turn failed")
		}
		log.Debug().
			Str("component", "streamer").
			Int64("turn_id", turnID).
			Msg("stream complete")
		c.recordTurn(ctx, turnID)
		return true
	default:
		*st = session.Apply(*st, ev)
		snap := *st
		if err := c.store.UpdateTurn(turnID, conversation.TurnPatch{Session: &snap}); err != nil {
			log.Warn().Err(err).Str("component", "streamer").Msg("session write-back failed")
		}
	}
	return false
}

// handleTransportError applies the failure policy: with no content streamed
// yet the turn fails with a fixed message; once partial output exists it is
// preserved as-is rather than destroyed by a late disconnect.
func (c *Controller) handleTransportError(ctx context.Context, turnID int64, st session.State, cause error) {
	c.mu.Lock()
	seen := c.contentSeen
	c.mu.Unlock()

	if seen {
		log.Warn().Err(cause).
			Str("component", "streamer").
			Int64("turn_id", turnID).
			Msg("stream dropped after partial answer; preserving output")
		c.setState(StateClosedError)
		return
	}

	log.Warn().Err(cause).
		Str("component", "streamer").
		Int64("turn_id", turnID).
		Msg("stream dropped before any content")
	annotated := session.Apply(st, events.SearchError{Message: connectionErrorAnnotation})
	failed := conversation.StatusFailed
	msg := failedStreamMessage
	if err := c.store.UpdateTurn(turnID, conversation.TurnPatch{
		SetText: &msg,
		Status:  &failed,
		Session: &annotated,
	}); err != nil {
		log.Warn().Err(err).Str("component", "streamer").Msg("fail turn failed")
	}
	c.setState(StateClosedError)
	c.recordTurn(ctx, turnID)
}

// failTurn handles setup errors, where no session progress exists yet.
func (c *Controller) failTurn(ctx context.Context, turnID int64, message, annotation string) {
	st := session.State{}
	if turn, ok := c.store.Turn(turnID); ok && turn.Session != nil {
		st = *turn.Session
	}
	annotated := session.Apply(st, events.SearchError{Message: annotation})
	failed := conversation.StatusFailed
	if err := c.store.UpdateTurn(turnID, conversation.TurnPatch{
		SetText: &message,
		Status:  &failed,
		Session: &annotated,
	}); err != nil {
		log.Warn().Err(err).Str("component", "streamer").Msg("fail turn failed")
	}
	c.recordTurn(ctx, turnID)
}

func (c *Controller) recordTurn(ctx context.Context, turnID int64) {
	if c.turnLog == nil {
		return
	}
	turn, ok := c.store.Turn(turnID)
	if !ok {
		return
	}
	if err := c.turnLog.Save(ctx, c.store.ID(), turn); err != nil {
		log.Warn().Err(err).
			Str("component", "streamer").
			Int64("turn_id", turnID).
			Msg("turn log save failed")
	}
}
