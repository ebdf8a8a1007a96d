// Package conversation owns the ordered list of turns for one conversation
// and the conversation-scoped resume token.
package conversation

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/answerstream/pkg/session"
)

// Role distinguishes who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks an assistant turn through its streaming lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Turn is one message in the conversation. Session is nil for user turns
// and points to an immutable session.State snapshot for assistant turns.
type Turn struct {
	ID      int64
	Role    Role
	Text    string
	Status  Status
	Session *session.State
}

// ErrTurnNotFound is returned when a patch targets an unknown turn id.
var ErrTurnNotFound = errors.New("turn not found")

// Store holds the turns of a single conversation. Turn ids are monotonically
// increasing and never reused. All methods are safe for concurrent readers;
// only the stream controller writes during a stream.
type Store struct {
	mu          sync.RWMutex
	id          string
	nextID      int64
	turns       []Turn
	resumeToken string
}

func NewStore() *Store {
	return &Store{id: uuid.NewString(), nextID: 1}
}

// ID returns the conversation id.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// AppendUserTurn records a submitted user message and returns its turn id.
func (s *Store) AppendUserTurn(text string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(Turn{Role: RoleUser, Text: text, Status: StatusComplete})
}

// AppendAssistantPlaceholder records the pending assistant turn that a
// stream will fold into, paired with the preceding user turn.
func (s *Store) AppendAssistantPlaceholder() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(Turn{Role: RoleAssistant, Status: StatusPending, Session: &session.State{}})
}

func (s *Store) append(t Turn) int64 {
	t.ID = s.nextID
	s.nextID++
	s.turns = append(s.turns, t)
	return t.ID
}

// TurnPatch describes a partial update to a turn. Nil fields are left
// untouched; AppendText concatenates rather than replaces.
type TurnPatch struct {
	AppendText *string
	SetText    *string
	Status     *Status
	Session    *session.State
}

// UpdateTurn applies a patch to one turn. The stored Session pointer is
// swapped, never mutated, so snapshots handed out earlier stay consistent.
func (s *Store) UpdateTurn(id int64, patch TurnPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.turns {
		if s.turns[i].ID != id {
			continue
		}
		if patch.SetText != nil {
			s.turns[i].Text = *patch.SetText
		}
		if patch.AppendText != nil {
			s.turns[i].Text += *patch.AppendText
		}
		if patch.Status != nil {
			s.turns[i].Status = *patch.Status
		}
		if patch.Session != nil {
			s.turns[i].Session = patch.Session
		}
		return nil
	}
	return errors.Wrapf(ErrTurnNotFound, "id %d", id)
}

// Turn returns a snapshot of one turn.
func (s *Store) Turn(id int64) (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

// Turns returns a read-only snapshot of all turns in order. The contained
// session states are immutable values; later stream progress replaces them
// instead of mutating in place.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns)
}

// ResumeToken returns the checkpoint id issued by the producer, or "" if
// none was issued yet.
func (s *Store) ResumeToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeToken
}

// SetResumeToken records the producer's checkpoint id. Empty values are
// ignored; once issued the token persists for the conversation's lifetime.
func (s *Store) SetResumeToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumeToken = token
}

// Reset starts a new conversation: clears turns, drops the resume token and
// assigns a fresh conversation id. Turn ids keep increasing so stale ids
// from before the reset never alias new turns.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.turns = nil
	s.resumeToken = ""
}
