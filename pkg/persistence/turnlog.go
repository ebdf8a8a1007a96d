// Package persistence stores terminal turn snapshots for later inspection.
// It observes the conversation store; the streaming path never depends on it.
package persistence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/answerstream/pkg/conversation"
)

// TurnRecord is one serialized turn snapshot.
type TurnRecord struct {
	ConvID      string
	TurnID      int64
	Role        string
	Status      string
	Text        string
	SessionJSON string
	CreatedAtMs int64
}

// TurnLog persists turn snapshots and lists them back per conversation,
// newest last.
type TurnLog interface {
	Save(ctx context.Context, convID string, turn conversation.Turn) error
	List(ctx context.Context, convID string, limit int) ([]TurnRecord, error)
	Close() error
}

func recordFromTurn(convID string, turn conversation.Turn) (TurnRecord, error) {
	rec := TurnRecord{
		ConvID:      convID,
		TurnID:      turn.ID,
		Role:        string(turn.Role),
		Status:      string(turn.Status),
		Text:        turn.Text,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if turn.Session != nil {
		b, err := json.Marshal(turn.Session)
		if err != nil {
			return TurnRecord{}, errors.Wrap(err, "marshal session snapshot")
		}
		rec.SessionJSON = string(b)
	}
	return rec, nil
}

// InMemoryTurnLog is a size-limited TurnLog for tests and ephemeral runs.
type InMemoryTurnLog struct {
	mu      sync.Mutex
	maxRecs int
	records []TurnRecord
}

var _ TurnLog = &InMemoryTurnLog{}

func NewInMemoryTurnLog(maxRecords int) *InMemoryTurnLog {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &InMemoryTurnLog{maxRecs: maxRecords}
}

func (l *InMemoryTurnLog) Save(_ context.Context, convID string, turn conversation.Turn) error {
	if convID == "" {
		return errors.New("in-memory turn log: convID is empty")
	}
	rec, err := recordFromTurn(convID, turn)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.maxRecs {
		l.records = l.records[len(l.records)-l.maxRecs:]
	}
	return nil
}

func (l *InMemoryTurnLog) List(_ context.Context, convID string, limit int) ([]TurnRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []TurnRecord
	for _, rec := range l.records {
		if convID != "" && rec.ConvID != convID {
			continue
		}
		out = append(out, rec)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *InMemoryTurnLog) Close() error { return nil }
