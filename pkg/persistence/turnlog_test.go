package persistence

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/answerstream/pkg/conversation"
	"github.com/go-go-golems/answerstream/pkg/events"
	"github.com/go-go-golems/answerstream/pkg/session"
)

func sampleTurn() conversation.Turn {
	st := session.Apply(session.State{}, events.SearchStart{Query: "cats"})
	st = session.Apply(st, events.SourceFound{Web: &events.WebSource{URL: "https://a.com", Domain: "a.com"}})
	return conversation.Turn{
		ID:      2,
		Role:    conversation.RoleAssistant,
		Text:    "The answer.",
		Status:  conversation.StatusComplete,
		Session: &st,
	}
}

func testTurnLogRoundTrip(t *testing.T, tl TurnLog) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, tl.Save(ctx, "conv-1", sampleTurn()))
	require.NoError(t, tl.Save(ctx, "conv-1", conversation.Turn{
		ID:     4,
		Role:   conversation.RoleAssistant,
		Text:   "Sorry, there was an error processing your request.",
		Status: conversation.StatusFailed,
	}))
	require.NoError(t, tl.Save(ctx, "conv-other", conversation.Turn{ID: 1, Role: conversation.RoleUser, Status: conversation.StatusComplete}))

	recs, err := tl.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].TurnID)
	assert.Equal(t, "complete", recs[0].Status)
	assert.Equal(t, "The answer.", recs[0].Text)
	assert.Equal(t, "failed", recs[1].Status)
	assert.Empty(t, recs[1].SessionJSON)

	var st session.State
	require.NoError(t, json.Unmarshal([]byte(recs[0].SessionJSON), &st))
	assert.Equal(t, "cats", st.OriginalQuery)
	require.Len(t, st.WebSources, 1)

	limited, err := tl.List(ctx, "conv-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestInMemoryTurnLog(t *testing.T) {
	testTurnLogRoundTrip(t, NewInMemoryTurnLog(100))
}

func TestSQLiteTurnLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.db")
	tl, err := NewSQLiteTurnLog(path)
	require.NoError(t, err)
	defer func() { _ = tl.Close() }()

	testTurnLogRoundTrip(t, tl)
}

func TestSQLiteTurnLogEmptyDSN(t *testing.T) {
	_, err := NewSQLiteTurnLog("  ")
	require.Error(t, err)
}

func TestInMemoryTurnLogCapsRecords(t *testing.T) {
	tl := NewInMemoryTurnLog(2)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, tl.Save(ctx, "conv-1", conversation.Turn{ID: i, Role: conversation.RoleUser, Status: conversation.StatusComplete}))
	}
	recs, err := tl.List(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(4), recs[0].TurnID)
	assert.Equal(t, int64(5), recs[1].TurnID)
}
