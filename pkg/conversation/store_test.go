package conversation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/answerstream/pkg/events"
	"github.com/go-go-golems/answerstream/pkg/session"
)

func TestTurnIDsAreMonotonic(t *testing.T) {
	s := NewStore()
	userID := s.AppendUserTurn("hello")
	asstID := s.AppendAssistantPlaceholder()
	require.Less(t, userID, asstID)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, StatusComplete, turns[0].Status)
	assert.Equal(t, RoleAssistant, turns[1].Role)
	assert.Equal(t, StatusPending, turns[1].Status)
	require.NotNil(t, turns[1].Session)
}

func TestUpdateTurnPatches(t *testing.T) {
	s := NewStore()
	id := s.AppendAssistantPlaceholder()

	streaming := StatusStreaming
	chunk := "The "
	require.NoError(t, s.UpdateTurn(id, TurnPatch{AppendText: &chunk, Status: &streaming}))
	chunk2 := "answer."
	require.NoError(t, s.UpdateTurn(id, TurnPatch{AppendText: &chunk2}))

	turn, ok := s.Turn(id)
	require.True(t, ok)
	assert.Equal(t, "The answer.", turn.Text)
	assert.Equal(t, StatusStreaming, turn.Status)

	failText := "failure"
	failed := StatusFailed
	require.NoError(t, s.UpdateTurn(id, TurnPatch{SetText: &failText, Status: &failed}))
	turn, _ = s.Turn(id)
	assert.Equal(t, "failure", turn.Text)
	assert.Equal(t, StatusFailed, turn.Status)
}

func TestUpdateTurnUnknownID(t *testing.T) {
	s := NewStore()
	err := s.UpdateTurn(42, TurnPatch{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTurnNotFound))
}

func TestSnapshotsAreCopyOnWrite(t *testing.T) {
	s := NewStore()
	id := s.AppendAssistantPlaceholder()

	st := session.Apply(session.State{}, events.SearchStart{Query: "cats"})
	require.NoError(t, s.UpdateTurn(id, TurnPatch{Session: &st}))

	before := s.Turns()
	reader := before[0].Session

	next := session.Apply(st, events.QueryGenerated{Query: "A", Type: events.QuerySub})
	require.NoError(t, s.UpdateTurn(id, TurnPatch{Session: &next}))

	// The reader's snapshot is untouched by the later write.
	require.Empty(t, reader.SubQueries)
	current, _ := s.Turn(id)
	require.Equal(t, []string{"A"}, current.Session.SubQueries)
}

func TestResumeTokenLifecycle(t *testing.T) {
	s := NewStore()
	require.Empty(t, s.ResumeToken())

	s.SetResumeToken("cp-1")
	require.Equal(t, "cp-1", s.ResumeToken())

	// Empty updates never clear an issued token.
	s.SetResumeToken("")
	require.Equal(t, "cp-1", s.ResumeToken())

	s.SetResumeToken("cp-2")
	require.Equal(t, "cp-2", s.ResumeToken())
}

func TestResetStartsFreshConversation(t *testing.T) {
	s := NewStore()
	oldID := s.ID()
	first := s.AppendUserTurn("hi")
	s.SetResumeToken("cp-1")

	s.Reset()
	require.Empty(t, s.Turns())
	require.Empty(t, s.ResumeToken())
	require.NotEqual(t, oldID, s.ID())

	// Ids are never reused across a reset.
	next := s.AppendUserTurn("again")
	require.Greater(t, next, first)
}
