package streamer

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/answerstream/pkg/conversation"
	"github.com/go-go-golems/answerstream/pkg/events"
	"github.com/go-go-golems/answerstream/pkg/session"
)

type scriptReader struct {
	frames   [][]byte
	i        int
	terminal error // returned once frames are drained; nil means io.EOF
	block    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptReader(terminal error, frames ...[]byte) *scriptReader {
	return &scriptReader{frames: frames, terminal: terminal, closed: make(chan struct{})}
}

func (r *scriptReader) Next() ([]byte, error) {
	if r.i < len(r.frames) {
		f := r.frames[r.i]
		r.i++
		return f, nil
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-r.closed:
		}
	}
	if r.terminal != nil {
		return nil, r.terminal
	}
	return nil, io.EOF
}

func (r *scriptReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

type fakeTransport struct {
	mu      sync.Mutex
	reqs    []OpenRequest
	openErr error
	readers []*scriptReader
}

func (t *fakeTransport) Open(_ context.Context, req OpenRequest) (FrameReader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reqs = append(t.reqs, req)
	if t.openErr != nil {
		return nil, t.openErr
	}
	if len(t.readers) == 0 {
		panic("fake transport: no scripted reader left")
	}
	r := t.readers[0]
	t.readers = t.readers[1:]
	return r, nil
}

type recordedTurn struct {
	convID string
	turn   conversation.Turn
}

type fakeTurnLog struct {
	mu    sync.Mutex
	saved []recordedTurn
}

func (l *fakeTurnLog) Save(_ context.Context, convID string, turn conversation.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saved = append(l.saved, recordedTurn{convID: convID, turn: turn})
	return nil
}

func (l *fakeTurnLog) all() []recordedTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedTurn(nil), l.saved...)
}

func frame(t *testing.T, ev events.Event) []byte {
	t.Helper()
	b, err := events.Marshal(ev)
	require.NoError(t, err)
	return b
}

func fullAnswerFrames(t *testing.T) [][]byte {
	t.Helper()
	return [][]byte{
		frame(t, events.Checkpoint{CheckpointID: "cp-1"}),
		frame(t, events.SearchStart{Query: "cats"}),
		frame(t, events.QueryGenerated{Query: "cats", Type: events.QueryOriginal}),
		frame(t, events.ReadingStart{}),
		frame(t, events.SourceFound{Web: &events.WebSource{URL: "https://a.com", Domain: "a.com"}}),
		frame(t, events.WritingStart{}),
		frame(t, events.Content{Text: "The "}),
		frame(t, events.Content{Text: "answer."}),
		frame(t, events.End{}),
	}
}

func TestControllerTerminationScenario(t *testing.T) {
	store := conversation.NewStore()
	tr := &fakeTransport{readers: []*scriptReader{newScriptReader(nil, fullAnswerFrames(t)...)}}
	c := NewController(store, tr)

	turnID, err := c.Submit(context.Background(), "cats")
	require.NoError(t, err)
	c.Wait()

	require.Equal(t, StateClosedSuccess, c.State())
	turn, ok := store.Turn(turnID)
	require.True(t, ok)
	assert.Equal(t, "The answer.", turn.Text)
	assert.Equal(t, conversation.StatusComplete, turn.Status)
	require.NotNil(t, turn.Session)
	assert.Equal(t, []session.Stage{session.StageSearching, session.StageReading, session.StageWriting}, turn.Session.Stages)
	require.Len(t, turn.Session.WebSources, 1)
	assert.Equal(t, events.WebSource{URL: "https://a.com", Domain: "a.com"}, turn.Session.WebSources[0])
	assert.Equal(t, "cp-1", store.ResumeToken())

	// The user turn precedes the assistant turn.
	turns := store.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, conversation.RoleUser, turns[0].Role)
	assert.Equal(t, "cats", turns[0].Text)
}

func TestControllerPartialFailurePreserved(t *testing.T) {
	store := conversation.NewStore()
	reader := newScriptReader(errors.New("connection reset"),
		frame(t, events.Content{Text: "Partial"}),
	)
	c := NewController(store, &fakeTransport{readers: []*scriptReader{reader}})

	turnID, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)
	c.Wait()

	require.Equal(t, StateClosedError, c.State())
	turn, _ := store.Turn(turnID)
	assert.Equal(t, "Partial", turn.Text)
	assert.Equal(t, conversation.StatusStreaming, turn.Status, "partial output is never overwritten with a failure message")
}

func TestControllerEmptyStreamFailure(t *testing.T) {
	store := conversation.NewStore()
	reader := newScriptReader(errors.New("connection refused"))
	c := NewController(store, &fakeTransport{readers: []*scriptReader{reader}})

	turnID, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)
	c.Wait()

	turn, _ := store.Turn(turnID)
	assert.Equal(t, failedStreamMessage, turn.Text)
	assert.Equal(t, conversation.StatusFailed, turn.Status)
	require.NotNil(t, turn.Session)
	assert.Equal(t, connectionErrorAnnotation, turn.Session.Err)
	assert.True(t, turn.Session.HasStage(session.StageError))
}

func TestControllerEOFWithoutEndIsTransportError(t *testing.T) {
	store := conversation.NewStore()
	reader := newScriptReader(nil,
		frame(t, events.SearchStart{Query: "q"}),
	)
	c := NewController(store, &fakeTransport{readers: []*scriptReader{reader}})

	turnID, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)
	c.Wait()

	turn, _ := store.Turn(turnID)
	assert.Equal(t, conversation.StatusFailed, turn.Status)
	assert.Equal(t, failedStreamMessage, turn.Text)
	// Progress observed before the drop is kept alongside the annotation.
	assert.True(t, turn.Session.HasStage(session.StageSearching))
	assert.True(t, turn.Session.HasStage(session.StageError))
}

func TestControllerSetupError(t *testing.T) {
	store := conversation.NewStore()
	c := NewController(store, &fakeTransport{openErr: errors.New("no route to host")})

	turnID, err := c.Submit(context.Background(), "q")
	require.Error(t, err)
	require.Equal(t, StateClosedError, c.State())

	turn, ok := store.Turn(turnID)
	require.True(t, ok)
	assert.Equal(t, failedConnectMessage, turn.Text)
	assert.Equal(t, conversation.StatusFailed, turn.Status)
	assert.Equal(t, connectionFailedAnnotation, turn.Session.Err)

	// A failed setup leaves the controller submittable again.
	_, err = c.Submit(context.Background(), "q2")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrStreamActive)
}

func TestControllerRejectsConcurrentSubmit(t *testing.T) {
	store := conversation.NewStore()
	release := make(chan struct{})
	blocked := newScriptReader(nil)
	blocked.block = release
	c := NewController(store, &fakeTransport{readers: []*scriptReader{blocked}})

	_, err := c.Submit(context.Background(), "first")
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "second")
	require.ErrorIs(t, err, ErrStreamActive)

	close(release)
	c.Wait()
}

func TestControllerSkipsUndecodableFrames(t *testing.T) {
	store := conversation.NewStore()
	reader := newScriptReader(nil,
		[]byte(`{"type":`),
		[]byte(`{"type":"mystery"}`),
		frame(t, events.Content{Text: "ok"}),
		frame(t, events.End{}),
	)
	c := NewController(store, &fakeTransport{readers: []*scriptReader{reader}})

	turnID, err := c.Submit(context.Background(), "q")
	require.NoError(t, err)
	c.Wait()

	turn, _ := store.Turn(turnID)
	assert.Equal(t, "ok", turn.Text)
	assert.Equal(t, conversation.StatusComplete, turn.Status)
}

func TestControllerAttachesResumeToken(t *testing.T) {
	store := conversation.NewStore()
	tr := &fakeTransport{readers: []*scriptReader{
		newScriptReader(nil,
			frame(t, events.Checkpoint{CheckpointID: "cp-7"}),
			frame(t, events.End{}),
		),
		newScriptReader(nil, frame(t, events.End{})),
	}}
	c := NewController(store, tr)

	_, err := c.Submit(context.Background(), "first")
	require.NoError(t, err)
	c.Wait()

	_, err = c.Submit(context.Background(), "second")
	require.NoError(t, err)
	c.Wait()

	require.Len(t, tr.reqs, 2)
	assert.Empty(t, tr.reqs[0].CheckpointID, "no token before the producer issues one")
	assert.Equal(t, "cp-7", tr.reqs[1].CheckpointID)
}

func TestControllerRecordsTerminalTurns(t *testing.T) {
	store := conversation.NewStore()
	tl := &fakeTurnLog{}
	tr := &fakeTransport{readers: []*scriptReader{
		newScriptReader(nil, fullAnswerFrames(t)...),
		newScriptReader(errors.New("dropped")),
	}}
	c := NewController(store, tr, WithTurnLog(tl))

	_, err := c.Submit(context.Background(), "first")
	require.NoError(t, err)
	c.Wait()

	_, err = c.Submit(context.Background(), "second")
	require.NoError(t, err)
	c.Wait()

	saved := tl.all()
	require.Len(t, saved, 2)
	assert.Equal(t, store.ID(), saved[0].convID)
	assert.Equal(t, conversation.StatusComplete, saved[0].turn.Status)
	assert.Equal(t, conversation.StatusFailed, saved[1].turn.Status)
}
