// Package producer serves a scripted answer stream over HTTP. It exists for
// local development and end-to-end tests; the real search backend is an
// external collaborator with the same wire surface.
package producer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/answerstream/pkg/events"
)

// Handler streams a scripted event sequence from /chat_stream as SSE
// frames. One checkpoint id is issued per handler and replayed to every
// stream, matching the one-token-per-conversation contract.
type Handler struct {
	mux          *http.ServeMux
	script       ScriptFunc
	frameDelay   time.Duration
	checkpointID string
}

// ScriptFunc produces the event sequence for one submitted message.
type ScriptFunc func(message string) []events.Event

type HandlerOption func(*Handler)

// WithScript replaces the default canned answer script.
func WithScript(script ScriptFunc) HandlerOption {
	return func(h *Handler) { h.script = script }
}

// WithFrameDelay inserts a pause between frames so streaming is visible
// during manual testing. Tests leave it at zero.
func WithFrameDelay(d time.Duration) HandlerOption {
	return func(h *Handler) { h.frameDelay = d }
}

func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		script:       DefaultScript,
		checkpointID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc("GET /chat_stream", h.chatStream)
	h.mux.HandleFunc("GET /health", h.health)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request) {
	message := r.URL.Query().Get("message")
	if message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	seq := append([]events.Event{events.Checkpoint{CheckpointID: h.checkpointID}}, h.script(message)...)
	for _, ev := range seq {
		b, err := events.Marshal(ev)
		if err != nil {
			log.Error().Err(err).
				Str("component", "producer").
				Str("kind", string(ev.Kind())).
				Msg("marshal scripted event")
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			// Client went away mid-stream.
			log.Debug().Err(err).Str("component", "producer").Msg("stream write failed")
			return
		}
		flusher.Flush()
		if h.frameDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(h.frameDelay):
			}
		}
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// DefaultScript plays the full happy path: query analysis, two sub-queries,
// a couple of web sources, then a short streamed answer.
func DefaultScript(message string) []events.Event {
	return []events.Event{
		events.SearchStart{Query: message},
		events.QueryGenerated{Query: message, Type: events.QueryOriginal},
		events.QueryGenerated{Query: message + " overview", Type: events.QuerySub},
		events.QueryGenerated{Query: message + " recent developments", Type: events.QuerySub},
		events.ReadingStart{},
		events.SourceFound{Web: &events.WebSource{
			URL:    "https://en.wikipedia.org/wiki/Example",
			Domain: "en.wikipedia.org",
			Title:  "Example - Wikipedia",
			Score:  0.92,
		}},
		events.SourceFound{Web: &events.WebSource{
			URL:    "https://example.com/article",
			Domain: "example.com",
			Title:  "An article",
			Score:  0.81,
		}},
		events.WritingStart{},
		events.Content{Text: "Here is what I found about "},
		events.Content{Text: fmt.Sprintf("%q. ", message)},
		events.Content{Text: "This answer was produced by the scripted development producer."},
		events.End{},
	}
}
