package session

import (
	"github.com/go-go-golems/answerstream/pkg/events"
)

// Apply folds one event into a session state and returns the result. It is
// total over the event model, idempotent under duplicate delivery, and
// monotonic: stages and the query/source collections only grow. That makes
// it safe to replay a buffered tail after a reconnect, since the transport
// only guarantees ordering within one physical connection.
//
// Checkpoint and Content are session no-ops: the resume token is
// conversation-scoped and answer text belongs to the owning turn. Both are
// routed by the stream controller instead.
func Apply(s State, ev events.Event) State {
	switch e := ev.(type) {
	case events.SearchStart:
		out := s.clone()
		out.addStage(StageSearching)
		out.OriginalQuery = e.Query
		return out
	case events.QueryGenerated:
		out := s.clone()
		out.addStage(StageSearching)
		if e.Type == events.QueryOriginal {
			// The producer may refine the canonical query; overwrite is allowed.
			out.OriginalQuery = e.Query
			return out
		}
		for _, q := range out.SubQueries {
			if q == e.Query {
				return out
			}
		}
		out.SubQueries = append(out.SubQueries, e.Query)
		return out
	case events.ReadingStart:
		out := s.clone()
		out.addStage(StageReading)
		return out
	case events.SourceFound:
		out := s.clone()
		switch {
		case e.Web != nil:
			out.mergeWebSource(*e.Web)
		case e.Document != nil:
			out.mergeDocumentSource(*e.Document)
		}
		return out
	case events.WritingStart:
		out := s.clone()
		out.addStage(StageWriting)
		return out
	case events.End:
		// Some producers finish without an explicit writing_start.
		out := s.clone()
		out.addStage(StageWriting)
		return out
	case events.SearchError:
		out := s.clone()
		out.addStage(StageError)
		out.Err = e.Message
		return out
	default:
		return s
	}
}

// mergeWebSource deduplicates by URL, first seen wins. A duplicate may still
// fill in enrichment (title/score) the first sighting lacked; it never
// overwrites enrichment already present.
func (s *State) mergeWebSource(src events.WebSource) {
	for i, existing := range s.WebSources {
		if existing.URL != src.URL {
			continue
		}
		if existing.Title == "" && src.Title != "" {
			s.WebSources[i].Title = src.Title
		}
		if existing.Score == 0 && src.Score != 0 {
			s.WebSources[i].Score = src.Score
		}
		return
	}
	s.WebSources = append(s.WebSources, src)
}

func (s *State) mergeDocumentSource(src events.DocumentSource) {
	for _, existing := range s.DocumentSources {
		if existing.Filename == src.Filename {
			return
		}
	}
	s.DocumentSources = append(s.DocumentSources, src)
}
