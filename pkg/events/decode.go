package events

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownEvent is returned for frames whose type is not part of the
// event model. Callers are expected to skip such frames, not abort.
var ErrUnknownEvent = errors.New("unknown event type")

// wireFrame is the superset of fields producers put on a frame. Only the
// fields relevant to a frame's type are populated.
type wireFrame struct {
	Type         string          `json:"type"`
	CheckpointID string          `json:"checkpoint_id"`
	Query        string          `json:"query"`
	QueryType    string          `json:"query_type"`
	Source       json.RawMessage `json:"source"`
	Content      string          `json:"content"`
	Error        string          `json:"error"`

	// Legacy producer shapes, normalized into canonical events.
	URLs       json.RawMessage `json:"urls"`
	SubQueries []string        `json:"sub_queries"`
	Sources    []string        `json:"sources"`
}

type wireSource struct {
	URL      string  `json:"url"`
	Domain   string  `json:"domain"`
	Title    string  `json:"title"`
	Score    float64 `json:"score"`
	Filename string  `json:"filename"`
}

// Decode parses one wire frame into canonical events. Most frames map to a
// single event; legacy batch shapes (urls lists, sub_queries lists) expand
// into one event per entry so the merge rules stay per-entry.
//
// SSE-framed lines ("data: {...}") are accepted alongside bare JSON.
func Decode(frame []byte) ([]Event, error) {
	frame = bytes.TrimSpace(frame)
	if after, ok := bytes.CutPrefix(frame, []byte("data:")); ok {
		frame = bytes.TrimSpace(after)
	}
	if len(frame) == 0 {
		return nil, nil
	}

	var f wireFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, errors.Wrap(err, "decode frame")
	}

	var out []Event
	switch f.Type {
	case "checkpoint":
		out = append(out, Checkpoint{CheckpointID: f.CheckpointID})
	case "search_start":
		out = append(out, SearchStart{Query: f.Query})
	case "query_generated":
		qt := QuerySub
		if f.QueryType == string(QueryOriginal) {
			qt = QueryOriginal
		}
		out = append(out, QueryGenerated{Query: f.Query, Type: qt})
	case "reading_start":
		out = append(out, ReadingStart{})
	case "source_found":
		ev, err := decodeSource(f.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	case "writing_start":
		out = append(out, WritingStart{})
	case "content":
		out = append(out, Content{Text: f.Content})
	case "end":
		out = append(out, End{})
	case "search_error":
		out = append(out, SearchError{Message: f.Error})
	case "search_results":
		// Older producers report found sources in bulk together with the
		// reading transition.
		out = append(out, ReadingStart{})
	case "query_breakdown":
		for _, q := range f.SubQueries {
			out = append(out, QueryGenerated{Query: q, Type: QuerySub})
		}
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "type %q", f.Type)
	}

	urls, err := decodeURLList(f.URLs)
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		out = append(out, SourceFound{Web: &WebSource{URL: u, Domain: DomainOf(u)}})
	}
	for _, name := range f.Sources {
		out = append(out, SourceFound{Document: &DocumentSource{Filename: name}})
	}
	return out, nil
}

func decodeSource(raw json.RawMessage) (Event, error) {
	if len(raw) == 0 {
		return nil, errors.New("source_found: missing source payload")
	}
	var src wireSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, errors.Wrap(err, "decode source payload")
	}
	if src.Filename != "" {
		return SourceFound{Document: &DocumentSource{Filename: src.Filename}}, nil
	}
	if src.URL == "" {
		return nil, errors.New("source_found: source has neither url nor filename")
	}
	domain := src.Domain
	if domain == "" {
		domain = DomainOf(src.URL)
	}
	return SourceFound{Web: &WebSource{
		URL:    src.URL,
		Domain: domain,
		Title:  src.Title,
		Score:  src.Score,
	}}, nil
}

// decodeURLList accepts both a native JSON list and a JSON-stringified list,
// which some producers emit interchangeably.
func decodeURLList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		return urls, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, errors.New("urls: expected list or stringified list")
	}
	if err := json.Unmarshal([]byte(encoded), &urls); err != nil {
		return nil, errors.Wrap(err, "urls: decode stringified list")
	}
	return urls, nil
}

// DomainOf extracts a display domain from a URL, mirroring how producers
// derive it (host without the www prefix).
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Host, "www.")
}
