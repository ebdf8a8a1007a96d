// Package events defines the closed set of progress events a search-answer
// stream may emit, plus the wire codec that normalizes producer frames into
// canonical events.
package events

// Kind identifies a stream event variant.
type Kind string

const (
	KindCheckpoint     Kind = "checkpoint"
	KindSearchStart    Kind = "search_start"
	KindQueryGenerated Kind = "query_generated"
	KindReadingStart   Kind = "reading_start"
	KindSourceFound    Kind = "source_found"
	KindWritingStart   Kind = "writing_start"
	KindContent        Kind = "content"
	KindEnd            Kind = "end"
	KindSearchError    Kind = "search_error"
)

// Event is one decoded unit of stream progress.
type Event interface {
	Kind() Kind
}

// QueryType distinguishes the canonical user query from generated sub-queries.
type QueryType string

const (
	QueryOriginal QueryType = "original"
	QuerySub      QueryType = "sub_query"
)

// WebSource is a web search hit. Title and Score are optional enrichment;
// some producers only send the bare URL.
type WebSource struct {
	URL    string  `json:"url"`
	Domain string  `json:"domain"`
	Title  string  `json:"title,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// DocumentSource is an uploaded document referenced during answering.
type DocumentSource struct {
	Filename string `json:"filename"`
}

// Checkpoint carries the resume token issued once per conversation.
type Checkpoint struct {
	CheckpointID string
}

// SearchStart announces that the producer began searching for a query.
type SearchStart struct {
	Query string
}

// QueryGenerated reports the canonical query or one generated sub-query.
type QueryGenerated struct {
	Query string
	Type  QueryType
}

// ReadingStart marks the transition to reading found sources.
type ReadingStart struct{}

// SourceFound reports a single source. Exactly one of Web or Document is set.
type SourceFound struct {
	Web      *WebSource
	Document *DocumentSource
}

// WritingStart marks the transition to writing the answer.
type WritingStart struct{}

// Content carries one answer-text fragment. Fragments are concatenated,
// never replaced.
type Content struct {
	Text string
}

// End is the terminal success signal.
type End struct{}

// SearchError is a producer-reported, non-fatal failure annotation.
type SearchError struct {
	Message string
}

func (Checkpoint) Kind() Kind     { return KindCheckpoint }
func (SearchStart) Kind() Kind    { return KindSearchStart }
func (QueryGenerated) Kind() Kind { return KindQueryGenerated }
func (ReadingStart) Kind() Kind   { return KindReadingStart }
func (SourceFound) Kind() Kind    { return KindSourceFound }
func (WritingStart) Kind() Kind   { return KindWritingStart }
func (Content) Kind() Kind        { return KindContent }
func (End) Kind() Kind            { return KindEnd }
func (SearchError) Kind() Kind    { return KindSearchError }
