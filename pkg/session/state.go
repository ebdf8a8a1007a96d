// Package session holds the per-turn aggregate of search/answer progress and
// the reducer that folds stream events into it.
package session

import (
	"slices"

	"github.com/go-go-golems/answerstream/pkg/events"
)

// Stage is a coarse progress phase surfaced to the user.
type Stage string

const (
	StageSearching Stage = "searching"
	StageReading   Stage = "reading"
	StageWriting   Stage = "writing"
	StageError     Stage = "error"
)

// State aggregates how one answer is being produced. States are values:
// Apply returns a fresh State and never mutates its input, so a snapshot
// handed to a reader stays valid while the stream keeps folding.
//
// Stages, SubQueries and the source lists preserve first-observed order and
// only ever grow.
type State struct {
	Stages          []Stage
	OriginalQuery   string
	SubQueries      []string
	WebSources      []events.WebSource
	DocumentSources []events.DocumentSource
	Err             string
}

// HasStage reports whether the session reached a stage.
func (s State) HasStage(stage Stage) bool {
	return slices.Contains(s.Stages, stage)
}

// clone returns a State whose slices are safe to append to without
// disturbing snapshots taken from the receiver.
func (s State) clone() State {
	out := s
	out.Stages = slices.Clone(s.Stages)
	out.SubQueries = slices.Clone(s.SubQueries)
	out.WebSources = slices.Clone(s.WebSources)
	out.DocumentSources = slices.Clone(s.DocumentSources)
	return out
}

func (s *State) addStage(stage Stage) {
	if !slices.Contains(s.Stages, stage) {
		s.Stages = append(s.Stages, stage)
	}
}
