package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Marshal renders a canonical event as one wire frame. Used by the scripted
// dev producer and by tests; the decoder accepts every frame Marshal emits.
func Marshal(ev Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case Checkpoint:
		payload = struct {
			Type         string `json:"type"`
			CheckpointID string `json:"checkpoint_id"`
		}{"checkpoint", e.CheckpointID}
	case SearchStart:
		payload = struct {
			Type  string `json:"type"`
			Query string `json:"query"`
		}{"search_start", e.Query}
	case QueryGenerated:
		payload = struct {
			Type      string `json:"type"`
			Query     string `json:"query"`
			QueryType string `json:"query_type"`
		}{"query_generated", e.Query, string(e.Type)}
	case ReadingStart:
		payload = struct {
			Type string `json:"type"`
		}{"reading_start"}
	case SourceFound:
		switch {
		case e.Web != nil:
			payload = struct {
				Type   string    `json:"type"`
				Source WebSource `json:"source"`
			}{"source_found", *e.Web}
		case e.Document != nil:
			payload = struct {
				Type   string         `json:"type"`
				Source DocumentSource `json:"source"`
			}{"source_found", *e.Document}
		default:
			return nil, errors.New("marshal source_found: empty source")
		}
	case WritingStart:
		payload = struct {
			Type string `json:"type"`
		}{"writing_start"}
	case Content:
		payload = struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}{"content", e.Text}
	case End:
		payload = struct {
			Type string `json:"type"`
		}{"end"}
	case SearchError:
		payload = struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}{"search_error", e.Message}
	default:
		return nil, errors.Errorf("marshal: unhandled event kind %q", ev.Kind())
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return b, nil
}
