// Package panel holds the analysis panel's state and sequences the pipeline:
// readiness, field catalog, request building, scoring, and display.
package panel

import (
	"github.com/hpungsan/cohesion/internal/catalog"
	"github.com/hpungsan/cohesion/internal/request"
	"github.com/hpungsan/cohesion/internal/scoring"
)

// Selection is the user's choice of columns and aggregation method.
type Selection struct {
	CategoryFieldID string         `json:"category_field_id"`
	ItemsFieldID    string         `json:"items_field_id"`
	Method          request.Method `json:"method"`
}

// CanAnalyze reports whether sel may trigger an analysis: both fields set
// and distinct. Cell contents are checked later, when the request is built.
func CanAnalyze(sel Selection) bool {
	return sel.CategoryFieldID != "" &&
		sel.ItemsFieldID != "" &&
		sel.CategoryFieldID != sel.ItemsFieldID
}

// State is everything the panel surface displays.
type State struct {
	Ready     bool                      `json:"ready"`
	Options   []catalog.FieldDescriptor `json:"options"`
	Selection Selection                 `json:"selection"`

	TriggerEnabled bool `json:"trigger_enabled"`
	Loading        bool `json:"loading"`
	ShowResult     bool `json:"show_result"`
	ShowError      bool `json:"show_error"`

	Result       *scoring.View `json:"result,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorAdvice  string        `json:"error_advice,omitempty"`
}

// clone returns a copy that shares no mutable slices with s.
func (s State) clone() State {
	out := s
	out.Options = append([]catalog.FieldDescriptor(nil), s.Options...)
	if s.Result != nil {
		v := *s.Result
		v.Rows = append([]scoring.Row(nil), s.Result.Rows...)
		out.Result = &v
	}
	return out
}

// hasOption reports whether id is one of the loaded fields.
func (s State) hasOption(id string) bool {
	for _, o := range s.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// resolveOption finds a loaded field by id, falling back to an exact name match.
func (s State) resolveOption(ref string) (catalog.FieldDescriptor, bool) {
	for _, o := range s.Options {
		if o.ID == ref {
			return o, true
		}
	}
	for _, o := range s.Options {
		if o.Name == ref {
			return o, true
		}
	}
	return catalog.FieldDescriptor{}, false
}

func (s *State) refreshTrigger() {
	s.TriggerEnabled = s.Ready && !s.Loading && CanAnalyze(s.Selection)
}
