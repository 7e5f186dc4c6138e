package page

import "github.com/rubiojr/indexify/pkg/api"

// Messages shown in the error slot.
const (
	MsgSearchFailed   = "search failed"
	MsgMissingResults = "no results received from server"
	MsgNoResults      = "no results found for your search"
	MsgSaveFailedFmt  = "results shown but not saved: %v"
)

// SearchError is the single error slot of the page. Soft marks the
// informational "no results" message.
type SearchError struct {
	Message string
	Show    bool
	Soft    bool
}

// State is a point-in-time copy of everything the page renders.
type State struct {
	Query           string
	Results         []api.SearchResult
	Loading         bool
	Error           SearchError
	History         []string
	Suggestions     []api.Suggestion
	ShowSuggestions bool
	Location        string
}

// ShowHistory reports whether the recent-searches dropdown is rendered: only
// with an empty box and the suggestion panel closed.
func (s State) ShowHistory() bool {
	return len(s.History) > 0 && !s.ShowSuggestions && s.Query == ""
}

// SuggestionPanel reports whether the suggestion dropdown is rendered.
func (s State) SuggestionPanel() bool {
	return s.ShowSuggestions && len(s.Suggestions) > 0
}
