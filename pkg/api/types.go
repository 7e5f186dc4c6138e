package api

import "fmt"

// SearchResult is a single document returned by the search endpoint.
type SearchResult struct {
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Keywords []string `json:"keywords,omitempty"`
	// Content is the link (URL or path) to the full document.
	Content string `json:"content"`
	// Score is informational; backends are free to omit it.
	Score *float64 `json:"score,omitempty"`
}

// Suggestion is an autocomplete candidate.
type Suggestion struct {
	Text     string `json:"text"`
	Count    int    `json:"count"`
	Trending bool   `json:"trending"`
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
	Size  int    `json:"size"`
}

// SearchResponse is the success body of POST /api/search. Results is nil
// when the field is missing (or null) in the response.
type SearchResponse struct {
	Results *[]SearchResult `json:"results"`
}

// SuggestionsResponse is the success body of GET /api/suggestions.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// errorBody is the failure body shape of both endpoints.
type errorBody struct {
	Detail string `json:"detail"`
}

// Error is returned for non-2xx responses. Detail holds the backend's
// "detail" field and is empty when the body carried none.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}
