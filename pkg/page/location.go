package page

import (
	"fmt"
	"net/url"
	"sync"
)

// QueryParam is the location parameter holding the searched text.
const QueryParam = "q"

// Location is the address of the page. It seeds the first search and is
// updated after every successful one.
type Location interface {
	Query() string
	SetQuery(q string)
	String() string
}

// URLLocation is a Location backed by a URL.
type URLLocation struct {
	mu sync.RWMutex
	u  *url.URL
}

// ParseLocation parses raw (for example "indexify:/?q=macbook" or just
// "?q=macbook") into a URLLocation.
func ParseLocation(raw string) (*URLLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing location %q: %w", raw, err)
	}
	return &URLLocation{u: u}, nil
}

// NewLocation returns a location carrying q, or an empty one when q is "".
func NewLocation(q string) *URLLocation {
	l := &URLLocation{u: &url.URL{}}
	if q != "" {
		l.SetQuery(q)
	}
	return l
}

func (l *URLLocation) Query() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.Query().Get(QueryParam)
}

// SetQuery replaces the q parameter, keeping any other parameters.
func (l *URLLocation) SetQuery(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	values := l.u.Query()
	values.Set(QueryParam, q)
	l.u.RawQuery = values.Encode()
}

func (l *URLLocation) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.u.String()
}
