// Package news holds the provider-neutral types shared by the harvester,
// the providers and the output sink.
package news

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a DocumentFetch that has no story for an id.
var ErrNotFound = errors.New("news: story not found")

// Window bounds one search query. Both ends are inclusive on the provider side.
type Window struct {
	From time.Time
	To   time.Time
}

// Open reports whether the window still has room to search.
func (w Window) Open() bool {
	return w.To.After(w.From)
}

// Headline is one search hit.
type Headline struct {
	ID      string
	Created time.Time
	Text    string
}

// Article is the unit persisted to the output file.
type Article struct {
	ID       string
	Created  time.Time
	Headline string
	Body     string
}

type SearchRequest struct {
	Query  string
	Limit  int
	Window Window
}

// NewsSearch returns headlines for a query inside a window, ordered so the
// last element is the oldest.
type NewsSearch interface {
	Search(ctx context.Context, req SearchRequest) ([]Headline, error)
}

// DocumentFetch returns the raw story markup for a headline id.
type DocumentFetch interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Authenticator must succeed before any search or fetch call.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Provider is what a concrete news backend offers.
type Provider interface {
	Authenticator
	NewsSearch
	DocumentFetch
}
