// Package harvest walks a news search backwards through time, cleans every
// story it finds and hands each batch to a sink.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newsharvest/pkg/extract"
	"newsharvest/pkg/news"
	"newsharvest/pkg/query"
)

const (
	DefaultLimit = 100

	// CursorMargin keeps the boundary story out of the next window.
	CursorMargin = time.Minute
)

// ErrStalled is returned when a non-empty batch would not move the window's
// upper bound backwards, which would otherwise repeat the same query forever.
var ErrStalled = errors.New("harvest: window did not move backwards")

// Sink receives the articles of one batch.
type Sink interface {
	Append(articles []news.Article) error
}

type Options struct {
	// Query is sent to the search provider unchanged.
	Query string

	// Limit caps the headlines returned per search call.
	Limit int

	// Filter, when set, drops headlines whose text does not match. It runs
	// after the next window is computed so skipped headlines still move the cursor.
	Filter *query.Expr
}

// Stats summarises a run.
type Stats struct {
	Batches   int
	Headlines int
	Articles  int
}

// StepResult is the outcome of one search window.
type StepResult struct {
	Next      news.Window
	Headlines int
	Articles  []news.Article
}

// Harvester holds the collaborators of one run. All cursor state lives in
// the window passed to Run and Step.
type Harvester struct {
	search news.NewsSearch
	fetch  news.DocumentFetch
	sink   Sink
	opts   Options
	logger *zap.Logger
}

func New(search news.NewsSearch, fetch news.DocumentFetch, sink Sink, opts Options, logger *zap.Logger) *Harvester {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		search: search,
		fetch:  fetch,
		sink:   sink,
		opts:   opts,
		logger: logger,
	}
}

// NextWindow narrows w after a search returned batch. A non-empty batch moves
// the upper bound to one minute before its last (oldest) headline, at second
// precision. An empty batch closes the window.
func NextWindow(w news.Window, batch []news.Headline) news.Window {
	if len(batch) == 0 {
		return news.Window{From: w.From, To: w.From}
	}

	oldest := batch[len(batch)-1].Created
	return news.Window{
		From: w.From,
		To:   oldest.Add(-CursorMargin).UTC().Truncate(time.Second),
	}
}

// Step runs one search over w, fetches and cleans every story and returns
// the window for the next call. Search and fetch errors are not retried.
func (h *Harvester) Step(ctx context.Context, w news.Window) (StepResult, error) {
	h.logger.Debug("Extracting headlines")
	batch, err := h.search.Search(ctx, news.SearchRequest{
		Query:  h.opts.Query,
		Limit:  h.opts.Limit,
		Window: w,
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to search %s..%s: %w", formatBound(w.From), formatBound(w.To), err)
	}
	h.logger.Debug("Extracted headlines", zap.Int("count", len(batch)))

	next := NextWindow(w, batch)
	if len(batch) > 0 && !next.To.Before(w.To) {
		return StepResult{}, fmt.Errorf("%w: oldest headline %s is after %s",
			ErrStalled, batch[len(batch)-1].Created.UTC().Format(time.RFC3339), formatBound(w.To))
	}

	h.logger.Debug("Retrieving and cleaning articles' texts")
	articles := make([]news.Article, 0, len(batch))
	for _, headline := range batch {
		if h.opts.Filter != nil && !h.opts.Filter.Match(headline.Text) {
			h.logger.Debug("Skipping headline", zap.String("id", headline.ID), zap.String("headline", headline.Text))
			continue
		}

		doc, err := h.fetch.Fetch(ctx, headline.ID)
		if err != nil {
			return StepResult{}, fmt.Errorf("failed to fetch story %s: %w", headline.ID, err)
		}

		articles = append(articles, news.Article{
			ID:       headline.ID,
			Created:  headline.Created,
			Headline: headline.Text,
			Body:     extract.Body(doc),
		})
	}
	h.logger.Debug("Retrieved and cleaned articles' texts", zap.Int("count", len(articles)))

	return StepResult{Next: next, Headlines: len(batch), Articles: articles}, nil
}

// Run steps through w until it closes, appending each batch to the sink
// once all of its stories are cleaned. The first error ends the run; batches
// already appended stay in the sink.
func (h *Harvester) Run(ctx context.Context, w news.Window) (Stats, error) {
	var stats Stats

	for w.Open() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		h.logger.Info("Getting data",
			zap.String("from", formatBound(w.From)),
			zap.String("to", formatBound(w.To)),
		)

		result, err := h.Step(ctx, w)
		if err != nil {
			return stats, err
		}

		if err := h.sink.Append(result.Articles); err != nil {
			return stats, fmt.Errorf("failed to save batch ending %s: %w", formatBound(w.To), err)
		}

		stats.Batches++
		stats.Headlines += result.Headlines
		stats.Articles += len(result.Articles)

		h.logger.Info("Saved batch",
			zap.Int("headlines", result.Headlines),
			zap.Int("articles", len(result.Articles)),
		)

		w = result.Next
	}

	h.logger.Info("All data is saved",
		zap.Int("batches", stats.Batches),
		zap.Int("articles", stats.Articles),
	)
	return stats, nil
}

func formatBound(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}
