// Package alpaca serves news search and stories from Alpaca's market data
// news endpoint.
package alpaca

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"

	"newsharvest/pkg/news"
)

// newsGetter is the part of marketdata.Client used here.
type newsGetter interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string

	// Symbols narrows the news feed. Empty means all symbols.
	Symbols []string
}

// Client adapts Alpaca news to news.Provider. Alpaca returns story content
// with the search, so Fetch answers from the most recent batch.
type Client struct {
	md      newsGetter
	symbols []string
	logger  *zap.Logger

	stories map[string]string
}

func NewClient(config *Config, logger *zap.Logger) *Client {
	// Initialize market data client
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		BaseURL:   config.BaseURL,
	})
	return newClient(md, config.Symbols, logger)
}

func newClient(md newsGetter, symbols []string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		md:      md,
		symbols: symbols,
		logger:  logger,
		stories: map[string]string{},
	}
}

// Authenticate validates the keys with a one-item news request.
func (c *Client) Authenticate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.md.GetNews(marketdata.GetNewsRequest{Symbols: c.symbols, TotalLimit: 1}); err != nil {
		return fmt.Errorf("alpaca news request failed: %w", err)
	}
	c.logger.Info("Connected to alpaca market data", zap.Strings("symbols", c.symbols))
	return nil
}

// Search returns the newest req.Limit items inside the window. req.Query is
// not understood by Alpaca; callers filter headlines themselves.
func (c *Client) Search(ctx context.Context, req news.SearchRequest) ([]news.Headline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := c.md.GetNews(marketdata.GetNewsRequest{
		Symbols:        c.symbols,
		Start:          req.Window.From,
		End:            req.Window.To,
		Sort:           marketdata.SortDesc,
		IncludeContent: true,
		TotalLimit:     req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get alpaca news: %w", err)
	}

	c.stories = make(map[string]string, len(items))
	headlines := make([]news.Headline, 0, len(items))
	for _, item := range items {
		id := strconv.Itoa(item.ID)

		content := item.Content
		if content == "" && item.Summary != "" {
			// some sources only publish a summary
			content = "<p>" + html.EscapeString(item.Summary) + "</p>"
		}
		c.stories[id] = content

		headlines = append(headlines, news.Headline{
			ID:      id,
			Created: item.CreatedAt,
			Text:    item.Headline,
		})
	}

	return headlines, nil
}

// Fetch returns the content of an item from the last Search.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, ok := c.stories[id]
	if !ok {
		return "", fmt.Errorf("%w: %s is not in the current alpaca batch", news.ErrNotFound, id)
	}
	return content, nil
}
