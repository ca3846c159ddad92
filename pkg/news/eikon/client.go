// Package eikon talks to the Eikon Data API proxy that the desktop terminal
// runs locally, and exposes its news headline search and story endpoints.
package eikon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"newsharvest/pkg/news"
)

const DefaultURL string = "http://127.0.0.1:9000"

const (
	// dateFrom / dateTo shape accepted by News_Headlines
	timestampLayout = "2006-01-02T15:04:05"

	proxyReady     = "ST_PROXY_READY"
	libraryName    = "newsharvest"
	libraryVersion = "1.0.0"
)

var ErrNotAuthenticated = errors.New("eikon: Authenticate has not succeeded")

type HTTPError struct {
	StatusCode int
	Status     string
	Err        error
}

func NewHTTPError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Err:        err,
	}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, e.Err.Error())
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// APIError is an error payload returned with a 200 by the data endpoint.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eikon: error %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL string
	AppKey  string
	Timeout time.Duration

	// DumpDir, when set, receives a pretty-printed copy of every data response.
	DumpDir string
}

type Client struct {
	Config *Config
	Client *http.Client
	Logger *zap.Logger

	token string
}

func NewClient(config *Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		Config: config,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Authenticate checks that the proxy is up and trades the app key for a
// bearer token used by every data request.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.Config.AppKey == "" {
		return fmt.Errorf("eikon: missing app key")
	}

	body, err := c.do(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return fmt.Errorf("failed to reach eikon proxy: %w", err)
	}
	if status := gjson.GetBytes(body, "statusCode").String(); status != proxyReady {
		return fmt.Errorf("eikon proxy is not ready (status %q)", status)
	}

	body, err = c.do(ctx, http.MethodPost, "/api/handshake", map[string]string{
		"AppKey":         c.Config.AppKey,
		"AppScope":       "trapi",
		"ApiVersion":     "1",
		"LibraryName":    libraryName,
		"LibraryVersion": libraryVersion,
	})
	if err != nil {
		return fmt.Errorf("eikon handshake failed: %w", err)
	}

	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return fmt.Errorf("eikon handshake returned no access token")
	}
	c.token = token

	c.Logger.Info("Connected to eikon proxy", zap.String("url", c.Config.BaseURL))
	return nil
}

// Search runs a News_Headlines query over req.Window.
func (c *Client) Search(ctx context.Context, req news.SearchRequest) ([]news.Headline, error) {
	body, err := c.data(ctx, "News_Headlines", map[string]string{
		"number":          strconv.Itoa(req.Limit),
		"query":           req.Query,
		"dateFrom":        req.Window.From.UTC().Format(timestampLayout),
		"dateTo":          req.Window.To.UTC().Format(timestampLayout),
		"productName":     c.Config.AppKey,
		"attributionCode": "",
	})
	if err != nil {
		return nil, err
	}

	var headlines []news.Headline
	var parseErr error
	gjson.GetBytes(body, "headlines").ForEach(func(_, item gjson.Result) bool {
		created, err := time.Parse(time.RFC3339Nano, item.Get("versionCreated").String())
		if err != nil {
			parseErr = fmt.Errorf("bad versionCreated for %s: %w", item.Get("storyId").String(), err)
			return false
		}
		headlines = append(headlines, news.Headline{
			ID:      item.Get("storyId").String(),
			Created: created,
			Text:    item.Get("text").String(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return headlines, nil
}

// Fetch returns the story HTML for a story id.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	body, err := c.data(ctx, "News_Story", map[string]string{
		"storyId":         id,
		"productName":     c.Config.AppKey,
		"attributionCode": "",
	})
	if err != nil {
		return "", err
	}

	story := gjson.GetBytes(body, "story.storyHtml")
	if !story.Exists() {
		return "", fmt.Errorf("%w: %s", news.ErrNotFound, id)
	}
	return story.String(), nil
}

func (c *Client) data(ctx context.Context, entity string, payload map[string]string) ([]byte, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	c.Logger.Debug("eikon request", zap.String("entity", entity))
	body, err := c.do(ctx, http.MethodPost, "/api/v1/data", map[string]any{
		"Entity": map[string]any{
			"E": entity,
			"W": payload,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("eikon %s: %w", entity, err)
	}

	c.dump(entity, body)

	if code := gjson.GetBytes(body, "ErrorCode"); code.Exists() {
		return nil, &APIError{
			Code:    int(code.Int()),
			Message: gjson.GetBytes(body, "ErrorMessage").String(),
		}
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Config.BaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tr-applicationid", c.Config.AppKey)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			return nil, NewHTTPError(res.StatusCode, nil)
		}
		return nil, NewHTTPError(res.StatusCode, errors.New(msg))
	}

	return body, nil
}

func (c *Client) dump(entity string, body []byte) {
	if c.Config.DumpDir == "" {
		return
	}

	if err := os.MkdirAll(c.Config.DumpDir, 0755); err != nil {
		c.Logger.Warn("Could not create dump directory", zap.String("dir", c.Config.DumpDir), zap.Error(err))
		return
	}

	name := filepath.Join(c.Config.DumpDir, fmt.Sprintf("%s-%s.json", strings.ToLower(entity), uuid.NewString()))
	if err := os.WriteFile(name, pretty.Pretty(body), 0644); err != nil {
		c.Logger.Warn("Could not write response dump", zap.String("file", name), zap.Error(err))
	}
}
