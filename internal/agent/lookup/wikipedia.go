// Package lookup provides LookupService implementations for the knowledge
// resolver's external fallback.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errx "github.com/adam-npc/dialogue-core/internal/core/error"
	logx "github.com/adam-npc/dialogue-core/pkg/logger"
)

const (
	defaultBaseURL   = "https://en.wikipedia.org"
	defaultUserAgent = "adam-npc-dialogue-core/1.0 (educational)"
	// extractLimit bounds the snippet handed to prompt assembly.
	extractLimit = 300
)

// WikipediaClient resolves a topic term against the Wikipedia REST summary
// endpoint, falling back to the opensearch API when no page matches the term
// directly. All failures map onto the errx external-service kinds; callers
// treat every one of them as recoverable.
type WikipediaClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option customizes a WikipediaClient.
type Option func(*WikipediaClient)

// WithBaseURL points the client at a different host (tests use httptest).
func WithBaseURL(u string) Option {
	return func(c *WikipediaClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *WikipediaClient) { c.httpClient = h }
}

// NewWikipediaClient builds a client with a sane default transport. Per-call
// deadlines come from the caller's context; the client timeout is a backstop.
func NewWikipediaClient(opts ...Option) *WikipediaClient {
	c := &WikipediaClient{
		baseURL:    defaultBaseURL,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches a short factual extract for the term. A miss returns
// errx.ErrNotFound; transport problems return errx.ErrTimeout or
// errx.ErrUnavailable; undecodable bodies return errx.ErrMalformedResponse.
func (c *WikipediaClient) Lookup(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", errx.ErrNotFound
	}

	extract, err := c.fetchSummary(ctx, term)
	if err == nil {
		return extract, nil
	}
	if !errors.Is(err, errx.ErrNotFound) {
		return "", err
	}

	logx.Debug().Str("term", term).Msg("no direct page, trying opensearch")
	return c.openSearch(ctx, term)
}

func (c *WikipediaClient) fetchSummary(ctx context.Context, term string) (string, error) {
	title := url.PathEscape(strings.ReplaceAll(term, " ", "_"))
	body, err := c.get(ctx, c.baseURL+"/api/rest_v1/page/summary/"+title)
	if err != nil {
		return "", err
	}

	var payload struct {
		Extract string `json:"extract"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: summary body: %v", errx.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.Extract) == "" {
		return "", errx.ErrNotFound
	}
	return truncate(payload.Extract, extractLimit), nil
}

// openSearch mirrors the positional-array response of the MediaWiki
// opensearch action: [query, [titles...], [descriptions...], [urls...]].
func (c *WikipediaClient) openSearch(ctx context.Context, term string) (string, error) {
	q := url.Values{
		"action": {"opensearch"},
		"search": {term},
		"limit":  {"1"},
		"format": {"json"},
	}
	body, err := c.get(ctx, c.baseURL+"/w/api.php?"+q.Encode())
	if err != nil {
		return "", err
	}

	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: opensearch body: %v", errx.ErrMalformedResponse, err)
	}
	if len(payload) < 3 {
		return "", errx.ErrNotFound
	}

	var titles, descriptions []string
	if err := json.Unmarshal(payload[1], &titles); err != nil || len(titles) == 0 {
		return "", errx.ErrNotFound
	}
	_ = json.Unmarshal(payload[2], &descriptions)

	result := titles[0]
	if len(descriptions) > 0 && descriptions[0] != "" {
		result += " - " + descriptions[0]
	}
	return truncate(result, extractLimit), nil
}

func (c *WikipediaClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", errx.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", errx.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errx.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", errx.ErrUnavailable, resp.StatusCode)
	}

	const maxBody = 1 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrMalformedResponse, err)
	}
	return body, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
