package catalog

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

	"shelfcast/internal/config"
	"shelfcast/internal/library"
	"shelfcast/internal/services"
)

// Author is one credited author.
type Author struct {
	Name string `json:"name"`
}

// SeriesEntry places a book within a series.
type SeriesEntry struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"`
}

type bookPayload struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Authors      []Author      `json:"authors"`
	Series       []SeriesEntry `json:"series"`
	AudioURL     string        `json:"audio_url"`
	EbookURL     string        `json:"ebook_url"`
	ReadAloudURL string        `json:"readaloud_url"`
}

type listPayload struct {
	Books []bookPayload `json:"books"`
}

// Client provides read access to the server catalog.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a catalog client for the server at baseURL.
func New(baseURL, token string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: server url required", services.ErrConfiguration)
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: parse server url: %w", services.ErrConfiguration, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    parsed,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig creates a client from the [server] section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	return New(cfg.Server.URL, cfg.Server.Token, cfg.RequestTimeout(), opts...)
}

// Book fetches one book by id.
func (c *Client) Book(ctx context.Context, id string) (library.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return library.Book{}, errors.New("book id must not be empty")
	}
	var payload bookPayload
	if err := c.getJSON(ctx, "api/books/"+url.PathEscape(id), &payload); err != nil {
		return library.Book{}, fmt.Errorf("book %s: %w", id, err)
	}
	if payload.ID == "" {
		payload.ID = id
	}
	return c.toBook(payload), nil
}

// Books lists every book visible to the configured token.
func (c *Client) Books(ctx context.Context) ([]library.Book, error) {
	var payload listPayload
	if err := c.getJSON(ctx, "api/books", &payload); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	out := make([]library.Book, 0, len(payload.Books))
	for _, item := range payload.Books {
		out = append(out, c.toBook(item))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("%w: execute request (latency=%v): %w", services.ErrTransient, latency, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: server rejected token (%d)", services.ErrConfiguration, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: server returned %d (latency=%v)", services.ErrTransient, resp.StatusCode, latency)
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) toBook(p bookPayload) library.Book {
	book := library.Book{
		ID:           strings.TrimSpace(p.ID),
		Title:        strings.TrimSpace(p.Title),
		AudioURL:     c.resolve(p.AudioURL),
		EbookURL:     c.resolve(p.EbookURL),
		ReadAloudURL: c.resolve(p.ReadAloudURL),
	}
	names := make([]string, 0, len(p.Authors))
	for _, author := range p.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			names = append(names, name)
		}
	}
	book.Author = strings.Join(names, ", ")
	if len(p.Series) > 0 {
		book.Series = strings.TrimSpace(p.Series[0].Name)
		book.SeriesIndex = p.Series[0].Position
	}
	return book
}

func (c *Client) resolve(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return c.baseURL.ResolveReference(ref).String()
}
