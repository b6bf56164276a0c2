// Package remote implements store.Store against the roomchat document service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

// tokenSkew renews a token this long before it expires.
const tokenSkew = 30 * time.Second

// Client is a store.Store backed by the document service HTTP API.
type Client struct {
	base    *url.URL
	http    *http.Client
	log     *zerolog.Logger
	watcher *store.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// New returns a client for the service at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store url must be http or https, got %q", baseURL)
	}

	nop := zerolog.Nop()
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     &nop,
		watcher: store.NewWatcher(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

// Close ends every live query. Later calls fail with store.ErrClosed.
func (c *Client) Close() error {
	c.cancel()
	c.watcher.CloseAll()
	return nil
}

// ==== DocumentStore implementation ====

// Get implements store.DocumentStore.
func (c *Client) Get(ctx context.Context, path string) (*store.Document, error) {
	if err := store.ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	var doc store.Document
	if err := c.do(ctx, http.MethodGet, "/api/docs/"+store.CleanPath(path), nil, nil, &doc); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return &doc, nil
}

// Set implements store.DocumentStore.
func (c *Client) Set(ctx context.Context, path string, data json.RawMessage) (*store.Document, error) {
	if err := store.ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	payload, err := store.NormalizeData(data)
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := c.do(ctx, http.MethodPut, "/api/docs/"+store.CleanPath(path), nil, documentBody{Data: payload}, &doc); err != nil {
		return nil, fmt.Errorf("set %s: %w", path, err)
	}
	return &doc, nil
}

// Add implements store.DocumentStore.
func (c *Client) Add(ctx context.Context, collection string, data json.RawMessage) (*store.Document, error) {
	if err := store.ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	payload, err := store.NormalizeData(data)
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := c.do(ctx, http.MethodPost, "/api/collections/"+store.CleanPath(collection), nil, documentBody{Data: payload}, &doc); err != nil {
		return nil, fmt.Errorf("add to %s: %w", collection, err)
	}
	return &doc, nil
}

// Query implements store.DocumentStore.
func (c *Client) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("direction", string(q.Direction))
	params.Set("limit", strconv.Itoa(q.Limit))

	var resp queryBody
	if err := c.do(ctx, http.MethodGet, "/api/collections/"+q.Collection, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return resp.Docs, nil
}

type documentBody struct {
	Data json.RawMessage `json:"data"`
}

type queryBody struct {
	Docs []store.Document `json:"docs"`
}

type errorBody struct {
	Error string `json:"error"`
}

type tokenBody struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// do sends an authenticated JSON request. A rejected token is renewed once.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	if c.ctx.Err() != nil {
		return store.ErrClosed
	}

	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		status, respBody, err := c.send(ctx, method, path, params, token, body)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusUnauthorized && attempt == 0:
			c.log.Debug().Msg("token rejected, renewing")
			c.dropToken(token)
			continue
		case status >= 200 && status < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		default:
			return errorFromStatus(status, respBody)
		}
	}
}

func (c *Client) send(
	ctx context.Context,
	method, path string,
	params url.Values,
	token string,
	body any,
) (int, []byte, error) {
	u := *c.base
	u.Path = c.base.Path + path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", store.ErrUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}

func errorFromStatus(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return store.ErrNotFound
	case status == http.StatusBadRequest && strings.Contains(msg, "JSON object"):
		return store.ErrInvalidData
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", store.ErrInvalidPath, msg)
	case status >= 500 || status == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d: %s", store.ErrUnavailable, status, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
}

// accessToken returns a cached token or fetches a new one.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.expiresAt) > tokenSkew {
		return c.token, nil
	}

	status, body, err := c.send(ctx, http.MethodPost, "/api/token", nil, "", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", errorFromStatus(status, body)
	}

	var tb tokenBody
	if err := json.Unmarshal(body, &tb); err != nil || tb.Token == "" {
		return "", fmt.Errorf("%w: malformed token response", store.ErrUnavailable)
	}
	c.token = tb.Token
	c.expiresAt = tb.ExpiresAt
	c.log.Debug().Time("expires_at", tb.ExpiresAt).Msg("store token acquired")
	return c.token, nil
}

func (c *Client) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}
