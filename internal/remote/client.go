// Package remote talks to a json-server style /users collection over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/userlist/internal/domain"
)

const (
	totalCountHeader = "X-Total-Count"
	usersPath        = "users"
	defaultTimeout   = 10 * time.Second
	maxErrorBody     = 64 << 10
)

// Client implements domain.UserCollection against a remote REST collection.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	validate *validator.Validate
	logger   *slog.Logger
	latency  time.Duration
	timeout  time.Duration
}

var _ domain.UserCollection = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. hc is never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. It applies to a private copy of
// the HTTP client, whichever option supplied it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLatency delays every successful response by d. Useful for exercising
// loading states against a local server.
func WithLatency(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.latency = d
		}
	}
}

// New creates a Client for the collection rooted at baseURL
// (for example "http://localhost:4000").
func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, errors.New("base url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: host is required", raw)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: defaultTimeout},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// List fetches at most q.Limit records starting at q.Offset, filtered by
// status and search when set. Total is the filtered count reported by the
// server, falling back to the page length when the server does not send one.
func (c *Client) List(ctx context.Context, q domain.ListQuery) (*domain.ListResult, error) {
	params := url.Values{}
	params.Set("_limit", strconv.Itoa(q.Limit))
	params.Set("_start", strconv.Itoa(q.Offset))
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.Search != "" {
		params.Set("q", q.Search)
	}

	resp, err := c.do(ctx, http.MethodGet, c.endpoint(), params, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer resp.Body.Close()

	records := make([]domain.User, 0, max(q.Limit, 0))
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("list users: %w", domain.NewAppError(domain.CodeTransport, "decode response", err))
	}
	if records == nil {
		records = []domain.User{}
	}

	total := len(records)
	if h := resp.Header.Get(totalCountHeader); h != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && n >= 0 {
			total = n
		} else {
			c.logger.WarnContext(ctx, "ignoring malformed total count header", slog.String("value", h))
		}
	}

	if q.Limit > 0 && len(records) > q.Limit {
		c.logger.WarnContext(ctx, "server returned more records than requested",
			slog.Int("limit", q.Limit),
			slog.Int("returned", len(records)),
		)
		records = records[:q.Limit]
	}

	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &domain.ListResult{Records: records, Total: total}, nil
}

// Create posts a new user; the server assigns its ID.
func (c *Client) Create(ctx context.Context, fields domain.UserFields) (*domain.User, error) {
	if err := c.validateFields(fields); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user, err := c.send(ctx, http.MethodPost, c.endpoint(), fields)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Update replaces every mutable field of the user with the given ID.
func (c *Client) Update(ctx context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error) {
	if id == "" {
		return nil, fmt.Errorf("update user: %w", domain.NewAppError(domain.CodeValidation, "id is required", nil))
	}
	if err := c.validateFields(fields); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	user, err := c.send(ctx, http.MethodPut, c.endpoint(id.String()), fields)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return user, nil
}

// Delete removes the user with the given ID.
func (c *Client) Delete(ctx context.Context, id domain.ID) error {
	if id == "" {
		return fmt.Errorf("delete user: %w", domain.NewAppError(domain.CodeValidation, "id is required", nil))
	}
	resp, err := c.do(ctx, http.MethodDelete, c.endpoint(id.String()), nil, nil)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// send encodes fields as the request body and decodes the returned record.
func (c *Client) send(ctx context.Context, method, endpoint string, fields domain.UserFields) (*domain.User, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "encode payload", err)
	}

	resp, err := c.do(ctx, method, endpoint, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, domain.NewAppError(domain.CodeTransport, "decode response", err)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return &user, nil
}

// do performs a single request. Any non-2xx response is turned into an
// *domain.AppError and its body is consumed; on success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) (*http.Response, error) {
	target := endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeTransport, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "collection request failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.Any("error", err),
		)
		return nil, domain.NewAppError(domain.CodeTransport, "request failed", err)
	}

	c.logger.DebugContext(ctx, "collection request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, responseError(resp)
}

// errorBody is the error envelope sent by the collection server.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func responseError(resp *http.Response) error {
	code := domain.CodeFromHTTPStatus(resp.StatusCode)
	msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if len(raw) > 0 && json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
		msg = eb.Message
		if len(eb.Errors) > 0 {
			msg += ": " + formatFieldErrors(eb.Errors)
		}
	}
	return domain.NewAppError(code, msg, nil)
}

func (c *Client) validateFields(fields domain.UserFields) error {
	if err := c.validate.Struct(fields); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			details := make(map[string]string, len(ve))
			for _, fe := range ve {
				rule := fe.Tag()
				if fe.Param() != "" {
					rule += "=" + fe.Param()
				}
				details[strings.ToLower(fe.Field())] = rule
			}
			return domain.NewAppError(domain.CodeValidation, "invalid user: "+formatFieldErrors(details), err)
		}
		return domain.NewAppError(domain.CodeValidation, "invalid user", err)
	}
	return nil
}

// wait applies the configured latency, giving up early if ctx ends.
func (c *Client) wait(ctx context.Context) error {
	if c.latency <= 0 {
		return nil
	}
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return domain.NewAppError(domain.CodeTransport, "request canceled", ctx.Err())
	}
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	rawPath := u.Path + "/" + usersPath
	escPath := u.EscapedPath() + "/" + usersPath
	for _, s := range segments {
		rawPath += "/" + s
		escPath += "/" + url.PathEscape(s)
	}
	u.Path, u.RawPath = rawPath, escPath
	u.RawQuery = ""
	return u.String()
}

// formatFieldErrors renders per-field messages as "field: rule" pairs in key order.
func formatFieldErrors(fields map[string]string) string {
	keys := slices.Sorted(maps.Keys(fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, ", ")
}
