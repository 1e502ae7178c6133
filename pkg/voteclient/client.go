package voteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/rulehub/internal/domain"
	"github.com/pscheid92/rulehub/internal/platform/retry"
	"github.com/pscheid92/rulehub/internal/platform/version"
)

type (
	Vote       = domain.Vote
	VoteResult = domain.VoteResult
	Counts     = domain.Counts
	Item       = domain.Item
)

const (
	VoteNone = domain.VoteNone
	VoteUp   = domain.VoteUp
	VoteDown = domain.VoteDown
)

const (
	defaultTimeout        = 10 * time.Second
	maxErrorBodyBytes     = 4 << 10
	requestIDHeader       = "X-Request-ID"
	headerRateLimit       = "X-RateLimit-Limit"
	headerRateRemaining   = "X-RateLimit-Remaining"
	headerRateReset       = "X-RateLimit-Reset"
	retryInitialBackoff   = 200 * time.Millisecond
	retryMaxBackoff       = 5 * time.Second
	retryRateLimitBackoff = time.Second
)

// DefaultRetryPolicy retries unavailable-store answers three times.
func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   retryInitialBackoff,
		MaxBackoff:       retryMaxBackoff,
		RateLimitBackoff: retryRateLimitBackoff,
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		policy:     DefaultRetryPolicy(),
		userAgent:  version.UserAgent(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type voteBody struct {
	VoteType *string `json:"voteType"`
}

type voteResponse struct {
	Success bool `json:"success"`
	VoteResult
}

// Vote casts vote on itemID. VoteNone retracts. Repeating the vote already
// held also retracts it; the returned result is authoritative.
func (c *Client) Vote(ctx context.Context, itemID string, vote Vote) (VoteResult, Quota, error) {
	vote = normalize(vote)
	if !vote.IsValid() {
		return VoteResult{}, Quota{}, fmt.Errorf("%w: %q", ErrInvalidVote, vote)
	}

	var body voteBody
	if vote != VoteNone {
		raw := string(vote)
		body.VoteType = &raw
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return VoteResult{}, Quota{}, fmt.Errorf("encode vote: %w", err)
	}

	var resp voteResponse
	// Transport failures are not retried here: the server may already have
	// applied the vote, and a second identical vote would retract it.
	quota, err := c.do(ctx, http.MethodPost, itemPath(itemID, "vote"), payload, &resp, classifyVote)
	if err != nil {
		return VoteResult{}, quota, err
	}
	return resp.VoteResult, quota, nil
}

func (c *Client) CurrentVote(ctx context.Context, itemID string) (Vote, error) {
	var resp struct {
		UserVote Vote `json:"userVote"`
	}
	if _, err := c.do(ctx, http.MethodGet, itemPath(itemID, "vote"), nil, &resp, classifyRead); err != nil {
		return VoteNone, err
	}
	if resp.UserVote == "" {
		return VoteNone, nil
	}
	return resp.UserVote, nil
}

func (c *Client) Stats(ctx context.Context, itemID string) (Counts, error) {
	var counts Counts
	if _, err := c.do(ctx, http.MethodGet, itemPath(itemID, "stats"), nil, &counts, classifyRead); err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func (c *Client) Items(ctx context.Context) ([]Item, error) {
	var resp struct {
		Items []Item `json:"items"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/items", nil, &resp, classifyRead); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Item(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if _, err := c.do(ctx, http.MethodGet, itemPath(itemID, ""), nil, &item, classifyRead); err != nil {
		return nil, err
	}
	return &item, nil
}

// TrackView reports a view. The server answers 202 even when it did not count it.
func (c *Client) TrackView(ctx context.Context, itemID string) (bool, error) {
	return c.track(ctx, itemID, "view")
}

func (c *Client) TrackCopy(ctx context.Context, itemID string) (bool, error) {
	return c.track(ctx, itemID, "copy")
}

func (c *Client) track(ctx context.Context, itemID, event string) (bool, error) {
	var resp struct {
		Tracked bool `json:"tracked"`
	}
	if _, err := c.do(ctx, http.MethodPost, itemPath(itemID, event), nil, &resp, classifyVote); err != nil {
		return false, err
	}
	return resp.Tracked, nil
}

func itemPath(itemID, action string) string {
	p := "/items/" + url.PathEscape(itemID)
	if action != "" {
		p += "/" + action
	}
	return p
}

type result struct {
	quota Quota
}

// do sends one logical request with retries. All attempts share a request ID.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, classify retry.Classify) (Quota, error) {
	requestID := uuid.NewString()

	policy := c.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "rulehub request failed, retrying",
			"method", method,
			"path", path,
			"request_id", requestID,
			"attempt", attempt,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
	}

	res, err := retry.Do(ctx, policy, classify, func(ctx context.Context) (result, error) {
		return c.attempt(ctx, method, path, requestID, body, out)
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Quota, err
		}
		return Quota{}, err
	}
	return res.quota, nil
}

func (c *Client) attempt(ctx context.Context, method, path, requestID string, body []byte, out any) (result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	quota := parseQuota(resp.Header)
	if resp.StatusCode >= http.StatusBadRequest {
		return result{}, newAPIError(resp, quota)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return result{}, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return result{quota: quota}, nil
}

func newAPIError(resp *http.Response, quota Quota) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	apiErr := &APIError{StatusCode: resp.StatusCode, Quota: quota}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfterHint = time.Duration(secs) * time.Second
	}

	var body struct {
		Error string `json:"error"`
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
	} else {
		apiErr.plainText = true
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func parseQuota(h http.Header) Quota {
	var q Quota
	q.Limit, _ = strconv.Atoi(h.Get(headerRateLimit))
	q.Remaining, _ = strconv.Atoi(h.Get(headerRateRemaining))
	if reset, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64); err == nil {
		q.ResetAt = time.Unix(reset, 0)
	}
	return q
}

// classifyRead retries transport failures and server errors.
func classifyRead(err error) retry.Action {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return retry.Stop
		}
		return retry.Retry
	}
	switch {
	case shortRateLimit(apiErr):
		return retry.After
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return retry.Retry
	default:
		return retry.Stop
	}
}

// classifyVote retries only answers that prove nothing was applied.
func classifyVote(err error) retry.Action {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return retry.Stop
	}
	switch {
	case shortRateLimit(apiErr):
		return retry.After
	case apiErr.StatusCode == http.StatusServiceUnavailable:
		return retry.Retry
	default:
		return retry.Stop
	}
}

// shortRateLimit reports a quota 429 whose window resets soon enough to wait for.
func shortRateLimit(apiErr *APIError) bool {
	return errors.Is(apiErr, ErrRateLimited) && apiErr.RetryAfterHint > 0 && apiErr.RetryAfterHint <= retryMaxBackoff
}
