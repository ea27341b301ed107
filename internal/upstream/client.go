package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/metrics"
	"github.com/callpulse/backend/internal/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type callsResponse struct {
	Calls []types.CallRecord `json:"calls"`
}

type usersResponse struct {
	Users []types.Agent `json:"users"`
}

// Client talks to the upstream telephony API. All requests go through a
// shared pacing limiter so that page requests and per-agent fetches stay
// under the upstream rate limit; concurrent fan-out would defeat this
// throttling and is intentionally not supported.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	apiSecret   string
	pageSize    int
	maxPages    int
	retryLimit  int
	backoffBase time.Duration
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// NewClient creates a Client from config with an injected pacing limiter
func NewClient(cfg *config.Config, limiter *rate.Limiter, logger zerolog.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.UpstreamTimeout},
		baseURL:     cfg.UpstreamBaseURL,
		apiKey:      cfg.UpstreamAPIKey,
		apiSecret:   cfg.UpstreamAPISecret,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		retryLimit:  cfg.RetryLimit,
		backoffBase: cfg.BackoffBase,
		limiter:     limiter,
		logger:      logger.With().Str("component", "upstream").Logger(),
	}
}

// FetchRoster retrieves the full agent list. A failure here is fatal to
// the whole report: there is no roster to degrade gracefully against.
func (c *Client) FetchRoster(ctx context.Context) ([]types.Agent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp usersResponse
	if err := c.retryRateLimited(ctx, func() error {
		return c.doGet(ctx, "/v2/users", nil, &resp)
	}); err != nil {
		return nil, err
	}

	// The upstream omits availability for some agents; normalize so
	// downstream consumers never see an empty status.
	for i := range resp.Users {
		if resp.Users[i].AvailabilityStatus == "" {
			resp.Users[i].AvailabilityStatus = "unknown"
		}
	}

	c.logger.Debug().Int("agents", len(resp.Users)).Msg("roster fetched")
	return resp.Users, nil
}

// FetchCalls retrieves every call record inside the window, transparently
// handling pagination and rate-limit backoff. When agentID is non-empty
// each page is filtered locally by owning agent: the upstream endpoint
// does not reliably filter server-side, so agent scoping is a post-filter,
// not a query parameter guarantee.
//
// Pages are fetched strictly sequentially; page N+1 is requested only
// when page N came back full-sized. After maxPages full pages the fetch
// stops and returns what it has; truncation is a logged warning, not an
// error. Every page shares identical from/to parameters so all pages
// describe the same logical window.
func (c *Client) FetchCalls(ctx context.Context, window types.TimeWindow, agentID string) ([]types.CallRecord, error) {
	var all []types.CallRecord

	for page := 1; page <= c.maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batch, err := c.fetchCallsPage(ctx, window, page)
		if err != nil {
			// Accumulated pages are discarded: the caller sees
			// nothing for this agent, not a partial list.
			return nil, err
		}

		for _, call := range batch {
			if agentID == "" || call.User.ID == agentID {
				all = append(all, call)
			}
		}

		if len(batch) < c.pageSize {
			return all, nil
		}

		if page == c.maxPages {
			c.logger.Warn().
				Int("max_pages", c.maxPages).
				Str("agent_id", agentID).
				Int64("from", window.Start).
				Int64("to", window.End).
				Msg("page ceiling reached, returning partial results")
			metrics.Get().RecordTruncatedFetch()
		}
	}

	return all, nil
}

// fetchCallsPage requests a single page, retrying only on rate-limit
// signals. The retry counter is local to this one page request.
func (c *Client) fetchCallsPage(ctx context.Context, window types.TimeWindow, page int) ([]types.CallRecord, error) {
	query := url.Values{}
	query.Set("from", strconv.FormatInt(window.Start, 10))
	query.Set("to", strconv.FormatInt(window.End, 10))
	query.Set("per_page", strconv.Itoa(c.pageSize))
	query.Set("page", strconv.Itoa(page))

	var resp callsResponse
	if err := c.retryRateLimited(ctx, func() error {
		return c.doGet(ctx, "/v2/calls", query, &resp)
	}); err != nil {
		return nil, err
	}

	c.logger.Debug().Int("page", page).Int("records", len(resp.Calls)).Msg("page fetched")
	return resp.Calls, nil
}

// retryRateLimited runs op, retrying up to retryLimit times with
// exponential backoff while the upstream signals rate limiting. Any
// other failure is permanent and surfaces immediately.
func (c *Client) retryRateLimited(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffBase
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by the retry count, not wall clock

	operation := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsRateLimited(err) {
			c.logger.Warn().Err(err).Msg("rate limited, backing off")
			metrics.Get().RecordRateLimitRetry()
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retryLimit)), ctx))
}

// doGet performs one authenticated GET and decodes the JSON body
func (c *Client) doGet(ctx context.Context, path string, query url.Values, target interface{}) error {
	m := metrics.Get()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &Error{Op: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("%s:%s", c.apiKey, c.apiSecret))

	m.RecordUpstreamRequest()

	resp, err := c.http.Do(req)
	if err != nil {
		m.RecordUpstreamError()
		return &Error{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusTooManyRequests {
			m.RecordUpstreamError()
		}
		return &Error{Op: path, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		m.RecordUpstreamError()
		return &Error{Op: path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
