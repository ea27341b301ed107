package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func newTestClient(serverURL string, pageSize, maxPages, retryLimit int) *Client {
	cfg := &config.Config{
		UpstreamBaseURL: serverURL,
		UpstreamTimeout: 5 * time.Second,
		PageSize:        pageSize,
		MaxPages:        maxPages,
		RetryLimit:      retryLimit,
		BackoffBase:     time.Millisecond,
	}
	return NewClient(cfg, rate.NewLimiter(rate.Inf, 1), zerolog.Nop())
}

func makeCalls(prefix string, n int, agentID string) []types.CallRecord {
	calls := make([]types.CallRecord, 0, n)
	for i := 0; i < n; i++ {
		calls = append(calls, types.CallRecord{
			ID:        fmt.Sprintf("%s-%d", prefix, i),
			Direction: types.DirectionOutbound,
			User:      types.CallOwner{ID: agentID},
		})
	}
	return calls
}

func writeCalls(w http.ResponseWriter, calls []types.CallRecord) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]types.CallRecord{"calls": calls})
}

func TestFetchCallsPagination(t *testing.T) {
	window := types.TimeWindow{Start: 1700000000, End: 1700018000}

	var requests int
	var seenFrom, seenTo []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		seenFrom = append(seenFrom, r.URL.Query().Get("from"))
		seenTo = append(seenTo, r.URL.Query().Get("to"))

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		switch page {
		case 1:
			writeCalls(w, makeCalls("a", 2, "agent-1")) // full page
		case 2:
			writeCalls(w, makeCalls("b", 1, "agent-1")) // short page, final
		default:
			t.Errorf("unexpected page request %d", page)
			writeCalls(w, nil)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, 10, 3)
	calls, err := c.FetchCalls(context.Background(), window, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A full page N and a short page N+1 mean exactly N+1 requests
	if requests != 2 {
		t.Errorf("expected 2 page requests, got %d", requests)
	}
	if len(calls) != 3 {
		t.Errorf("expected 3 records, got %d", len(calls))
	}
	if calls[0].ID != "a-0" || calls[2].ID != "b-0" {
		t.Errorf("expected concatenated pages in order, got %v", calls)
	}

	// All pages must describe the same logical window
	for i := range seenFrom {
		if seenFrom[i] != "1700000000" || seenTo[i] != "1700018000" {
			t.Errorf("page %d used from=%s to=%s, want identical window params", i+1, seenFrom[i], seenTo[i])
		}
	}
}

func TestFetchCallsAgentPostFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls := append(makeCalls("x", 2, "agent-1"), makeCalls("y", 1, "agent-2")...)
		writeCalls(w, calls) // 3 < pageSize, single page
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10, 5, 3)
	calls, err := c.FetchCalls(context.Background(), types.TimeWindow{Start: 1, End: 2}, "agent-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 records after filtering, got %d", len(calls))
	}
	for _, call := range calls {
		if call.User.ID != "agent-1" {
			t.Errorf("record %s belongs to %s, filter leaked", call.ID, call.User.ID)
		}
	}
}

func TestFetchCallsRateLimitRetryBound(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	retryLimit := 2
	c := newTestClient(srv.URL, 10, 5, retryLimit)
	calls, err := c.FetchCalls(context.Background(), types.TimeWindow{Start: 1, End: 2}, "")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != nil {
		t.Errorf("expected no records, got %d", len(calls))
	}
	if !IsRateLimited(err) {
		t.Errorf("expected rate-limited error, got %v", err)
	}
	// Initial attempt plus exactly retryLimit retries, never unbounded
	if requests != retryLimit+1 {
		t.Errorf("expected %d attempts, got %d", retryLimit+1, requests)
	}
}

func TestFetchCallsRateLimitRecovers(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCalls(w, makeCalls("a", 1, "agent-1"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10, 5, 3)
	calls, err := c.FetchCalls(context.Background(), types.TimeWindow{Start: 1, End: 2}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected 1 record, got %d", len(calls))
	}
	if requests != 2 {
		t.Errorf("expected 2 attempts, got %d", requests)
	}
}

func TestFetchCallsFatalErrorNotRetried(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 1 {
			writeCalls(w, makeCalls("a", 2, "agent-1")) // full page
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, 10, 3)
	calls, err := c.FetchCalls(context.Background(), types.TimeWindow{Start: 1, End: 2}, "")
	if err == nil {
		t.Fatal("expected error on 500")
	}
	// Earlier pages are discarded, not returned as a partial list
	if calls != nil {
		t.Errorf("expected nil result, got %d records", len(calls))
	}
	// The 500 must not be retried
	if requests != 2 {
		t.Errorf("expected 2 requests (one per page, no retries), got %d", requests)
	}
	if IsRateLimited(err) {
		t.Errorf("500 must not classify as rate limited: %v", err)
	}
}

func TestFetchCallsPageCeiling(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeCalls(w, makeCalls("p", 2, "agent-1")) // always full
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, 3, 3)
	calls, err := c.FetchCalls(context.Background(), types.TimeWindow{Start: 1, End: 2}, "")
	if err != nil {
		t.Fatalf("truncation must not be an error, got: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected exactly maxPages=3 requests, got %d", requests)
	}
	if len(calls) != 6 {
		t.Errorf("expected 6 partial records, got %d", len(calls))
	}
}

func TestFetchRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/users" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]types.Agent{"users": {
			{ID: "agent-1", Name: "Ada Cole", Email: "ada@example.com", AvailabilityStatus: "available"},
			{ID: "agent-2", Name: "Ben Reyes"},
		}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10, 5, 3)
	roster, err := c.FetchRoster(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(roster))
	}
	if roster[0].ID != "agent-1" || roster[0].Name != "Ada Cole" {
		t.Errorf("unexpected first agent: %+v", roster[0])
	}
	if roster[0].AvailabilityStatus != "available" {
		t.Errorf("expected availability available, got %q", roster[0].AvailabilityStatus)
	}
	// Missing availability in the response defaults to unknown
	if roster[1].AvailabilityStatus != "unknown" {
		t.Errorf("expected availability unknown for agent-2, got %q", roster[1].AvailabilityStatus)
	}
}

func TestFetchRosterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10, 5, 3)
	if _, err := c.FetchRoster(context.Background()); err == nil {
		t.Fatal("expected error on 502")
	}
}
