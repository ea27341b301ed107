package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/callpulse/backend/internal/types"
	"github.com/callpulse/backend/internal/upstream"
	"github.com/callpulse/backend/internal/window"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type fakeGenerator struct {
	err     error
	periods []window.Period
}

func (f *fakeGenerator) Generate(_ context.Context, period window.Period, _, _ string) (*types.ActivitySummary, error) {
	f.periods = append(f.periods, period)
	if f.err != nil {
		return nil, f.err
	}
	return &types.ActivitySummary{
		Period: string(period),
		Agents: []types.AgentActivity{{AgentID: "agent-a", AgentName: "Ada Cole", TotalOutboundCalls: 3}},
		Totals: types.RosterTotals{TotalOutboundCalls: 3},
	}, nil
}

type fakeSender struct {
	sent chan *types.ActivitySummary
	err  error
}

func (f *fakeSender) SendSummary(_ context.Context, summary *types.ActivitySummary) error {
	if f.err != nil {
		return f.err
	}
	if f.sent != nil {
		f.sent <- summary
	}
	return nil
}

func newTestRouter(gen Generator, sender Sender) *chi.Mux {
	h := NewReportHandler(gen, sender, zerolog.Nop())
	r := chi.NewRouter()
	r.Get("/reports/{period}", h.HandleGet)
	r.Post("/reports/{period}", h.HandleTrigger)
	return r
}

func TestHandleGet(t *testing.T) {
	gen := &fakeGenerator{}
	router := newTestRouter(gen, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/reports/afternoon", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary types.ActivitySummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if summary.Period != "afternoon" {
		t.Errorf("expected period afternoon, got %s", summary.Period)
	}
	if summary.ReportID == "" {
		t.Error("expected a report ID to be assigned")
	}
	if len(gen.periods) != 1 || gen.periods[0] != window.PeriodAfternoon {
		t.Errorf("unexpected generator invocations: %v", gen.periods)
	}
}

func TestHandleGetUnknownPeriod(t *testing.T) {
	router := newTestRouter(&fakeGenerator{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/reports/quarterly", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleGetExplicitBoundsAllowAnyLabel(t *testing.T) {
	router := newTestRouter(&fakeGenerator{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/reports/custom?start=2024-01-05T08:00:00&end=2024-01-05T12:00:00", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for explicit bounds, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: &upstream.Error{Op: "/v2/users", Status: http.StatusServiceUnavailable}}
	router := newTestRouter(gen, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/reports/afternoon", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestHandleGetWindowParseFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("invalid start: parsing time")}
	router := newTestRouter(gen, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/reports/x?start=garbage&end=2024-01-05T12:00:00", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTrigger(t *testing.T) {
	sender := &fakeSender{sent: make(chan *types.ActivitySummary, 1)}
	router := newTestRouter(&fakeGenerator{}, sender)

	req := httptest.NewRequest(http.MethodPost, "/reports/fullday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("ack is not valid JSON: %v", err)
	}
	if ack["runId"] == "" {
		t.Error("expected a run ID in the ack")
	}
	if ack["period"] != "fullday" {
		t.Errorf("expected period fullday, got %s", ack["period"])
	}

	// The pipeline runs in the background and delivers to the sender
	select {
	case summary := <-sender.sent:
		if summary.ReportID != ack["runId"] {
			t.Errorf("delivered report ID %s does not match ack run ID %s", summary.ReportID, ack["runId"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("background run never delivered the summary")
	}
}

func TestHandleTriggerUnknownPeriod(t *testing.T) {
	router := newTestRouter(&fakeGenerator{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, "/reports/weekly", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
