package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/callpulse/backend/internal/types"
	"github.com/callpulse/backend/internal/upstream"
	"github.com/callpulse/backend/internal/window"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator produces an activity summary for a period
type Generator interface {
	Generate(ctx context.Context, period window.Period, explicitStart, explicitEnd string) (*types.ActivitySummary, error)
}

// Sender delivers a finished summary to the team chat
type Sender interface {
	SendSummary(ctx context.Context, summary *types.ActivitySummary) error
}

const backgroundRunTimeout = 15 * time.Minute

// ReportHandler serves on-demand activity reports
type ReportHandler struct {
	generator Generator
	sender    Sender
	logger    zerolog.Logger
}

// NewReportHandler creates a ReportHandler
func NewReportHandler(generator Generator, sender Sender, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		generator: generator,
		sender:    sender,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// HandleGet handles GET /reports/{period}. The report is generated
// synchronously and returned as JSON; start/end query parameters
// override the named period's window.
func (h *ReportHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	if !validPeriod(period, start, end) {
		http.Error(w, "unknown period", http.StatusBadRequest)
		return
	}

	summary, err := h.generator.Generate(r.Context(), window.Period(period), start, end)
	if err != nil {
		h.logger.Error().Err(err).Str("period", period).Msg("report generation failed")
		var ue *upstream.Error
		if errors.As(err, &ue) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	summary.ReportID = uuid.New().String()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}

// HandleTrigger handles POST /reports/{period}. The caller gets an
// immediate 202 with a run ID; the pipeline runs in the background and
// the result is delivered to the chat webhook. Multi-agent reports can
// take minutes, so callers must not wait on them.
func (h *ReportHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")

	if !validPeriod(period, start, end) {
		http.Error(w, "unknown period", http.StatusBadRequest)
		return
	}

	runID := uuid.New().String()
	runLog := h.logger.With().Str("run_id", runID).Str("period", period).Logger()
	runLog.Info().Msg("report run accepted")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundRunTimeout)
		defer cancel()

		summary, err := h.generator.Generate(ctx, window.Period(period), start, end)
		if err != nil {
			runLog.Error().Err(err).Msg("background report failed")
			return
		}
		summary.ReportID = runID

		if err := h.sender.SendSummary(ctx, summary); err != nil {
			runLog.Error().Err(err).Msg("failed to deliver report")
			return
		}
		runLog.Info().Int("agents", len(summary.Agents)).Msg("report delivered")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"runId":  runID,
		"period": period,
		"status": "accepted",
	})
}

// validPeriod accepts any period label when both explicit bounds are
// supplied (they take precedence anyway), otherwise only named periods
func validPeriod(period, start, end string) bool {
	if start != "" && end != "" {
		return period != ""
	}
	switch window.Period(period) {
	case window.PeriodAfternoon, window.PeriodFullDay, window.PeriodHourly:
		return true
	default:
		return false
	}
}
