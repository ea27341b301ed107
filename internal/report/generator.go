package report

import (
	"context"
	"strings"
	"time"

	"github.com/callpulse/backend/internal/alerts"
	"github.com/callpulse/backend/internal/metrics"
	"github.com/callpulse/backend/internal/stats"
	"github.com/callpulse/backend/internal/types"
	"github.com/callpulse/backend/internal/window"
	"github.com/rs/zerolog"
)

// CallSource is the slice of the upstream client the generator needs
type CallSource interface {
	FetchRoster(ctx context.Context) ([]types.Agent, error)
	FetchCalls(ctx context.Context, window types.TimeWindow, agentID string) ([]types.CallRecord, error)
}

// Generator runs the full window -> fetch -> aggregate pipeline and
// assembles the activity summary. Agents are processed one at a time,
// sequentially, so the fetch client's pacing limiter governs the
// request rate across the whole roster.
type Generator struct {
	source   CallSource
	resolver *window.Resolver
	excluded []string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGenerator creates a Generator using the wall clock
func NewGenerator(source CallSource, resolver *window.Resolver, excluded []string, logger zerolog.Logger) *Generator {
	return NewGeneratorAt(source, resolver, excluded, logger, time.Now)
}

// NewGeneratorAt creates a Generator with a fixed clock, for tests
func NewGeneratorAt(source CallSource, resolver *window.Resolver, excluded []string, logger zerolog.Logger, now func() time.Time) *Generator {
	return &Generator{
		source:   source,
		resolver: resolver,
		excluded: excluded,
		logger:   logger.With().Str("component", "report").Logger(),
		now:      now,
	}
}

// Generate produces the activity summary for one report invocation.
// A roster fetch failure is fatal; a per-agent fetch failure is recorded
// on that agent's entry and never aborts the rest of the report.
func (g *Generator) Generate(ctx context.Context, period window.Period, explicitStart, explicitEnd string) (*types.ActivitySummary, error) {
	m := metrics.Get()
	started := g.now()

	w, err := g.resolver.Resolve(period, explicitStart, explicitEnd)
	if err != nil {
		m.RecordReportError()
		return nil, err
	}

	roster, err := g.source.FetchRoster(ctx)
	if err != nil {
		m.RecordReportError()
		return nil, err
	}
	eligible := excludeAgents(roster, g.excluded)

	g.logger.Info().
		Str("period", string(period)).
		Str("from", w.StartISO).
		Str("to", w.EndISO).
		Int("roster", len(roster)).
		Int("eligible", len(eligible)).
		Msg("generating activity report")

	activities := make([]types.AgentActivity, 0, len(eligible))
	for _, agent := range eligible {
		calls, err := g.source.FetchCalls(ctx, w, agent.ID)
		if err != nil {
			g.logger.Warn().Err(err).Str("agent_id", agent.ID).Msg("agent fetch failed, recording zero activity")
			m.RecordAgentFetchError()
			activities = append(activities, stats.Failed(agent, err))
			continue
		}
		activities = append(activities, stats.Aggregate(agent, calls))
	}

	alerts.CheckActivityAlerts(activities)

	summary := &types.ActivitySummary{
		Period:      string(period),
		Window:      w,
		Agents:      activities,
		Totals:      stats.Totals(activities),
		GeneratedAt: started.UTC(),
	}

	m.RecordReport(g.now().Sub(started), len(activities))
	g.logger.Info().
		Int("agents", len(activities)).
		Int("agents_with_errors", summary.Totals.AgentsWithErrors).
		Int("total_dials", summary.Totals.TotalOutboundCalls).
		Msg("activity report generated")

	return summary, nil
}

// excludeAgents removes roster entries whose name matches any exclusion
// entry. The match is a case-insensitive substring check in either
// direction, so "test" excludes "Test Account" and "Automated Test Agent"
// excludes "test agent".
func excludeAgents(roster []types.Agent, patterns []string) []types.Agent {
	if len(patterns) == 0 {
		return roster
	}

	eligible := make([]types.Agent, 0, len(roster))
	for _, agent := range roster {
		if !matchesAny(agent.Name, patterns) {
			eligible = append(eligible, agent)
		}
	}
	return eligible
}

func matchesAny(name string, patterns []string) bool {
	lowerName := strings.ToLower(name)
	for _, pattern := range patterns {
		lowerPattern := strings.ToLower(pattern)
		if strings.Contains(lowerName, lowerPattern) || strings.Contains(lowerPattern, lowerName) {
			return true
		}
	}
	return false
}
