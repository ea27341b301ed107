// Package stats computes per-agent activity rollups from raw call records.
package stats

import (
	"math"

	"github.com/callpulse/backend/internal/types"
)

// Aggregate computes one agent's activity from that agent's calls in a
// window. Calls are partitioned by direction; only outbound attempts
// count toward the dial-count metric, and only answered calls contribute
// talk time in either direction, whatever duration the upstream reports
// for unanswered legs.
func Aggregate(agent types.Agent, calls []types.CallRecord) types.AgentActivity {
	activity := types.AgentActivity{
		AgentID:   agent.ID,
		AgentName: agent.Name,
	}

	var inboundSeconds, outboundSeconds int64

	for _, call := range calls {
		switch call.Direction {
		case types.DirectionOutbound:
			activity.TotalOutboundCalls++
			if call.Answered() {
				activity.AnsweredOutboundCalls++
				outboundSeconds += call.Duration
			}
		case types.DirectionInbound:
			activity.TotalInboundCalls++
			if call.Answered() {
				activity.AnsweredInboundCalls++
				inboundSeconds += call.Duration
			}
		}
	}

	activity.MissedOutboundCalls = activity.TotalOutboundCalls - activity.AnsweredOutboundCalls
	activity.InboundTalkTimeMinutes = roundMinutes(inboundSeconds)
	activity.OutboundTalkTimeMinutes = roundMinutes(outboundSeconds)
	activity.TotalTalkTimeMinutes = roundMinutes(inboundSeconds + outboundSeconds)

	return activity
}

// Failed produces the zero-valued activity recorded when the upstream
// fetch failed for one agent. The agent stays in the roster-wide summary.
func Failed(agent types.Agent, err error) types.AgentActivity {
	return types.AgentActivity{
		AgentID:    agent.ID,
		AgentName:  agent.Name,
		FetchError: err.Error(),
	}
}

// Totals derives roster-wide sums by the same summation rules applied
// element-wise over the per-agent activities.
func Totals(activities []types.AgentActivity) types.RosterTotals {
	var totals types.RosterTotals

	for _, a := range activities {
		totals.TotalOutboundCalls += a.TotalOutboundCalls
		totals.AnsweredOutboundCalls += a.AnsweredOutboundCalls
		totals.MissedOutboundCalls += a.MissedOutboundCalls
		totals.TotalInboundCalls += a.TotalInboundCalls
		totals.AnsweredInboundCalls += a.AnsweredInboundCalls
		totals.TotalTalkTimeMinutes += a.TotalTalkTimeMinutes
		if a.FetchError != "" {
			totals.AgentsWithErrors++
		}
	}

	totals.TotalTalkTimeMinutes = round2(totals.TotalTalkTimeMinutes)
	if totals.TotalOutboundCalls > 0 {
		totals.AnswerRate = round2(float64(totals.AnsweredOutboundCalls) / float64(totals.TotalOutboundCalls) * 100)
	}

	return totals
}

func roundMinutes(seconds int64) float64 {
	return round2(float64(seconds) / 60)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
