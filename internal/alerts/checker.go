package alerts

import (
	"fmt"

	"github.com/callpulse/backend/internal/types"
)

// Threshold rules for per-agent activity. Answer-rate rules only fire
// once an agent has enough dials for the rate to mean anything.
const (
	minDialsForRate   = 10
	warnAnswerRatePct = 40.0
	critAnswerRatePct = 20.0
)

// CheckActivityAlerts evaluates alert rules for a slice of agent
// activities, mutating each activity's Alerts field in place.
func CheckActivityAlerts(activities []types.AgentActivity) {
	for i := range activities {
		activities[i].Alerts = nil

		if activities[i].FetchError != "" {
			activities[i].Alerts = append(activities[i].Alerts, types.ActivityAlert{
				Rule:     "fetch_failed",
				Severity: types.SeverityCritical,
				Message:  "call data unavailable for this agent",
			})
			continue
		}

		if activities[i].TotalOutboundCalls == 0 {
			activities[i].Alerts = append(activities[i].Alerts, types.ActivityAlert{
				Rule:     "no_dials",
				Severity: types.SeverityWarning,
				Message:  "no outbound calls in this window",
			})
			continue
		}

		if activities[i].TotalOutboundCalls >= minDialsForRate {
			rate := answerRate(activities[i])
			if rate < critAnswerRatePct {
				activities[i].Alerts = append(activities[i].Alerts, types.ActivityAlert{
					Rule:     "answer_rate_low",
					Severity: types.SeverityCritical,
					Message:  fmt.Sprintf("answer rate %.0f%% over %d dials", rate, activities[i].TotalOutboundCalls),
				})
			} else if rate < warnAnswerRatePct {
				activities[i].Alerts = append(activities[i].Alerts, types.ActivityAlert{
					Rule:     "answer_rate_low",
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("answer rate %.0f%% over %d dials", rate, activities[i].TotalOutboundCalls),
				})
			}
		}
	}
}

func answerRate(a types.AgentActivity) float64 {
	if a.TotalOutboundCalls == 0 {
		return 0
	}
	return float64(a.AnsweredOutboundCalls) / float64(a.TotalOutboundCalls) * 100
}
