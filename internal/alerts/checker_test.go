package alerts

import (
	"testing"

	"github.com/callpulse/backend/internal/types"
)

func TestCheckActivityAlerts(t *testing.T) {
	tests := []struct {
		name         string
		activity     types.AgentActivity
		wantRule     string
		wantSeverity types.AlertSeverity
	}{
		{
			name:         "fetch failure is critical",
			activity:     types.AgentActivity{FetchError: "upstream /v2/calls failed: status 502"},
			wantRule:     "fetch_failed",
			wantSeverity: types.SeverityCritical,
		},
		{
			name:         "zero dials warns",
			activity:     types.AgentActivity{TotalInboundCalls: 5},
			wantRule:     "no_dials",
			wantSeverity: types.SeverityWarning,
		},
		{
			name:         "low answer rate warns",
			activity:     types.AgentActivity{TotalOutboundCalls: 20, AnsweredOutboundCalls: 6}, // 30%
			wantRule:     "answer_rate_low",
			wantSeverity: types.SeverityWarning,
		},
		{
			name:         "very low answer rate is critical",
			activity:     types.AgentActivity{TotalOutboundCalls: 20, AnsweredOutboundCalls: 2}, // 10%
			wantRule:     "answer_rate_low",
			wantSeverity: types.SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activities := []types.AgentActivity{tt.activity}
			CheckActivityAlerts(activities)

			if len(activities[0].Alerts) != 1 {
				t.Fatalf("expected 1 alert, got %v", activities[0].Alerts)
			}
			alert := activities[0].Alerts[0]
			if alert.Rule != tt.wantRule {
				t.Errorf("expected rule %s, got %s", tt.wantRule, alert.Rule)
			}
			if alert.Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, alert.Severity)
			}
		})
	}
}

func TestCheckActivityAlertsQuietAgent(t *testing.T) {
	// Healthy volume and rate: no alerts
	activities := []types.AgentActivity{
		{TotalOutboundCalls: 20, AnsweredOutboundCalls: 15},
	}
	CheckActivityAlerts(activities)
	if len(activities[0].Alerts) != 0 {
		t.Errorf("expected no alerts, got %v", activities[0].Alerts)
	}
}

func TestCheckActivityAlertsFewDialsNoRateAlert(t *testing.T) {
	// Below the dial floor the answer-rate rule must not fire
	activities := []types.AgentActivity{
		{TotalOutboundCalls: 3, AnsweredOutboundCalls: 0},
	}
	CheckActivityAlerts(activities)
	if len(activities[0].Alerts) != 0 {
		t.Errorf("expected no alerts below dial floor, got %v", activities[0].Alerts)
	}
}

func TestCheckActivityAlertsClearsPrevious(t *testing.T) {
	activities := []types.AgentActivity{
		{
			TotalOutboundCalls:    20,
			AnsweredOutboundCalls: 15,
			Alerts:                []types.ActivityAlert{{Rule: "stale"}},
		},
	}
	CheckActivityAlerts(activities)
	if len(activities[0].Alerts) != 0 {
		t.Errorf("expected stale alerts to be cleared, got %v", activities[0].Alerts)
	}
}
