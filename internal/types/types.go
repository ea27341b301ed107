package types

import "time"

// CallDirection represents the direction of a call leg
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// CallOwner identifies the agent a call leg belongs to
type CallOwner struct {
	ID string `json:"id"`
}

// CallRecord is one call leg as reported by the upstream telephony API.
// Records are read-only and exist only for the duration of one
// fetch-aggregate cycle; they are never persisted.
type CallRecord struct {
	ID        string        `json:"id"`
	Direction CallDirection `json:"direction"`
	// AnsweredAt is set if and only if the call was connected.
	AnsweredAt *int64 `json:"answered_at,omitempty"` // epoch seconds
	// Duration is the connected portion of the call in seconds. The
	// upstream may report non-zero values for unanswered calls
	// (ringing time); those must never count as talk time.
	Duration int64     `json:"duration"`
	User     CallOwner `json:"user"`
}

// Answered reports whether the call was connected
func (c CallRecord) Answered() bool {
	return c.AnsweredAt != nil
}

// Agent is one roster entry from the upstream users endpoint
type Agent struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	AvailabilityStatus string `json:"availability_status,omitempty"`
}

// TimeWindow is the half-open interval [Start, End) a report covers,
// in epoch seconds, with RFC3339 boundaries for display
type TimeWindow struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	StartISO string `json:"startIso"`
	EndISO   string `json:"endIso"`
}

// AlertSeverity represents the severity of an activity alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// ActivityAlert represents a threshold alert attached to an agent's activity
type ActivityAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// AgentActivity is the aggregation result for one agent over one window.
// TotalOutboundCalls is the dial-count metric: only outbound attempts
// count as calls made, inbound volume is reported separately. Downstream
// formatting and KPI thresholds depend on exactly this semantic.
type AgentActivity struct {
	AgentID               string `json:"agentId"`
	AgentName             string `json:"agentName"`
	TotalOutboundCalls    int    `json:"totalOutboundCalls"`
	AnsweredOutboundCalls int    `json:"answeredOutboundCalls"`
	MissedOutboundCalls   int    `json:"missedOutboundCalls"`
	TotalInboundCalls     int    `json:"totalInboundCalls"`
	AnsweredInboundCalls  int    `json:"answeredInboundCalls"`
	// Talk time sums cover answered calls only, minutes rounded to
	// 2 decimal places.
	TotalTalkTimeMinutes    float64 `json:"totalTalkTimeMinutes"`
	InboundTalkTimeMinutes  float64 `json:"inboundTalkTimeMinutes"`
	OutboundTalkTimeMinutes float64 `json:"outboundTalkTimeMinutes"`
	// FetchError is set when the upstream fetch failed for this agent.
	// All numeric fields are zero in that case; the agent stays in the
	// roster-wide summary rather than being dropped.
	FetchError string          `json:"fetchError,omitempty"`
	Alerts     []ActivityAlert `json:"alerts,omitempty"`
}

// RosterTotals holds element-wise sums over the per-agent activities
type RosterTotals struct {
	TotalOutboundCalls    int     `json:"totalOutboundCalls"`
	AnsweredOutboundCalls int     `json:"answeredOutboundCalls"`
	MissedOutboundCalls   int     `json:"missedOutboundCalls"`
	TotalInboundCalls     int     `json:"totalInboundCalls"`
	AnsweredInboundCalls  int     `json:"answeredInboundCalls"`
	TotalTalkTimeMinutes  float64 `json:"totalTalkTimeMinutes"`
	AnswerRate            float64 `json:"answerRate"` // answered / total outbound, 0-100
	AgentsWithErrors      int     `json:"agentsWithErrors"`
}

// ActivitySummary is the root report value handed to the notifier
type ActivitySummary struct {
	ReportID    string          `json:"reportId,omitempty"`
	Period      string          `json:"period"`
	Window      TimeWindow      `json:"window"`
	Agents      []AgentActivity `json:"agents"`
	Totals      RosterTotals    `json:"totals"`
	GeneratedAt time.Time       `json:"generatedAt"`
}
