// Package notify renders activity summaries into chat webhook payloads.
// It is a pure consumer of the summary contract: all numeric semantics
// are decided upstream in the aggregation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/metrics"
	"github.com/callpulse/backend/internal/types"
	"github.com/rs/zerolog"
)

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks,omitempty"`
}

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func headerBlock(text string) block {
	return block{Type: "header", Text: &blockText{Type: "plain_text", Text: text}}
}

func sectionBlock(text string) block {
	return block{Type: "section", Text: &blockText{Type: "mrkdwn", Text: text}}
}

// Notifier posts rendered summaries to a chat webhook
type Notifier struct {
	webhookURL string
	http       *http.Client
	logger     zerolog.Logger
}

// NewNotifier creates a Notifier from config
func NewNotifier(cfg *config.Config, logger zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: cfg.ChatWebhookURL,
		http:       &http.Client{Timeout: cfg.ChatTimeout},
		logger:     logger.With().Str("component", "notify").Logger(),
	}
}

// SendSummary renders and posts one activity summary. With no webhook
// configured the send is skipped silently so reports stay usable over
// the HTTP API alone.
func (n *Notifier) SendSummary(ctx context.Context, summary *types.ActivitySummary) error {
	if n.webhookURL == "" {
		n.logger.Debug().Msg("no webhook configured, skipping notification")
		return nil
	}

	m := metrics.Get()

	payload, err := json.Marshal(render(summary))
	if err != nil {
		m.RecordNotificationError()
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		m.RecordNotificationError()
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		m.RecordNotificationError()
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.RecordNotificationError()
		return fmt.Errorf("notification rejected: status %d", resp.StatusCode)
	}

	m.RecordNotificationSent()
	n.logger.Info().Str("period", summary.Period).Int("agents", len(summary.Agents)).Msg("summary posted")
	return nil
}

func render(summary *types.ActivitySummary) message {
	title := fmt.Sprintf("Call Activity: %s", summary.Period)

	var agentLines []string
	for _, a := range summary.Agents {
		agentLines = append(agentLines, agentLine(a))
	}
	if len(agentLines) == 0 {
		agentLines = append(agentLines, "_no eligible agents in this window_")
	}

	totals := fmt.Sprintf("*Team totals:* %d dials, %d answered (%.0f%% answer rate), %d missed, %.2f min talk time",
		summary.Totals.TotalOutboundCalls,
		summary.Totals.AnsweredOutboundCalls,
		summary.Totals.AnswerRate,
		summary.Totals.MissedOutboundCalls,
		summary.Totals.TotalTalkTimeMinutes,
	)
	if summary.Totals.AgentsWithErrors > 0 {
		totals += fmt.Sprintf("\n:warning: data unavailable for %d agent(s)", summary.Totals.AgentsWithErrors)
	}

	return message{
		Text: title,
		Blocks: []block{
			headerBlock(title),
			sectionBlock(fmt.Sprintf("%s to %s", summary.Window.StartISO, summary.Window.EndISO)),
			sectionBlock(strings.Join(agentLines, "\n")),
			sectionBlock(totals),
		},
	}
}

func agentLine(a types.AgentActivity) string {
	if a.FetchError != "" {
		return fmt.Sprintf(":x: *%s*: call data unavailable", a.AgentName)
	}

	line := fmt.Sprintf("*%s*: %d dials, %d answered, %d missed, %.2f min talk",
		a.AgentName,
		a.TotalOutboundCalls,
		a.AnsweredOutboundCalls,
		a.MissedOutboundCalls,
		a.TotalTalkTimeMinutes,
	)
	for _, alert := range a.Alerts {
		if alert.Severity == types.SeverityCritical {
			line += " :rotating_light:"
		} else {
			line += " :warning:"
		}
	}
	return line
}
