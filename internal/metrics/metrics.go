package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Report metrics
	ReportsGeneratedTotal int64
	ReportErrorsTotal     int64
	AgentFetchErrorsTotal int64
	lastReportDuration    time.Duration
	lastReportAgents      int

	// Upstream metrics
	UpstreamRequestsTotal int64
	UpstreamErrorsTotal   int64
	RateLimitRetriesTotal int64
	TruncatedFetchesTotal int64

	// Notification metrics
	NotificationsSentTotal  int64
	NotificationErrorsTotal int64

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			httpRequestsTotal: make(map[string]map[int]int64),
			startTime:         time.Now(),
		}
	})
	return instance
}

// RecordReport records a completed report generation
func (m *Metrics) RecordReport(duration time.Duration, agents int) {
	m.mu.Lock()
	m.ReportsGeneratedTotal++
	m.lastReportDuration = duration
	m.lastReportAgents = agents
	m.mu.Unlock()
}

// RecordReportError increments the report error counter
func (m *Metrics) RecordReportError() {
	m.mu.Lock()
	m.ReportErrorsTotal++
	m.mu.Unlock()
}

// RecordAgentFetchError increments the per-agent fetch failure counter
func (m *Metrics) RecordAgentFetchError() {
	m.mu.Lock()
	m.AgentFetchErrorsTotal++
	m.mu.Unlock()
}

// RecordUpstreamRequest increments the upstream request counter
func (m *Metrics) RecordUpstreamRequest() {
	m.mu.Lock()
	m.UpstreamRequestsTotal++
	m.mu.Unlock()
}

// RecordUpstreamError increments the upstream error counter
func (m *Metrics) RecordUpstreamError() {
	m.mu.Lock()
	m.UpstreamErrorsTotal++
	m.mu.Unlock()
}

// RecordRateLimitRetry increments the rate-limit retry counter
func (m *Metrics) RecordRateLimitRetry() {
	m.mu.Lock()
	m.RateLimitRetriesTotal++
	m.mu.Unlock()
}

// RecordTruncatedFetch increments the page-ceiling truncation counter
func (m *Metrics) RecordTruncatedFetch() {
	m.mu.Lock()
	m.TruncatedFetchesTotal++
	m.mu.Unlock()
}

// RecordNotificationSent increments the notification counter
func (m *Metrics) RecordNotificationSent() {
	m.mu.Lock()
	m.NotificationsSentTotal++
	m.mu.Unlock()
}

// RecordNotificationError increments the notification error counter
func (m *Metrics) RecordNotificationError() {
	m.mu.Lock()
	m.NotificationErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("callpulse_uptime_seconds", time.Since(m.startTime).Seconds())

		// Report metrics
		write("callpulse_reports_generated_total", m.ReportsGeneratedTotal)
		write("callpulse_report_errors_total", m.ReportErrorsTotal)
		write("callpulse_agent_fetch_errors_total", m.AgentFetchErrorsTotal)
		write("callpulse_last_report_duration_seconds", m.lastReportDuration.Seconds())
		write("callpulse_last_report_agents", m.lastReportAgents)

		// Upstream metrics
		write("callpulse_upstream_requests_total", m.UpstreamRequestsTotal)
		write("callpulse_upstream_errors_total", m.UpstreamErrorsTotal)
		write("callpulse_rate_limit_retries_total", m.RateLimitRetriesTotal)
		write("callpulse_truncated_fetches_total", m.TruncatedFetchesTotal)

		// Notification metrics
		write("callpulse_notifications_sent_total", m.NotificationsSentTotal)
		write("callpulse_notification_errors_total", m.NotificationErrorsTotal)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("callpulse_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
