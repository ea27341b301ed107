package window

import (
	"fmt"
	"time"

	"github.com/callpulse/backend/internal/config"
	"github.com/callpulse/backend/internal/types"
)

// Period names a reporting window rule
type Period string

const (
	PeriodAfternoon Period = "afternoon"
	PeriodFullDay   Period = "fullday"
	PeriodHourly    Period = "hourly"
)

// explicit bound formats accepted from callers, tried in order
var explicitLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Resolver turns a named period or explicit bounds into a concrete
// [start, end) window. It is a pure function over its inputs; the clock
// is injectable so window rules can be tested against a fixed instant.
type Resolver struct {
	cfg *config.Config
	now func() time.Time
}

// NewResolver creates a Resolver using the wall clock
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg, now: time.Now}
}

// NewResolverAt creates a Resolver with a fixed clock, for tests
func NewResolverAt(cfg *config.Config, now func() time.Time) *Resolver {
	return &Resolver{cfg: cfg, now: now}
}

// Resolve produces the window for the given period. Explicit bounds, when
// both are supplied, take precedence unconditionally; malformed explicit
// values surface as parse errors with no local recovery.
func (r *Resolver) Resolve(period Period, explicitStart, explicitEnd string) (types.TimeWindow, error) {
	if explicitStart != "" && explicitEnd != "" {
		start, err := r.parseExplicit(explicitStart)
		if err != nil {
			return types.TimeWindow{}, fmt.Errorf("invalid start: %w", err)
		}
		end, err := r.parseExplicit(explicitEnd)
		if err != nil {
			return types.TimeWindow{}, fmt.Errorf("invalid end: %w", err)
		}
		return makeWindow(start, end), nil
	}

	now := r.now().In(r.cfg.Location)
	year, month, day := now.Date()

	switch period {
	case PeriodAfternoon:
		start := time.Date(year, month, day, r.cfg.AfternoonStartHour, 0, 0, 0, r.cfg.Location)
		end := time.Date(year, month, day, r.cfg.AfternoonEndHour, 0, 0, 0, r.cfg.Location)
		return makeWindow(start, end), nil

	case PeriodFullDay:
		start := time.Date(year, month, day, r.cfg.DayStartHour, 0, 0, 0, r.cfg.Location)
		end := time.Date(year, month, day, r.cfg.DayEndHour, 0, 0, 0, r.cfg.Location)
		return makeWindow(start, end), nil

	case PeriodHourly:
		start := time.Date(year, month, day, now.Hour(), 0, 0, 0, r.cfg.Location)
		return makeWindow(start, start.Add(time.Hour)), nil

	default:
		return types.TimeWindow{}, fmt.Errorf("unknown period %q", period)
	}
}

func (r *Resolver) parseExplicit(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range explicitLayouts {
		t, err := time.ParseInLocation(layout, value, r.cfg.Location)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func makeWindow(start, end time.Time) types.TimeWindow {
	return types.TimeWindow{
		Start:    start.Unix(),
		End:      end.Unix(),
		StartISO: start.Format(time.RFC3339),
		EndISO:   end.Format(time.RFC3339),
	}
}
