package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/focusflow/internal/model"
)

// Source is the read side of the session store.
type Source interface {
	ListSessionsByUser(ctx context.Context, userID string, opts model.ListOptions) ([]model.ReadingSession, error)
	ListFocusEvents(ctx context.Context, sessionID string) ([]model.FocusEvent, error)
}

// ReportConfig selects the sessions of a report.
type ReportConfig struct {
	UserID string
	Since  *time.Time
	// Last limits the report to the most recent sessions; 0 means all.
	Last int
	// EventWindow is the number of recent sessions whose events are loaded.
	EventWindow int
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Summary     model.AnalyticsSummary
	Breakdown   Breakdown
	Events      []model.FocusEvent
	EventCounts map[model.EventType]int
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src Source, cfg ReportConfig) (Report, error) {
	sessions, err := src.ListSessionsByUser(ctx, cfg.UserID, model.ListOptions{Since: cfg.Since, Limit: cfg.Last})
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Summary:     Summarize(sessions),
		Breakdown:   BuildBreakdown(sessions),
		EventCounts: map[model.EventType]int{},
	}
	window := cfg.EventWindow
	if window <= 0 || window > len(sessions) {
		window = len(sessions)
	}
	for _, s := range sessions[:window] {
		events, err := src.ListFocusEvents(ctx, s.ID)
		if err != nil {
			return Report{}, err
		}
		for _, ev := range events {
			report.EventCounts[ev.Type]++
		}
		report.Events = append(report.Events, events...)
	}
	return report, nil
}
