package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focusflow/internal/model"
)

func session(id string, start time.Time, mode model.ReadingMode, score *float64, ended bool) model.ReadingSession {
	s := model.ReadingSession{
		ID:              id,
		UserID:          "u1",
		StartTime:       start,
		ReadingMode:     mode,
		WordsRead:       100,
		RegressionCount: 5,
		FocusScore:      score,
	}
	if ended {
		end := start.Add(10 * time.Minute)
		s.EndTime = &end
		s.DurationSeconds = 600
	}
	return s
}

func ptr(v float64) *float64 { return &v }

func TestSummarizeAveragesEndedScoredSessions(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := []model.ReadingSession{
		session("c", base.Add(2*time.Hour), model.ModeNormal, ptr(80), true),
		session("b", base.Add(time.Hour), model.ModeRSVP, nil, true),
		session("a", base, model.ModeBionic, ptr(60), true),
		session("d", base.Add(3*time.Hour), model.ModeNormal, ptr(10), false),
	}
	summary := Summarize(sessions)
	assert.Equal(t, 4, summary.TotalSessions)
	assert.InDelta(t, 70, summary.AverageFocusScore, 1e-9)
	assert.Equal(t, sessions, summary.Sessions, "summary keeps the input order")
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.TotalSessions)
	assert.Zero(t, summary.AverageFocusScore)
	assert.Empty(t, summary.Sessions)
}

func TestBuildBreakdown(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := BuildBreakdown([]model.ReadingSession{
		session("c", base.Add(2*time.Hour), model.ModeNormal, ptr(90), true),
		session("a", base, model.ModeBionic, ptr(50), true),
		session("b", base.Add(time.Hour), model.ModeNormal, nil, false),
	})
	assert.Equal(t, 2, b.ModeCounts[model.ModeNormal])
	assert.Equal(t, 1, b.ModeCounts[model.ModeBionic])
	assert.Equal(t, 2, b.EndedSessions)
	assert.Equal(t, 2, b.ScoredSessions)
	assert.Equal(t, 20*time.Minute, b.TotalReading)
	assert.Equal(t, 90.0, b.BestScore)
	assert.Equal(t, []float64{50, 90}, b.Scores, "scores are oldest first")
	assert.InDelta(t, 0.05, b.RegressionRate(), 1e-9)
}

func TestMovingAverage(t *testing.T) {
	assert.InDeltaSlice(t, []float64{1, 1.5, 2.5, 3.5}, MovingAverage([]float64{1, 2, 3, 4}, 2), 1e-9)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, " +@", Sparkline([]float64{0, 50, 100}))
	assert.Equal(t, "++", Sparkline([]float64{5, 5}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1:35", FormatDuration(95*time.Second))
	assert.Equal(t, "1:02:05", FormatDuration(3725*time.Second))
}

func TestRenderSummary(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := []model.ReadingSession{
		session("a", base, model.ModeBionic, ptr(60), true),
		session("b", base.Add(time.Hour), model.ModeNormal, ptr(80), true),
	}
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, Summarize(sessions), BuildBreakdown(sessions)))
	out := buf.String()
	for _, want := range []string{"Sessions: 2 (2 ended)", "Avg Focus: 70.0", "Best Focus: 80.0", "Reading Time: 20:00", "Trend: [ @]"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	require.NoError(t, RenderSummary(&buf, Summarize(nil), BuildBreakdown(nil)))
	assert.Equal(t, "No sessions found.", strings.TrimSpace(buf.String()))
}

func TestRenderSessionAndModeTables(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sessions := []model.ReadingSession{
		session("a", base, model.ModeRSVP, ptr(42.31), true),
		session("b", base.Add(time.Hour), model.ModeRSVP, nil, false),
	}
	var buf bytes.Buffer
	require.NoError(t, RenderSessionTable(&buf, sessions))
	require.NoError(t, RenderModeTable(&buf, BuildBreakdown(sessions)))
	out := buf.String()
	for _, want := range []string{"Focus", "42.3", "open", "RSVP Mode", "Reading Modes"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderEventTable(t *testing.T) {
	events := []model.FocusEvent{
		{Type: model.EventRegressed, Timestamp: 2000, Confidence: 0.4, TriggerAction: model.EventRegressed.RecommendedAction()},
		{Type: model.EventModeSwitched, Timestamp: 2000, Confidence: 0.4, TriggerAction: "NORMAL -> BIONIC"},
		{Type: model.EventFocused, Timestamp: 14500, Confidence: 0.8, TriggerAction: model.EventFocused.RecommendedAction()},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderEventTable(&buf, events))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5, buf.String())
	assert.Equal(t, "Focus Events", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], " +0.0s Re-reading"), lines[2])
	assert.Contains(t, lines[3], "NORMAL -> BIONIC")
	assert.True(t, strings.HasPrefix(lines[4], "+12.5s"), lines[4])

	buf.Reset()
	require.NoError(t, RenderEventTable(&buf, nil))
	assert.Zero(t, buf.Len())
}
