// Package stats contains focus analytics and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/focusflow/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summarize computes the analytics summary of sessions. The average covers
// ended sessions with a focus score and is 0 when there are none. Sessions
// keep their input order.
func Summarize(sessions []model.ReadingSession) model.AnalyticsSummary {
	out := make([]model.ReadingSession, len(sessions))
	copy(out, sessions)
	var sum float64
	var n int
	for _, s := range sessions {
		if s.Ended() && s.FocusScore != nil {
			sum += *s.FocusScore
			n++
		}
	}
	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}
	return model.AnalyticsSummary{
		TotalSessions:     len(sessions),
		AverageFocusScore: avg,
		Sessions:          out,
	}
}

// Breakdown holds totals used by the CLI and dashboard.
type Breakdown struct {
	ModeCounts       map[model.ReadingMode]int
	EndedSessions    int
	ScoredSessions   int
	TotalReading     time.Duration
	TotalWords       int
	TotalRegressions int
	TotalDropped     int
	BestScore        float64
	// Scores are the focus scores of scored sessions, oldest first.
	Scores []float64
}

// RegressionRate returns regressions per word read.
func (b Breakdown) RegressionRate() float64 {
	if b.TotalWords == 0 {
		return 0
	}
	return float64(b.TotalRegressions) / float64(b.TotalWords)
}

// Trend renders the score history as a sparkline.
func (b Breakdown) Trend() string {
	return Sparkline(b.Scores)
}

// BuildBreakdown aggregates sessions in any order.
func BuildBreakdown(sessions []model.ReadingSession) Breakdown {
	b := Breakdown{ModeCounts: map[model.ReadingMode]int{}}
	ordered := Chronological(sessions)
	for _, s := range ordered {
		b.ModeCounts[s.ReadingMode]++
		b.TotalWords += s.WordsRead
		b.TotalRegressions += s.RegressionCount
		b.TotalDropped += s.DroppedSamples
		if !s.Ended() {
			continue
		}
		b.EndedSessions++
		b.TotalReading += time.Duration(s.DurationSeconds) * time.Second
		if s.FocusScore != nil {
			b.ScoredSessions++
			b.Scores = append(b.Scores, *s.FocusScore)
			b.BestScore = math.Max(b.BestScore, *s.FocusScore)
		}
	}
	return b
}

// Chronological returns a copy of sessions ordered by start time.
func Chronological(sessions []model.ReadingSession) []model.ReadingSession {
	out := make([]model.ReadingSession, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// FormatDuration renders d as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	if secs >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// RenderSummary prints the summary block.
func RenderSummary(w io.Writer, summary model.AnalyticsSummary, b Breakdown) error {
	if summary.TotalSessions == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d (%d ended)", summary.TotalSessions, b.EndedSessions),
		fmt.Sprintf("Avg Focus: %.1f", summary.AverageFocusScore),
		fmt.Sprintf("Best Focus: %.1f", b.BestScore),
		fmt.Sprintf("Reading Time: %s", FormatDuration(b.TotalReading)),
		fmt.Sprintf("Words Read: %d", b.TotalWords),
		fmt.Sprintf("Regressions: %d (%.1f%% of words)", b.TotalRegressions, b.RegressionRate()*100),
	}
	if b.TotalDropped > 0 {
		lines = append(lines, fmt.Sprintf("Dropped Samples: %d", b.TotalDropped))
	}
	if trend := b.Trend(); trend != "" {
		lines = append(lines, fmt.Sprintf("Trend: [%s]", trend))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderModeTable prints how many sessions used each reading mode.
func RenderModeTable(w io.Writer, b Breakdown) error {
	var rows [][]string
	for _, mode := range model.ReadingModes() {
		n := b.ModeCounts[mode]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{mode.DisplayName(), fmt.Sprintf("%d", n)})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Reading Modes"); err != nil {
		return err
	}
	return writeTable(w, []string{"Mode", "Sessions"}, rows, map[int]bool{1: true})
}

// SessionRows formats sessions for table display.
func SessionRows(sessions []model.ReadingSession) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		score := "-"
		if s.FocusScore != nil {
			score = fmt.Sprintf("%.1f", *s.FocusScore)
		}
		duration := "open"
		if s.Ended() {
			duration = FormatDuration(time.Duration(s.DurationSeconds) * time.Second)
		}
		rows = append(rows, []string{
			s.StartTime.Local().Format("2006-01-02 15:04"),
			s.DocumentName,
			string(s.ReadingMode),
			duration,
			fmt.Sprintf("%d", s.WordsRead),
			fmt.Sprintf("%d", s.RegressionCount),
			score,
		})
	}
	return rows
}

// SessionHeaders are the column headers of SessionRows.
var SessionHeaders = []string{"Started", "Document", "Mode", "Duration", "Words", "Regr.", "Focus"}

// RenderSessionTable prints one row per session.
func RenderSessionTable(w io.Writer, sessions []model.ReadingSession) error {
	if len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	return writeTable(w, SessionHeaders, SessionRows(sessions), map[int]bool{3: true, 4: true, 5: true, 6: true})
}

// RenderFocusCurve plots smoothed focus scores, oldest first.
func RenderFocusCurve(w io.Writer, b Breakdown, window, totalWidth, height int, useColor bool) error {
	if len(b.Scores) == 0 {
		return nil
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotScores(w, "Focus Curve", []Series{
		{Name: "Focus", Values: MovingAverage(b.Scores, window)},
	}, width, height, useColor)
}

func writeTable(w io.Writer, headers []string, rows [][]string, rightAlign map[int]bool) error {
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderEventTable prints focus events in order. Timestamps are shown as
// offsets from the first event.
func RenderEventTable(w io.Writer, events []model.FocusEvent) error {
	if len(events) == 0 {
		return nil
	}
	origin := events[0].Timestamp
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			fmt.Sprintf("+%.1fs", float64(ev.Timestamp-origin)/1000),
			ev.Type.DisplayName(),
			fmt.Sprintf("%.2f", ev.Confidence),
			ev.TriggerAction,
		})
	}
	if _, err := fmt.Fprintln(w, "Focus Events"); err != nil {
		return err
	}
	return writeTable(w, []string{"At", "Event", "Conf.", "Action"}, rows, map[int]bool{0: true, 2: true})
}
