package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focusflow/internal/model"
	"github.com/verte-zerg/focusflow/internal/store"
)

func TestBuildReport(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "focusflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Hour)
		end := start.Add(5 * time.Minute)
		score := float64(50 + 10*i)
		sess := model.ReadingSession{
			ID:              string(rune('a' + i)),
			UserID:          "u1",
			DocumentName:    "doc",
			StartTime:       start,
			EndTime:         &end,
			DurationSeconds: 300,
			ReadingMode:     model.ModeNormal,
			WordsRead:       40,
			FocusScore:      &score,
		}
		require.NoError(t, st.SaveSession(ctx, sess))
		_, err := st.AppendFocusEvent(ctx, model.FocusEvent{SessionID: sess.ID, Type: model.EventDistracted, Timestamp: 10, Confidence: 0.5})
		require.NoError(t, err)
	}

	report, err := BuildReport(ctx, st, ReportConfig{UserID: "u1", Last: 2, EventWindow: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.TotalSessions)
	require.Len(t, report.Summary.Sessions, 2)
	assert.Equal(t, "c", report.Summary.Sessions[0].ID, "newest first")
	assert.Equal(t, "b", report.Summary.Sessions[1].ID)
	assert.InDelta(t, 65, report.Summary.AverageFocusScore, 1e-9)
	assert.Len(t, report.Events, 1, "events of the latest session only")
	assert.Equal(t, 1, report.EventCounts[model.EventDistracted])
	assert.Equal(t, 80, report.Breakdown.TotalWords)
}
