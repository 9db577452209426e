package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focusflow/internal/errs"
	"github.com/verte-zerg/focusflow/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "focusflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sess := model.ReadingSession{
		ID:           "s1",
		UserID:       "u1",
		DocumentName: "paper.pdf",
		StartTime:    start,
		ReadingMode:  model.ModeNormal,
	}
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(start))
	assert.Nil(t, got.EndTime)
	assert.Nil(t, got.FocusScore)

	end := start.Add(90 * time.Second)
	score := 72.5
	sess.EndTime = &end
	sess.DurationSeconds = 90
	sess.FocusScore = &score
	sess.WordsRead = 120
	sess.RegressionCount = 4
	sess.DroppedSamples = 2
	sess.ReadingMode = model.ModeBionic
	require.NoError(t, st.SaveSession(ctx, sess))

	got, err = st.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(end))
	require.NotNil(t, got.FocusScore)
	assert.Equal(t, 72.5, *got.FocusScore)
	assert.Equal(t, 120, got.WordsRead)
	assert.Equal(t, 4, got.RegressionCount)
	assert.Equal(t, 2, got.DroppedSamples)
	assert.Equal(t, model.ModeBionic, got.ReadingMode)
}

func TestGetSessionNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListSessionsByUser(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, user := range []string{"u1", "u1", "u2", "u1"} {
		require.NoError(t, st.SaveSession(ctx, model.ReadingSession{
			ID:          string(rune('a' + i)),
			UserID:      user,
			StartTime:   base.Add(time.Duration(i) * time.Hour),
			ReadingMode: model.ModeNormal,
		}))
	}

	all, err := st.ListSessionsByUser(ctx, "u1", model.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"d", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	since := base.Add(30 * time.Minute)
	recent, err := st.ListSessionsByUser(ctx, "u1", model.ListOptions{Since: &since, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "d", recent[0].ID)

	none, err := st.ListSessionsByUser(ctx, "nobody", model.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGazeSamplesAndEvents(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	require.NoError(t, st.SaveSession(ctx, model.ReadingSession{ID: "s1", UserID: "u1", StartTime: time.Now(), ReadingMode: model.ModeNormal}))

	word, line := 3, 1
	samples := []model.GazeSample{
		{SessionID: "s1", Timestamp: 200, X: 1, Y: 2, WordIndex: &word, LineNumber: &line, IsRegression: true},
		{SessionID: "s1", Timestamp: 100, X: 3, Y: 4},
	}
	require.NoError(t, st.AppendGazeSamples(ctx, samples))
	require.NoError(t, st.AppendGazeSamples(ctx, nil))

	got, err := st.ListGazeSamples(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Nil(t, got[0].WordIndex)
	require.NotNil(t, got[1].WordIndex)
	assert.Equal(t, 3, *got[1].WordIndex)
	assert.Equal(t, 1, *got[1].LineNumber)
	assert.True(t, got[1].IsRegression)

	id1, err := st.AppendFocusEvent(ctx, model.FocusEvent{SessionID: "s1", Type: model.EventPaused, Timestamp: 300, Confidence: 1, TriggerAction: "Session paused by user"})
	require.NoError(t, err)
	id2, err := st.AppendFocusEvent(ctx, model.FocusEvent{SessionID: "s1", Type: model.EventRegressed, Timestamp: 150, Confidence: 0.4})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	events, err := st.ListFocusEvents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventRegressed, events[0].Type)
	assert.Equal(t, id1, events[1].ID)
	assert.Equal(t, "Session paused by user", events[1].TriggerAction)
}

func TestCommitBatch(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	sess := model.ReadingSession{ID: "s1", UserID: "u1", StartTime: time.Now(), ReadingMode: model.ModeNormal}
	require.NoError(t, st.SaveSession(ctx, sess))

	sess.ReadingMode = model.ModeBionic
	sess.RegressionCount = 2
	ids, err := st.CommitBatch(ctx,
		[]model.GazeSample{{SessionID: "s1", Timestamp: 100}, {SessionID: "s1", Timestamp: 200, IsRegression: true}},
		[]model.FocusEvent{
			{SessionID: "s1", Type: model.EventRegressed, Timestamp: 200, Confidence: 0.4},
			{SessionID: "s1", Type: model.EventModeSwitched, Timestamp: 200, Confidence: 0.4, TriggerAction: "NORMAL -> BIONIC"},
		},
		sess)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])

	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ModeBionic, got.ReadingMode)
	assert.Equal(t, 2, got.RegressionCount)
}

func TestCommitBatchRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	sess := model.ReadingSession{ID: "s1", UserID: "u1", StartTime: time.Now(), ReadingMode: model.ModeNormal}
	require.NoError(t, st.SaveSession(ctx, sess))

	changed := sess
	changed.ReadingMode = model.ModeBionic
	// The second event references no session, so the foreign key rejects it.
	_, err := st.CommitBatch(ctx,
		[]model.GazeSample{{SessionID: "s1", Timestamp: 100}},
		[]model.FocusEvent{
			{SessionID: "s1", Type: model.EventRegressed, Timestamp: 100, Confidence: 0.4},
			{SessionID: "missing", Type: model.EventModeSwitched, Timestamp: 100, Confidence: 0.4},
		},
		changed)
	require.Error(t, err)

	samples, err := st.ListGazeSamples(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, samples)
	events, err := st.ListFocusEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, events)
	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.ModeNormal, got.ReadingMode)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	_, err := st.GetUserPreferences(ctx, "u1")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	prefs := model.DefaultPreferences("u1")
	prefs.AutoModeSwitch = false
	prefs.DefaultReadingMode = model.ModeHybrid
	require.NoError(t, st.SaveUserPreferences(ctx, prefs))

	got, err := st.GetUserPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, prefs, got)

	prefs.FontSize = 20
	require.NoError(t, st.SaveUserPreferences(ctx, prefs))
	got, err = st.GetUserPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.FontSize)
}
