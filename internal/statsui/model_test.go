package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focusflow/internal/model"
)

type fakeSource struct {
	sessions []model.ReadingSession
	events   map[string][]model.FocusEvent
	err      error
	calls    int
}

func (f *fakeSource) ListSessionsByUser(_ context.Context, _ string, opts model.ListOptions) ([]model.ReadingSession, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if opts.Limit > 0 && opts.Limit < len(f.sessions) {
		return f.sessions[:opts.Limit], nil
	}
	return f.sessions, nil
}

func (f *fakeSource) ListFocusEvents(_ context.Context, sessionID string) ([]model.FocusEvent, error) {
	return f.events[sessionID], nil
}

func newFake() *fakeSource {
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Minute)
	score := 77.0
	return &fakeSource{
		sessions: []model.ReadingSession{{
			ID: "s1", UserID: "u1", DocumentName: "notes.md", StartTime: start, EndTime: &end,
			DurationSeconds: 720, ReadingMode: model.ModeBionic, WordsRead: 300, RegressionCount: 9, FocusScore: &score,
		}},
		events: map[string][]model.FocusEvent{
			"s1": {{SessionID: "s1", Type: model.EventRegressed, Timestamp: 4200, Confidence: 0.35, TriggerAction: model.EventRegressed.RecommendedAction()}},
		},
	}
}

func TestModelRendersTabs(t *testing.T) {
	src := newFake()
	m := NewModel(src, Config{UserID: "u1", CurveWindow: 3})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	assert.Contains(t, view, "Overview")
	assert.Contains(t, view, "Avg Focus")
	assert.Contains(t, view, "77.0")
	assert.Len(t, strings.Split(view, "\n"), 30)

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabSessions, m.activeTab)
	assert.Contains(t, m.View(), "notes.md")

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabEvents, m.activeTab)
	assert.Contains(t, m.View(), "Re-reading")

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabOverview, m.activeTab)
}

func TestModelCurveWindowKeys(t *testing.T) {
	m := NewModel(newFake(), Config{UserID: "u1", CurveWindow: 1})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'='}})
	assert.Equal(t, 5, m.cfg.CurveWindow)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'='}})
	assert.Equal(t, 10, m.cfg.CurveWindow)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	assert.Equal(t, 5, m.cfg.CurveWindow)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	assert.Equal(t, 1, m.cfg.CurveWindow)
}

func TestModelFilterApply(t *testing.T) {
	src := newFake()
	m := NewModel(src, Config{UserID: "u1", CurveWindow: 1})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	require.True(t, m.filterMode)

	m.filterInputs[0].SetValue("2026-01-15")
	m.filterInputs[1].SetValue("5")
	m.filterInputs[2].SetValue("3")
	calls := src.calls
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.filterMode)
	require.NotNil(t, m.cfg.Since)
	assert.Equal(t, "2026-01-15", m.cfg.Since.Format("2006-01-02"))
	assert.Equal(t, 5, m.cfg.Last)
	assert.Equal(t, 3, m.cfg.CurveWindow)
	assert.Equal(t, calls+1, src.calls)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	m.filterInputs[1].SetValue("-2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.filterMode)
	assert.NotEmpty(t, m.filterError)
}

func TestModelShowsLoadError(t *testing.T) {
	src := newFake()
	src.err = errors.New("database is locked")
	m := NewModel(src, Config{UserID: "u1"})
	m.Update(tea.WindowSizeMsg{Width: 90, Height: 20})
	assert.Contains(t, m.View(), "database is locked")
}

func TestTruncateLine(t *testing.T) {
	assert.Equal(t, "abc", truncateLine("abc", 5))
	assert.Equal(t, "ab...", truncateLine("abcdefgh", 5))
}
