package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReadingMode(t *testing.T) {
	mode, err := ParseReadingMode(" focus_mask ")
	require.NoError(t, err)
	assert.Equal(t, ModeFocusMask, mode)

	_, err = ParseReadingMode("sepia")
	assert.Error(t, err)
}

func TestLookupTablesCoverEveryVariant(t *testing.T) {
	for _, mode := range ReadingModes() {
		assert.NotEmpty(t, mode.DisplayName(), mode)
		assert.NotEmpty(t, mode.Description(), mode)
	}
	for _, et := range []EventType{EventDistracted, EventFocused, EventRegressed, EventModeSwitched, EventPaused, EventResumed} {
		assert.True(t, et.Valid())
		assert.NotEmpty(t, et.RecommendedAction(), et)
	}
	assert.Equal(t, "Switch to RSVP mode to reset focus", EventDistracted.RecommendedAction())
	assert.Equal(t, "Re-reading", EventRegressed.DisplayName())
}

func TestDefaultPreferencesValidate(t *testing.T) {
	prefs := DefaultPreferences("u1")
	require.NoError(t, prefs.Validate())
	assert.True(t, prefs.AutoModeSwitch)
	assert.False(t, prefs.WantsFocusMask())

	prefs.DefaultReadingMode = ModeHybrid
	assert.True(t, prefs.WantsFocusMask())

	prefs.RSVPSpeed = 50
	assert.Error(t, prefs.Validate())
}
