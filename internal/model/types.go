// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ReadingMode is a reading presentation mode.
type ReadingMode string

// Reading modes.
const (
	ModeNormal    ReadingMode = "NORMAL"
	ModeBionic    ReadingMode = "BIONIC"
	ModeRSVP      ReadingMode = "RSVP"
	ModeFocusMask ReadingMode = "FOCUS_MASK"
	ModeHybrid    ReadingMode = "HYBRID"
)

type modeInfo struct {
	displayName string
	description string
}

var readingModes = map[ReadingMode]modeInfo{
	ModeNormal:    {"Normal Reading", "Standard reading experience without assistance"},
	ModeBionic:    {"Bionic Reading", "Enhanced word fixation points for faster processing"},
	ModeRSVP:      {"RSVP Mode", "One word at a time to reduce eye movement"},
	ModeFocusMask: {"Focus Mask", "Highlights current paragraph, dims surrounding text"},
	ModeHybrid:    {"Hybrid Mode", "Combines Bionic Reading with Focus Mask"},
}

// ReadingModes lists every mode in declaration order.
func ReadingModes() []ReadingMode {
	return []ReadingMode{ModeNormal, ModeBionic, ModeRSVP, ModeFocusMask, ModeHybrid}
}

// ParseReadingMode accepts a mode name in any case.
func ParseReadingMode(s string) (ReadingMode, error) {
	mode := ReadingMode(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := readingModes[mode]; !ok {
		return "", fmt.Errorf("unknown reading mode %q", s)
	}
	return mode, nil
}

// Valid reports whether m is a known mode.
func (m ReadingMode) Valid() bool {
	_, ok := readingModes[m]
	return ok
}

// DisplayName returns the human readable mode name.
func (m ReadingMode) DisplayName() string {
	return readingModes[m].displayName
}

// Description returns a one-line description of the mode.
func (m ReadingMode) Description() string {
	return readingModes[m].description
}

// EventType is the kind of a focus event.
type EventType string

// Focus event types.
const (
	EventDistracted   EventType = "DISTRACTED"
	EventFocused      EventType = "FOCUSED"
	EventRegressed    EventType = "REGRESSED"
	EventModeSwitched EventType = "MODE_SWITCHED"
	EventPaused       EventType = "PAUSED"
	EventResumed      EventType = "RESUMED"
)

type eventInfo struct {
	displayName       string
	recommendedAction string
}

var eventTypes = map[EventType]eventInfo{
	EventDistracted:   {"Distracted", "Switch to RSVP mode to reset focus"},
	EventFocused:      {"Focused", "Maintain current reading mode"},
	EventRegressed:    {"Re-reading", "Enable Bionic Reading to improve comprehension"},
	EventModeSwitched: {"Mode Changed", "Mode automatically adjusted"},
	EventPaused:       {"Paused", "Session paused by user"},
	EventResumed:      {"Resumed", "Session resumed"},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// DisplayName returns the human readable event name.
func (t EventType) DisplayName() string {
	return eventTypes[t].displayName
}

// RecommendedAction returns the static action text for the event type.
func (t EventType) RecommendedAction() string {
	return eventTypes[t].recommendedAction
}

// ReadingSession is a single reading session of one user.
type ReadingSession struct {
	ID              string
	UserID          string
	DocumentName    string
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds int
	ReadingMode     ReadingMode
	WordsRead       int
	RegressionCount int
	// FocusScore stays nil until the session ends.
	FocusScore     *float64
	DroppedSamples int
}

// Ended reports whether the session has been closed.
func (s ReadingSession) Ended() bool {
	return s.EndTime != nil
}

// GazeSample is one eye-tracking coordinate.
type GazeSample struct {
	SessionID string
	// Timestamp is in milliseconds.
	Timestamp  int64
	X          float64
	Y          float64
	WordIndex  *int
	LineNumber *int
	// IsRegression is computed server side.
	IsRegression bool
}

// Positioned reports whether the sample carries a text position.
func (g GazeSample) Positioned() bool {
	return g.WordIndex != nil && g.LineNumber != nil
}

// FocusEvent is a transition in reading-attention state.
type FocusEvent struct {
	ID            int64
	SessionID     string
	Type          EventType
	Timestamp     int64
	Confidence    float64
	TriggerAction string
}

// UserPreferences holds per-user reading preferences.
type UserPreferences struct {
	UserID             string
	DefaultReadingMode ReadingMode
	BionicIntensity    int
	RSVPSpeed          int
	BackgroundColor    string
	TextColor          string
	FontSize           int
	FontFamily         string
	FocusMaskEnabled   bool
	AutoModeSwitch     bool
	EyeTrackingEnabled bool
}

// DefaultPreferences returns the preferences a new user starts with.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:             userID,
		DefaultReadingMode: ModeNormal,
		BionicIntensity:    50,
		RSVPSpeed:          250,
		BackgroundColor:    "#FFFFFF",
		TextColor:          "#000000",
		FontSize:           16,
		FontFamily:         "Arial",
		FocusMaskEnabled:   false,
		AutoModeSwitch:     true,
		EyeTrackingEnabled: true,
	}
}

// Validate checks the presentation ranges.
func (p UserPreferences) Validate() error {
	if !p.DefaultReadingMode.Valid() {
		return fmt.Errorf("invalid default reading mode %q", p.DefaultReadingMode)
	}
	if p.BionicIntensity < 0 || p.BionicIntensity > 100 {
		return fmt.Errorf("bionic intensity must be between 0 and 100")
	}
	if p.RSVPSpeed < 100 || p.RSVPSpeed > 1000 {
		return fmt.Errorf("rsvp speed must be between 100 and 1000")
	}
	if p.FontSize < 10 || p.FontSize > 32 {
		return fmt.Errorf("font size must be between 10 and 32")
	}
	return nil
}

// WantsFocusMask reports whether the user already asked for the focus mask.
func (p UserPreferences) WantsFocusMask() bool {
	return p.FocusMaskEnabled || p.DefaultReadingMode == ModeFocusMask || p.DefaultReadingMode == ModeHybrid
}

// ListOptions filters session listings.
type ListOptions struct {
	Since *time.Time
	Limit int
}

// AnalyticsSummary summarizes a user's sessions.
type AnalyticsSummary struct {
	TotalSessions     int
	AverageFocusScore float64
	Sessions          []ReadingSession
}
