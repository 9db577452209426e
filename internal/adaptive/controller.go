// Package adaptive maps focus transitions onto reading-mode directives.
package adaptive

import (
	"fmt"

	"github.com/verte-zerg/focusflow/internal/model"
)

// Directive asks the client to switch the presentation mode.
type Directive struct {
	From       model.ReadingMode
	To         model.ReadingMode
	Confidence float64
}

// Event renders the directive as a MODE_SWITCHED event.
func (d Directive) Event(sessionID string, ts int64) model.FocusEvent {
	return model.FocusEvent{
		SessionID:     sessionID,
		Type:          model.EventModeSwitched,
		Timestamp:     ts,
		Confidence:    d.Confidence,
		TriggerAction: fmt.Sprintf("%s -> %s", d.From, d.To),
	}
}

// Decide returns the mode the session should move to after ev, if any.
func Decide(ev model.FocusEvent, current model.ReadingMode, prefs model.UserPreferences) (Directive, bool) {
	if !prefs.AutoModeSwitch {
		return Directive{}, false
	}

	var target model.ReadingMode
	switch ev.Type {
	case model.EventDistracted:
		target = model.ModeRSVP
	case model.EventRegressed:
		target = model.ModeBionic
		if prefs.WantsFocusMask() {
			target = model.ModeHybrid
		}
	case model.EventFocused:
		if current == model.ModeNormal {
			return Directive{}, false
		}
		target = prefs.DefaultReadingMode
		if !target.Valid() {
			target = model.ModeNormal
		}
	default:
		return Directive{}, false
	}

	if target == current {
		return Directive{}, false
	}
	return Directive{From: current, To: target, Confidence: ev.Confidence}, true
}
