package focus

import "github.com/verte-zerg/focusflow/internal/model"

// Trigger is an explicit user action fed to the classifier.
type Trigger int

// Triggers.
const (
	TriggerNone Trigger = iota
	TriggerPause
	TriggerResume
)

// Signal is one classifier input.
type Signal struct {
	Timestamp   int64
	Score       float64
	Rate        float64
	RateSamples int
	Trigger     Trigger
}

// Classifier is the focus-state machine.
type Classifier struct {
	t Tuning
}

// NewClassifier returns a classifier using the thresholds of t.
func NewClassifier(t Tuning) Classifier {
	return Classifier{t: t}
}

// Step applies one signal to st. It returns an event only when the phase
// changes. The returned event has no session id.
func (c Classifier) Step(st *State, s Signal) (model.FocusEvent, bool) {
	switch s.Trigger {
	case TriggerPause:
		if st.phase == PhasePaused {
			return model.FocusEvent{}, false
		}
		st.resumePhase = st.phase
		return c.enter(st, PhasePaused, model.EventPaused, s.Timestamp, 1), true
	case TriggerResume:
		if st.phase != PhasePaused {
			return model.FocusEvent{}, false
		}
		return c.enter(st, st.resumePhase, model.EventResumed, s.Timestamp, 1), true
	}
	if st.phase == PhasePaused {
		return model.FocusEvent{}, false
	}

	if s.Score < c.t.FocusThreshold {
		st.lowStreak++
		st.highStreak = 0
	} else {
		st.highStreak++
		st.lowStreak = 0
	}

	if s.RateSamples >= c.t.MinRateSamples && s.Rate >= c.t.RegressionThreshold {
		if st.phase == PhaseRegressed {
			return model.FocusEvent{}, false
		}
		return c.enter(st, PhaseRegressed, model.EventRegressed, s.Timestamp, s.Rate), true
	}
	if st.lowStreak >= c.t.Hysteresis && st.phase == PhaseFocused {
		conf := clamp((c.t.FocusThreshold-s.Score)/c.t.FocusThreshold, 0, 1)
		return c.enter(st, PhaseDistracted, model.EventDistracted, s.Timestamp, conf), true
	}
	if st.highStreak >= c.t.Hysteresis && st.phase != PhaseFocused {
		return c.enter(st, PhaseFocused, model.EventFocused, s.Timestamp, clamp(s.Score/100, 0, 1)), true
	}
	return model.FocusEvent{}, false
}

func (c Classifier) enter(st *State, phase Phase, typ model.EventType, ts int64, conf float64) model.FocusEvent {
	st.phase = phase
	if phase == PhasePaused || typ == model.EventResumed {
		st.lowStreak, st.highStreak = 0, 0
	}
	return model.FocusEvent{
		Type:          typ,
		Timestamp:     ts,
		Confidence:    clamp(conf, 0, 1),
		TriggerAction: typ.RecommendedAction(),
	}
}
