package focus

import (
	"sort"

	"github.com/verte-zerg/focusflow/internal/model"
)

// Pipeline chains the detector, calculator and classifier.
type Pipeline struct {
	tuning     Tuning
	detector   Detector
	calculator Calculator
	classifier Classifier
}

// NewPipeline builds a pipeline from t.
func NewPipeline(t Tuning) *Pipeline {
	return &Pipeline{
		tuning:     t,
		detector:   NewDetector(t),
		calculator: NewCalculator(t),
		classifier: NewClassifier(t),
	}
}

// Tuning returns the pipeline tuning.
func (p *Pipeline) Tuning() Tuning {
	return p.tuning
}

// NewState returns the initial state for a session.
func (p *Pipeline) NewState() *State {
	return NewState(p.tuning)
}

// Admit orders a batch by timestamp and filters it against the last committed
// sample of st. Samples late by at most the reorder slack are clamped to the
// committed timestamp; older ones are dropped and counted in st.Dropped.
func (p *Pipeline) Admit(st *State, batch []model.GazeSample) (accepted []model.GazeSample, dropped int) {
	ordered := make([]model.GazeSample, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp < ordered[j].Timestamp
	})

	accepted = ordered[:0]
	for _, g := range ordered {
		if st.hasLast && g.Timestamp < st.lastTimestamp {
			if st.lastTimestamp-g.Timestamp > p.tuning.ReorderSlackMs {
				dropped++
				continue
			}
			g.Timestamp = st.lastTimestamp
		}
		st.commit(g.Timestamp, true)
		accepted = append(accepted, g)
	}
	st.Dropped += dropped
	return accepted, dropped
}

// Observe runs one admitted sample through the pipeline. It returns the
// sample with its regression flag set and a state-change event, if any.
func (p *Pipeline) Observe(st *State, g model.GazeSample) (model.GazeSample, *model.FocusEvent) {
	g.IsRegression = p.detector.Classify(st, g)
	score := p.calculator.Update(st, []Observation{{
		Timestamp:  g.Timestamp,
		Positioned: g.Positioned(),
		Regression: g.IsRegression,
	}})
	rate, n := st.RegressionRate()
	ev, ok := p.classifier.Step(st, Signal{
		Timestamp:   g.Timestamp,
		Score:       score,
		Rate:        rate,
		RateSamples: n,
	})
	if !ok {
		return g, nil
	}
	return g, &ev
}

// Pause moves st into the paused phase. The event is stamped no earlier than
// the last committed input and strictly after the last committed sample.
func (p *Pipeline) Pause(st *State, ts int64) *model.FocusEvent {
	ts = st.triggerTimestamp(ts)
	ev, ok := p.classifier.Step(st, Signal{Timestamp: ts, Score: st.score, Trigger: TriggerPause})
	if !ok {
		return nil
	}
	st.commit(ts, false)
	p.calculator.RecordPause(st, ts)
	return &ev
}

// Resume returns st to the phase it had before pausing.
func (p *Pipeline) Resume(st *State, ts int64) *model.FocusEvent {
	ts = st.triggerTimestamp(ts)
	ev, ok := p.classifier.Step(st, Signal{Timestamp: ts, Score: st.score, Trigger: TriggerResume})
	if !ok {
		return nil
	}
	st.commit(ts, false)
	p.calculator.RecordResume(st)
	return &ev
}

// Replay rebuilds a state from persisted samples and events. Only PAUSED and
// RESUMED events are inputs; at equal timestamps events go first.
func (p *Pipeline) Replay(samples []model.GazeSample, events []model.FocusEvent) *State {
	st := p.NewState()
	i, j := 0, 0
	for i < len(samples) || j < len(events) {
		if j >= len(events) || (i < len(samples) && samples[i].Timestamp < events[j].Timestamp) {
			g := samples[i]
			i++
			st.commit(g.Timestamp, true)
			p.Observe(st, g)
			continue
		}
		ev := events[j]
		j++
		switch ev.Type {
		case model.EventPaused:
			p.Pause(st, ev.Timestamp)
		case model.EventResumed:
			p.Resume(st, ev.Timestamp)
		}
	}
	return st
}
