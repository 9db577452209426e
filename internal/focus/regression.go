package focus

import "github.com/verte-zerg/focusflow/internal/model"

// Detector flags backward gaze movement against the reading watermark.
type Detector struct {
	slackWords int
	slackLines int
}

// NewDetector returns a detector using the slack from t.
func NewDetector(t Tuning) Detector {
	return Detector{slackWords: t.SlackWords, slackLines: t.SlackLines}
}

// Classify reports whether g is a regression and advances the watermark of st.
// Samples without a text position are never regressions and leave the
// watermark untouched.
func (d Detector) Classify(st *State, g model.GazeSample) bool {
	if !g.Positioned() {
		return false
	}
	line, word := *g.LineNumber, *g.WordIndex
	if !st.hasMark {
		st.hasMark = true
		st.markLine, st.markWord = line, word
		st.WordsRead++
		return false
	}

	switch {
	case line > st.markLine || (line == st.markLine && word > st.markWord):
		st.markLine, st.markWord = line, word
		st.WordsRead++
		return false
	case line < st.markLine:
		if st.markLine-line > d.slackLines {
			st.Regressions++
			return true
		}
		return false
	default:
		if st.markWord-word > d.slackWords {
			st.Regressions++
			return true
		}
		return false
	}
}
