package focus

// Phase is the attention state tracked by the classifier.
type Phase string

// Classifier phases.
const (
	PhaseFocused    Phase = "FOCUSED"
	PhaseDistracted Phase = "DISTRACTED"
	PhaseRegressed  Phase = "REGRESSED"
	PhasePaused     Phase = "PAUSED"
)

// State is the working state of one session.
type State struct {
	hasMark  bool
	markLine int
	markWord int

	hasLast       bool
	lastTimestamp int64
	lastIsSample  bool

	hasDwellRef bool
	dwellRef    int64

	flags       *window[bool]
	flagsRegCnt int
	dwells      *window[int64]
	dwellSum    int64
	pauses      []int64

	score float64

	phase       Phase
	resumePhase Phase
	lowStreak   int
	highStreak  int

	// Counters mirrored onto the session record.
	Regressions int
	WordsRead   int
	Samples     int
	Dropped     int
}

// NewState returns the state of a freshly started session.
func NewState(t Tuning) *State {
	return &State{
		flags:  newWindow[bool](t.WindowSize),
		dwells: newWindow[int64](t.WindowSize),
		score:  t.InitialScore,
		phase:  PhaseFocused,
	}
}

// Score returns the current focus score.
func (s *State) Score() float64 {
	return s.score
}

// Phase returns the current classifier phase.
func (s *State) Phase() Phase {
	return s.phase
}

// Scored reports whether at least one sample went through the calculator.
func (s *State) Scored() bool {
	return s.Samples > 0
}

// RegressionRate returns regressions over positioned samples in the window.
func (s *State) RegressionRate() (rate float64, samples int) {
	samples = s.flags.len()
	if samples == 0 {
		return 0, 0
	}
	return float64(s.flagsRegCnt) / float64(samples), samples
}

// Watermark returns the furthest (line, word) position read so far.
func (s *State) Watermark() (line, word int, ok bool) {
	return s.markLine, s.markWord, s.hasMark
}

// LastTimestamp returns the timestamp of the last committed sample.
func (s *State) LastTimestamp() (int64, bool) {
	return s.lastTimestamp, s.hasLast
}

func (s *State) commit(ts int64, sample bool) {
	s.hasLast = true
	s.lastTimestamp = ts
	s.lastIsSample = sample
}

func (s *State) triggerTimestamp(ts int64) int64 {
	if !s.hasLast {
		return ts
	}
	floor := s.lastTimestamp
	if s.lastIsSample {
		floor++
	}
	if ts < floor {
		return floor
	}
	return ts
}
