package focus

import "math"

const churnHorizonMs = 60_000

// Observation is what the calculator needs from one classified sample.
type Observation struct {
	Timestamp  int64
	Positioned bool
	Regression bool
}

// Calculator maintains the rolling focus score.
type Calculator struct {
	t Tuning
}

// NewCalculator returns a calculator using the weights of t.
func NewCalculator(t Tuning) Calculator {
	return Calculator{t: t}
}

// Update folds every observation into st, one step per sample, and returns
// the resulting score. An empty slice leaves the score unchanged.
func (c Calculator) Update(st *State, obs []Observation) float64 {
	for _, o := range obs {
		c.observe(st, o)
	}
	return st.score
}

func (c Calculator) observe(st *State, o Observation) {
	if o.Positioned {
		if old, ok := st.flags.push(o.Regression); ok && old {
			st.flagsRegCnt--
		}
		if o.Regression {
			st.flagsRegCnt++
		}
	}
	if st.hasDwellRef {
		gap := o.Timestamp - st.dwellRef
		if gap < 0 {
			gap = 0
		}
		if old, ok := st.dwells.push(gap); ok {
			st.dwellSum -= old
		}
		st.dwellSum += gap
	}
	st.hasDwellRef = true
	st.dwellRef = o.Timestamp
	st.Samples++

	target := 100 * (c.t.RegressionWeight*c.regressionFactor(st) +
		c.t.DwellWeight*c.dwellFactor(st) +
		c.t.ChurnWeight*c.churnFactor(st, o.Timestamp))
	delta := clamp(target-st.score, -c.t.StepCap, c.t.StepCap)
	st.score = clamp(st.score+delta, 0, 100)
}

// RecordPause registers a pause for the churn factor.
func (c Calculator) RecordPause(st *State, ts int64) {
	st.pauses = append(st.pauses, ts)
}

// RecordResume forgets the dwell reference so the paused interval is not
// counted as dwell time.
func (c Calculator) RecordResume(st *State) {
	st.hasDwellRef = false
}

func (c Calculator) regressionFactor(st *State) float64 {
	rate, _ := st.RegressionRate()
	return 1 - rate
}

func (c Calculator) dwellFactor(st *State) float64 {
	n := st.dwells.len()
	if n == 0 {
		return 1
	}
	avg := float64(st.dwellSum) / float64(n)
	if avg <= 0 {
		return 0
	}
	return clamp(1-math.Abs(math.Log2(avg/c.t.DwellBaselineMs))/c.t.DwellOctaves, 0, 1)
}

func (c Calculator) churnFactor(st *State, now int64) float64 {
	cutoff := now - churnHorizonMs
	kept := st.pauses[:0]
	for _, ts := range st.pauses {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	st.pauses = kept
	k := c.t.ChurnPerMinute
	if len(kept) <= k {
		return 1
	}
	return clamp(1-float64(len(kept)-k)/float64(k), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
