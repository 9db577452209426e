// Package focus turns ordered gaze samples into regression flags, a focus
// score, and discrete focus-state transitions.
//
// Everything here is pure and single-threaded: callers own a State per session
// and must serialize calls for that session.
package focus

import (
	"fmt"
	"math"
)

// Tuning holds the thresholds and weights of the pipeline.
type Tuning struct {
	// WindowSize is the number of recent samples used for the regression rate
	// and the dwell average.
	WindowSize int
	// SlackWords is the jitter tolerance on the watermark line.
	SlackWords int
	// SlackLines is the jitter tolerance in lines.
	SlackLines int

	RegressionThreshold float64
	// MinRateSamples is the number of positioned samples required before the
	// regression rate can trigger a REGRESSED transition.
	MinRateSamples int
	FocusThreshold float64
	Hysteresis     int

	StepCap      float64
	InitialScore float64

	DwellBaselineMs float64
	DwellOctaves    float64
	ChurnPerMinute  int

	RegressionWeight float64
	DwellWeight      float64
	ChurnWeight      float64

	// ReorderSlackMs is how far behind the last committed sample a late
	// sample may be and still be accepted.
	ReorderSlackMs int64
}

// DefaultTuning returns the default pipeline tuning.
func DefaultTuning() Tuning {
	return Tuning{
		WindowSize:          50,
		SlackWords:          1,
		SlackLines:          0,
		RegressionThreshold: 0.30,
		MinRateSamples:      10,
		FocusThreshold:      40,
		Hysteresis:          2,
		StepCap:             10,
		InitialScore:        100,
		DwellBaselineMs:     250,
		DwellOctaves:        3,
		ChurnPerMinute:      2,
		RegressionWeight:    0.5,
		DwellWeight:         0.3,
		ChurnWeight:         0.2,
		ReorderSlackMs:      50,
	}
}

// Validate checks ranges.
func (t Tuning) Validate() error {
	if t.WindowSize <= 0 {
		return fmt.Errorf("window size must be > 0")
	}
	if t.SlackWords < 0 || t.SlackLines < 0 {
		return fmt.Errorf("regression slack must be >= 0")
	}
	if t.RegressionThreshold <= 0 || t.RegressionThreshold > 1 {
		return fmt.Errorf("regression threshold must be in (0, 1]")
	}
	if t.MinRateSamples < 1 {
		return fmt.Errorf("min rate samples must be >= 1")
	}
	if t.FocusThreshold <= 0 || t.FocusThreshold > 100 {
		return fmt.Errorf("focus threshold must be in (0, 100]")
	}
	if t.Hysteresis < 1 {
		return fmt.Errorf("hysteresis must be >= 1")
	}
	if t.StepCap <= 0 {
		return fmt.Errorf("step cap must be > 0")
	}
	if t.InitialScore < 0 || t.InitialScore > 100 {
		return fmt.Errorf("initial score must be between 0 and 100")
	}
	if t.DwellBaselineMs <= 0 || t.DwellOctaves <= 0 {
		return fmt.Errorf("dwell baseline and octaves must be > 0")
	}
	if t.ChurnPerMinute < 1 {
		return fmt.Errorf("churn per minute must be >= 1")
	}
	sum := t.RegressionWeight + t.DwellWeight + t.ChurnWeight
	if t.RegressionWeight < 0 || t.DwellWeight < 0 || t.ChurnWeight < 0 || math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("score weights must be non-negative and sum to 1 (got %.3f)", sum)
	}
	if t.ReorderSlackMs < 0 {
		return fmt.Errorf("reorder slack must be >= 0")
	}
	return nil
}
