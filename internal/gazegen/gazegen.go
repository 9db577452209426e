// Package gazegen builds synthetic gaze traces for simulations and tests.
package gazegen

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/focusflow/internal/model"
)

// Segment describes a stretch of reading behavior.
type Segment struct {
	Samples int
	// DwellMs is the mean gap between samples; JitterMs spreads it uniformly.
	DwellMs  int64
	JitterMs int64
	// RegressionPct is the probability that a sample jumps back JumpBack words.
	RegressionPct float64
	JumpBack      int
	// OffTextPct is the probability that a sample carries no text position.
	OffTextPct float64
}

// Preset segments.
var (
	Steady = Segment{Samples: 60, DwellMs: 250, JitterMs: 40}
	Reread = Segment{Samples: 30, DwellMs: 250, JitterMs: 40, RegressionPct: 0.6, JumpBack: 6}
	Drift  = Segment{Samples: 20, DwellMs: 1800, JitterMs: 600, RegressionPct: 0.3, JumpBack: 3, OffTextPct: 0.3}
)

// Generator produces gaze traces over a page of fixed-width lines.
type Generator struct {
	rnd          *rand.Rand
	wordsPerLine int

	ts   int64
	line int
	word int
}

// New returns a Generator seeded with the current time.
func New(wordsPerLine int) *Generator {
	return NewSeeded(time.Now().UnixNano(), wordsPerLine)
}

// NewSeeded returns a deterministic Generator.
func NewSeeded(seed int64, wordsPerLine int) *Generator {
	if wordsPerLine <= 0 {
		wordsPerLine = 12
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed)), wordsPerLine: wordsPerLine}
}

// Generate appends the segments one after another, continuing from where the
// previous call stopped. Timestamps are strictly increasing.
func (g *Generator) Generate(segments ...Segment) []model.GazeSample {
	total := 0
	for _, s := range segments {
		total += s.Samples
	}
	out := make([]model.GazeSample, 0, total)
	for _, s := range segments {
		for i := 0; i < s.Samples; i++ {
			out = append(out, g.next(s))
		}
	}
	return out
}

// Skip moves the clock forward, e.g. across a pause.
func (g *Generator) Skip(d time.Duration) {
	g.ts += d.Milliseconds()
}

// Now returns the timestamp of the last generated sample.
func (g *Generator) Now() int64 {
	return g.ts
}

func (g *Generator) next(s Segment) model.GazeSample {
	g.ts += dwell(g.rnd, s.DwellMs, s.JitterMs)

	if s.OffTextPct > 0 && g.rnd.Float64() < s.OffTextPct {
		return model.GazeSample{
			Timestamp: g.ts,
			X:         g.rnd.Float64() * 1280,
			Y:         g.rnd.Float64() * 800,
		}
	}

	var line, word int
	if s.RegressionPct > 0 && s.JumpBack > 0 && g.rnd.Float64() < s.RegressionPct {
		line, word = g.back(s.JumpBack)
	} else {
		g.advance()
		line, word = g.line, g.word
	}
	return model.GazeSample{
		Timestamp:  g.ts,
		X:          float64(word%g.wordsPerLine)*64 + g.rnd.Float64()*8,
		Y:          float64(line)*24 + g.rnd.Float64()*4,
		LineNumber: &line,
		WordIndex:  &word,
	}
}

func (g *Generator) advance() {
	g.word++
	if g.word >= g.wordsPerLine {
		g.word = 0
		g.line++
	}
}

// back returns a position n words behind the cursor without moving it.
func (g *Generator) back(n int) (line, word int) {
	abs := g.line*g.wordsPerLine + g.word - n
	if abs < 0 {
		abs = 0
	}
	return abs / g.wordsPerLine, abs % g.wordsPerLine
}

func dwell(rnd *rand.Rand, mean, jitter int64) int64 {
	d := mean
	if jitter > 0 {
		d += rnd.Int63n(2*jitter+1) - jitter
	}
	if d < 1 {
		d = 1
	}
	return d
}
