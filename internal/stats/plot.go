package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Series is a named run of values on a 0-100 scale.
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultPlotHeight   = 8
	minPlotWidth        = 10
	axisSeparator       = " │ "
	colorReset          = "\x1b[0m"
	terminalWidthBackup = 80
)

var axisLabels = [3]string{"100", "50", "0"}

var palette = []string{"\x1b[36m", "\x1b[35m", "\x1b[33m", "\x1b[32m"}

// PlotWidthFor returns the chart width that fits in totalWidth columns.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	w := totalWidth - axisWidth()
	if w < minPlotWidth {
		return minPlotWidth
	}
	return w
}

func axisWidth() int {
	return runewidth.StringWidth(axisLabels[0]) + runewidth.StringWidth(axisSeparator)
}

// PlotScores draws the series as braille lines against a fixed 0-100 axis.
// A width of 0 fits the terminal.
func PlotScores(w io.Writer, title string, series []Series, width, height int, forceColor bool) error {
	var drawn []Series
	for _, s := range series {
		if len(s.Values) > 0 {
			drawn = append(drawn, s)
		}
	}
	if len(drawn) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	// Each braille cell is 2 dots wide and 4 dots tall.
	grids := make([]*dotGrid, len(drawn))
	for i, s := range drawn {
		g := newDotGrid(width, height)
		values := resample(s.Values, width)
		px, py := -1, -1
		for x, v := range values {
			y := scoreToDot(v, height*4)
			if px < 0 {
				g.set(x*2, y)
			} else {
				line(px, py, x*2, y, g.set)
			}
			px, py = x*2, y
		}
		grids[i] = g
	}

	useColor := shouldUseColor(w, forceColor)
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	labelWidth := runewidth.StringWidth(axisLabels[0])
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = axisLabels[0]
		case height / 2:
			label = axisLabels[1]
		case height - 1:
			label = axisLabels[2]
		}
		var row strings.Builder
		row.WriteString(runewidth.FillLeft(label, labelWidth))
		row.WriteString(axisSeparator)
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i, g := range grids {
				if m := g.cells[y][x]; m != 0 {
					mask |= m
					if owner < 0 {
						owner = i
					}
				}
			}
			ch := rune(0x2800 + int(mask))
			if useColor && owner >= 0 {
				row.WriteString(palette[owner%len(palette)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}

	legend := make([]string, len(drawn))
	for i, s := range drawn {
		legend[i] = fmt.Sprintf("⣿ %s (last %.1f)", s.Name, s.Values[len(s.Values)-1])
		if useColor {
			legend[i] = palette[i%len(palette)] + legend[i] + colorReset
		}
	}
	if _, err := fmt.Fprintln(w, "Legend: "+strings.Join(legend, "  ")); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

type dotGrid struct {
	cells [][]uint8
}

func newDotGrid(width, height int) *dotGrid {
	cells := make([][]uint8, height)
	for i := range cells {
		cells[i] = make([]uint8, width)
	}
	return &dotGrid{cells: cells}
}

// brailleBits maps (x, y) inside a cell to its dot bit.
var brailleBits = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func (g *dotGrid) set(x, y int) {
	cy, cx := y/4, x/2
	if x < 0 || y < 0 || cy >= len(g.cells) || cx >= len(g.cells[cy]) {
		return
	}
	g.cells[cy][cx] |= brailleBits[x%2][y%4]
}

func scoreToDot(v float64, dots int) int {
	v = math.Max(0, math.Min(100, v))
	return int(math.Round((1 - v/100) * float64(dots-1)))
}

// line plots a Bresenham segment.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, sx := abs(x1-x0), 1
	if x1 < x0 {
		sx = -1
	}
	dy, sy := -abs(y1-y0), 1
	if y1 < y0 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; (e2 >= dy && x0 != x1) || y0 == y1 {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// resample stretches or averages values into exactly width points.
func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	n := len(values)
	switch {
	case n == 1:
		for i := range out {
			out[i] = values[0]
		}
	case n >= width:
		for i := range out {
			start, end := i*n/width, (i+1)*n/width
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
	default:
		for i := range out {
			pos := float64(i) * float64(n-1) / float64(width-1)
			idx := int(pos)
			if idx >= n-1 {
				out[i] = values[n-1]
				continue
			}
			frac := pos - float64(idx)
			out[i] = values[idx]*(1-frac) + values[idx+1]*frac
		}
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
