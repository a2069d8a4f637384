// render draws snapshots of the planner outside the browser: to a terminal, a png,
// or an html convergence chart. The colour scheme is shared with the web views.
package render

import (
	"fmt"
	"image/color"
	"math"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"

	"gonum.org/v1/gonum/floats"
)

var (
	WallColor  = color.RGBA{0x33, 0x41, 0x55, 0xff}
	StartColor = color.RGBA{0x60, 0xa5, 0xfa, 0xff}
	GoalColor  = color.RGBA{0x34, 0xd3, 0x99, 0xff}
	// FlatColor is used for every value when all values are (nearly) equal.
	FlatColor = color.RGBA{0x80, 0x80, 0x80, 0xff}
)

// minRange is the value spread below which no gradient is drawn.
const minRange = 0.001

// ValueColor maps v onto a red-white-green ramp over [min,max]. Values above the
// midpoint shade toward green, the rest toward red.
func ValueColor(v, min, max float64) color.RGBA {
	if max-min < minRange {
		return FlatColor
	}

	n := (v - min) / (max - min)
	if n > 0.5 {
		i := intensity(n - 0.5)
		return color.RGBA{255 - i, 255, 255 - i, 0xff}
	}
	i := intensity(0.5 - n)
	return color.RGBA{255, 255 - i, 255 - i, 0xff}
}

// intensity is in [75,255] for offsets in [0,0.5].
func intensity(offset float64) uint8 {
	i := math.Floor(offset*2*180 + 75)
	return uint8(math.Max(0, math.Min(255, i)))
}

// ValueRange returns the min and max of the values, or zeros if there are none.
func ValueRange(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

// CellColors returns the fill of every state: fixed colours for walls, start and goal,
// the value ramp otherwise.
func CellColors(snap *reinforcement.Snapshot) []color.RGBA {
	min, max := ValueRange(snap.Values)
	fills := make([]color.RGBA, len(snap.Values))
	for state := range fills {
		switch snap.Cell(state) {
		case grid_world.Wall:
			fills[state] = WallColor
		case grid_world.Start:
			fills[state] = StartColor
		case grid_world.Goal:
			fills[state] = GoalColor
		default:
			fills[state] = ValueColor(snap.Values[state], min, max)
		}
	}
	return fills
}

// Hex formats the colour for css and svg attributes.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
