package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"

	"github.com/fogleman/gg"
)

// ErrCellSize is returned for cells too small to draw into.
var ErrCellSize = errors.New("cell size too small")

const (
	MinCellSize = 8
	// Rewards whose magnitude exceeds this are labelled on the cell.
	RewardLabelThreshold = 0.02
	backgroundHex        = "#f9fafb"
	arrowHex             = "#1f2937"
)

// PNG rasterizes the grid: cell fills from the value ramp, the greedy action of each
// open cell as an arrow, and labels for notable rewards.
func PNG(w io.Writer, snap *reinforcement.Snapshot, cellSize int) error {
	if cellSize < MinCellSize {
		return fmt.Errorf("%w: %d < %d", ErrCellSize, cellSize, MinCellSize)
	}

	size := float64(cellSize)
	pad := math.Max(2, size*0.1)
	dc := gg.NewContext(snap.Width*cellSize, snap.Height*cellSize)
	dc.SetHexColor(backgroundHex)
	dc.Clear()

	fills := CellColors(snap)
	for state, fill := range fills {
		x := float64(state%snap.Width) * size
		y := float64(state/snap.Width) * size

		dc.DrawRoundedRectangle(x+pad/2, y+pad/2, size-pad, size-pad, 4)
		dc.SetColor(fill)
		dc.Fill()

		if snap.Cell(state) == grid_world.Empty && snap.HasAction[state] {
			drawArrow(dc, snap.Actions[state], x+size/2, y+size/2, size)
		}
		if r := snap.Rewards[state]; math.Abs(r) > RewardLabelThreshold && snap.Cell(state) != grid_world.Wall {
			dc.SetHexColor(arrowHex)
			dc.DrawStringAnchored(fmt.Sprintf("%+.1f", r), x+pad, y+pad, 0, 1)
		}
	}
	return dc.EncodePNG(w)
}

// drawArrow draws the action centered at (cx,cy); Stay is a dot.
func drawArrow(dc *gg.Context, action grid_world.Action, cx, cy, size float64) {
	dc.SetHexColor(arrowHex)
	dx, dy := action.Offset()
	if dx == 0 && dy == 0 {
		dc.DrawCircle(cx, cy, size*0.08)
		dc.Fill()
		return
	}

	length := size * 0.3
	tipX, tipY := cx+float64(dx)*length, cy+float64(dy)*length
	tailX, tailY := cx-float64(dx)*length, cy-float64(dy)*length
	dc.SetLineWidth(math.Max(1, size*0.06))
	dc.DrawLine(tailX, tailY, tipX, tipY)

	// Two barbs, swept back from the tip.
	head := length * 0.5
	angle := math.Atan2(float64(dy), float64(dx))
	for _, barb := range []float64{angle + 3*math.Pi/4, angle - 3*math.Pi/4} {
		dc.DrawLine(tipX, tipY, tipX+head*math.Cos(barb), tipY+head*math.Sin(barb))
	}
	dc.Stroke()
}
