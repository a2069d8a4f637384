// cell_views contains views derived from the Grid view-model.
package cell_views

import (
	"fmt"
	"math"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"
	"gridpolicy/render"
)

// Rewards whose magnitude exceeds this are labelled on their cell.
const rewardLabelThreshold = 0.02

// Grid is the view-model shared by all cell views: the snapshot flattened into
// fields that templates and element updates can use directly.
type Grid struct {
	Width, Height int
	// Cells is indexed [x][y], y growing downward as in svg.
	Cells      [][]Cell
	Iterations int
	Running    bool
	Delta      float64
}

// Cell describes one square of the maze.
type Cell struct {
	X, Y  int
	State int
	Value float64
	Fill  string
	// Arrow is the greedy action glyph; empty for walls, start and goal.
	Arrow string
	// RewardLabel is empty unless the reward is notable.
	RewardLabel string
	Wall        bool
}

// Convert transforms a snapshot into the Grid view-model.
func Convert(snap reinforcement.Snapshot) Grid {
	fills := render.CellColors(&snap)
	grid := Grid{
		Width:      snap.Width,
		Height:     snap.Height,
		Cells:      make([][]Cell, snap.Width),
		Iterations: snap.Iterations,
		Running:    snap.Running,
		Delta:      snap.Delta,
	}

	for x := range grid.Cells {
		grid.Cells[x] = make([]Cell, snap.Height)
		for y := range grid.Cells[x] {
			state := y*snap.Width + x
			kind := snap.Cell(state)
			cell := Cell{
				X:     x,
				Y:     y,
				State: state,
				Value: snap.Values[state],
				Fill:  render.Hex(fills[state]),
				Wall:  kind == grid_world.Wall,
			}
			if kind == grid_world.Empty && snap.HasAction[state] {
				cell.Arrow = string(snap.Actions[state].Arrow())
			}
			if r := snap.Rewards[state]; !cell.Wall && math.Abs(r) > rewardLabelThreshold {
				cell.RewardLabel = fmt.Sprintf("%+.1f", r)
			}
			grid.Cells[x][y] = cell
		}
	}
	return grid
}

// Status is the running state as displayed.
func (grid Grid) Status() string {
	if grid.Running {
		return "running"
	}
	return "stopped"
}
