package cell_views

import (
	"bytes"
	"html/template"
	"strings"
	"testing"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"
	"gridpolicy/render"
	"gridpolicy/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

var testFuncs = template.FuncMap{
	"add":  func(i, j int) int { return i + j },
	"sub":  func(i, j int) int { return i - j },
	"mult": func(i, j int) int { return i * j },
	"div":  func(i, j int) int { return i / j },
}

func testSnapshot(iterations int) reinforcement.Snapshot {
	gw := grid_world.NewGridWorld(20, 10)
	gw.SetReward(gw.PosToState(2, 0), -0.5)
	agent := reinforcement.NewAgent(gw, 0.9)
	for i := 0; i < iterations; i++ {
		agent.PolicyIteration()
	}
	snap := reinforcement.TakeSnapshot(gw, agent)
	snap.Iterations = iterations
	return snap
}

// execute renders the named view template against the grid.
func execute(vc fastview.ViewComponent, grid Grid) string {
	t := template.New("test").Funcs(testFuncs)
	name, err := vc.Parse(t)
	So(err, ShouldBeNil)
	var buf bytes.Buffer
	So(t.ExecuteTemplate(&buf, name, grid), ShouldBeNil)
	return buf.String()
}

func TestConvert(t *testing.T) {
	Convey("Convert", t, func() {
		grid := Convert(testSnapshot(10))
		So(grid.Width, ShouldEqual, 20)
		So(len(grid.Cells), ShouldEqual, 20)
		So(len(grid.Cells[0]), ShouldEqual, 10)
		So(grid.Iterations, ShouldEqual, 10)
		So(grid.Status(), ShouldEqual, "stopped")

		Convey("Cells are indexed [x][y] and carry their state", func() {
			cell := grid.Cells[3][2]
			So(cell.X, ShouldEqual, 3)
			So(cell.Y, ShouldEqual, 2)
			So(cell.State, ShouldEqual, 2*20+3)
		})

		Convey("Walls have a fixed fill and no arrow or label", func() {
			wall := grid.Cells[5][1]
			So(wall.Wall, ShouldBeTrue)
			So(wall.Fill, ShouldEqual, "#334155")
			So(wall.Arrow, ShouldEqual, "")
			So(wall.RewardLabel, ShouldEqual, "")
		})

		Convey("Start and goal have fixed fills and no arrow", func() {
			So(grid.Cells[0][0].Fill, ShouldEqual, render.Hex(render.StartColor))
			So(grid.Cells[0][0].Arrow, ShouldEqual, "")
			goal := grid.Cells[19][9]
			So(goal.Fill, ShouldEqual, render.Hex(render.GoalColor))
			So(goal.RewardLabel, ShouldEqual, "+1.0")
		})

		Convey("Open cells show their action, and only notable rewards", func() {
			So(grid.Cells[18][9].Arrow, ShouldEqual, "→")
			So(grid.Cells[2][0].RewardLabel, ShouldEqual, "-0.5")
			So(grid.Cells[1][0].RewardLabel, ShouldEqual, "")
		})
	})
}

func TestValuesGrid(t *testing.T) {
	Convey("ValuesGrid", t, func() {
		grid := Convert(testSnapshot(5))
		grids := make(chan Grid, 1)
		vg := NewValuesGrid(nil, grids)

		Convey("The template lays out open cells as clickable groups", func() {
			html := execute(vg, grid)
			So(html, ShouldContainSubstring, `id="cell-1-rect"`)
			So(html, ShouldContainSubstring, `id="cell-1-value"`)
			So(html, ShouldContainSubstring, "editReward(")
			// (5,1) is a wall
			So(html, ShouldNotContainSubstring, `id="cell-25-rect"`)
		})

		Convey("Each update covers every open cell", func() {
			open := 0
			for _, col := range grid.Cells {
				for _, cell := range col {
					if !cell.Wall {
						open++
					}
				}
			}
			grids <- grid
			updates := <-vg.Updates()
			So(len(updates), ShouldEqual, 4*open)
			So(updates[0].EleId, ShouldEqual, "cell-0-rect")
			So(updates[0].Ops[0], ShouldResemble, fastview.Op{Key: "fill", Value: grid.Cells[0][0].Fill})
		})
	})
}

func TestValueFunction(t *testing.T) {
	Convey("ValueFunction", t, func() {
		grid := Convert(testSnapshot(20))
		grids := make(chan Grid, 1)
		vf := NewValueFunction(nil, grids, grid.Width, grid.Height)

		Convey("The surface has one polygon per quad of cells", func() {
			polys := vf.surface(grid)
			So(len(polys), ShouldEqual, 19*9)
			ids := map[string]bool{}
			for _, p := range polys {
				ids[p.Id] = true
				So(len(strings.Fields(p.Points)), ShouldEqual, 4)
			}
			So(len(ids), ShouldEqual, len(polys))
		})

		Convey("Updates carry every polygon and the fitting transform", func() {
			grids <- grid
			updates := <-vf.Updates()
			So(len(updates), ShouldEqual, 19*9+1)
			last := updates[len(updates)-1]
			So(last.EleId, ShouldEqual, "valuefunction-group")
			So(last.Ops[0].Value, ShouldStartWith, "scale(")
		})

		Convey("The template ids match the update ids", func() {
			html := execute(vf, grid)
			for _, p := range vf.surface(grid) {
				So(html, ShouldContainSubstring, `id="`+p.Id+`"`)
			}
		})

		Convey("A single row has no surface", func() {
			So(vf.surface(Grid{Width: 3, Height: 1}), ShouldBeEmpty)
		})
	})
}

func TestCounter(t *testing.T) {
	Convey("Counter", t, func() {
		grids := make(chan Grid, 1)
		counter := NewCounter(nil, grids)
		grid := Grid{Iterations: 12, Running: true, Delta: 0.125}

		html := execute(counter, grid)
		So(html, ShouldContainSubstring, `<span id="counter-iterations">12</span>`)
		So(html, ShouldContainSubstring, "running")

		grids <- grid
		updates := <-counter.Updates()
		So(updates, ShouldResemble, []fastview.EleUpdate{
			{EleId: "counter-iterations", Ops: []fastview.Op{{Key: fastview.TextContent, Value: "12"}}},
			{EleId: "counter-status", Ops: []fastview.Op{{Key: fastview.TextContent, Value: "running"}}},
			{EleId: "counter-delta", Ops: []fastview.Op{{Key: fastview.TextContent, Value: "0.125"}}},
		})
	})
}
