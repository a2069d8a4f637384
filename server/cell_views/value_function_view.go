package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"gridpolicy/render"
	"gridpolicy/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValueFunction draws the value function as an isometric projection of the 3d
// surface (x, y, value). Each quad spans four adjacent cells.
type ValueFunction struct {
	id      string
	updates <-chan []fastview.EleUpdate

	width, height float64 // canvas size in pixels
	xyscale       float64 // pixels per x or y unit
	zscale        float64 // pixels per value unit
}

const (
	surfaceCellDim = 30.0
	// angle of the x and y axes (30°)
	surfaceAngle = math.Pi / 6
)

var sinAng, cosAng = math.Sin(surfaceAngle), math.Cos(surfaceAngle)

// NewValueFunction sizes the canvas for a grid of the given dimensions.
func NewValueFunction(
	done <-chan struct{},
	grids <-chan Grid,
	gridWidth, gridHeight int,
) (vf *ValueFunction) {
	vf = &ValueFunction{
		id:      "valuefunction",
		width:   float64(gridWidth+gridHeight) * surfaceCellDim * cosAng,
		height:  float64(gridWidth+gridHeight) * surfaceCellDim * sinAng * 2,
		xyscale: surfaceCellDim,
		zscale:  surfaceCellDim * 0.3,
	}
	vf.updates = channerics.Convert(done, grids, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

func (vf *ValueFunction) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * cosAng * vf.xyscale
	sy := (x+y)*sinAng*vf.xyscale - z*vf.zscale
	return sx, sy
}

// Polygon is one projected quad of the surface.
type Polygon struct {
	Id     string
	Points string
	Fill   string

	minX, minY, maxX, maxY float64
}

// surface projects every quad of the grid in back-to-front order, so that later
// polygons correctly obscure earlier ones.
func (vf *ValueFunction) surface(grid Grid) (polys []Polygon) {
	if grid.Width < 2 || grid.Height < 2 {
		return nil
	}

	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, col := range grid.Cells {
		for _, cell := range col {
			minVal = math.Min(minVal, cell.Value)
			maxVal = math.Max(maxVal, cell.Value)
		}
	}

	cells := grid.Cells
	for depth := 0; depth <= grid.Width+grid.Height-4; depth++ {
		for x := 0; x < grid.Width-1; x++ {
			y := depth - x
			if y < 0 || y >= grid.Height-1 {
				continue
			}
			corners := [4]Cell{cells[x][y+1], cells[x][y], cells[x+1][y], cells[x+1][y+1]}
			polys = append(polys, vf.polygon(corners, minVal, maxVal))
		}
	}
	return
}

func (vf *ValueFunction) polygon(corners [4]Cell, minVal, maxVal float64) Polygon {
	poly := Polygon{
		Id:   fmt.Sprintf("%s-%d-%d", vf.id, corners[1].X, corners[1].Y),
		minX: math.Inf(1), minY: math.Inf(1),
		maxX: math.Inf(-1), maxY: math.Inf(-1),
	}

	sum := 0.0
	for i, cell := range corners {
		sx, sy := vf.project(float64(cell.X), float64(cell.Y), cell.Value)
		poly.minX, poly.maxX = math.Min(poly.minX, sx), math.Max(poly.maxX, sx)
		poly.minY, poly.maxY = math.Min(poly.minY, sy), math.Max(poly.maxY, sy)
		if i > 0 {
			poly.Points += " "
		}
		// Truncated to ints to keep the svg small.
		poly.Points += fmt.Sprintf("%d,%d", int(sx), int(sy))
		sum += cell.Value
	}
	poly.Fill = render.Hex(render.ValueColor(sum/4, minVal, maxVal))
	return poly
}

// fit returns the transform that moves the surface's bounding box to the origin and
// shrinks it, if needed, to fit the canvas.
func (vf *ValueFunction) fit(polys []Polygon) string {
	xmin, ymin := math.Inf(1), math.Inf(1)
	xmax, ymax := math.Inf(-1), math.Inf(-1)
	for _, p := range polys {
		xmin, xmax = math.Min(xmin, p.minX), math.Max(xmax, p.maxX)
		ymin, ymax = math.Min(ymin, p.minY), math.Max(ymax, p.maxY)
	}
	if len(polys) == 0 {
		return "translate(0 0)"
	}

	scaler := 1.0
	if xmax > xmin {
		scaler = math.Min(scaler, vf.width/(xmax-xmin))
	}
	if ymax > ymin {
		scaler = math.Min(scaler, vf.height/(ymax-ymin))
	}
	return fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin))
}

func (vf *ValueFunction) onUpdate(grid Grid) (ops []fastview.EleUpdate) {
	polys := vf.surface(grid)
	for _, p := range polys {
		ops = append(ops, fastview.EleUpdate{
			EleId: p.Id,
			Ops: []fastview.Op{
				{Key: "points", Value: p.Points},
				{Key: "fill", Value: p.Fill},
			},
		})
	}
	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops:   []fastview.Op{{Key: "transform", Value: vf.fit(polys)}},
	})
	return
}

// Parse adds the surface's template. The template calls back into the view to lay out
// the initial polygons, so they match later updates by id.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	_, err = t.Funcs(template.FuncMap{
		"surface":    vf.surface,
		"surfaceFit": func(grid Grid) string { return vf.fit(vf.surface(grid)) },
	}).Parse(
		`{{ define "` + name + `" }}
		<div style="padding: 20px;">
			<svg id="` + vf.id + `" xmlns="http://www.w3.org/2000/svg"
				width="` + fmt.Sprintf("%d", int(vf.width)) + `px"
				height="` + fmt.Sprintf("%d", int(vf.height)) + `px"
				style="stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 1;">
				<g id="` + vf.id + `-group" transform="{{ surfaceFit . }}">
				{{ range $poly := surface . }}
					<polygon id="{{ $poly.Id }}" fill="{{ $poly.Fill }}" points="{{ $poly.Points }}"/>
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
