package cell_views

import (
	"fmt"
	"html/template"

	"gridpolicy/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// CellSize is the edge of a grid square in pixels.
const CellSize = 40

// ValuesGrid is the maze as an svg grid: each open cell shows its fill colour, value,
// greedy action and reward label, and is clickable to edit its reward.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	grids <-chan Grid,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, grids, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

func cellEleId(state int, part string) string {
	return fmt.Sprintf("cell-%d-%s", state, part)
}

// onUpdate returns the updates for every open cell; walls never change.
func (vg *ValuesGrid) onUpdate(grid Grid) (ops []fastview.EleUpdate) {
	for _, col := range grid.Cells {
		for _, cell := range col {
			if cell.Wall {
				continue
			}
			ops = append(ops,
				fastview.EleUpdate{
					EleId: cellEleId(cell.State, "rect"),
					Ops:   []fastview.Op{{Key: "fill", Value: cell.Fill}},
				},
				fastview.EleUpdate{
					EleId: cellEleId(cell.State, "value"),
					Ops:   []fastview.Op{{Key: fastview.TextContent, Value: fmt.Sprintf("%.2f", cell.Value)}},
				},
				fastview.EleUpdate{
					EleId: cellEleId(cell.State, "arrow"),
					Ops:   []fastview.Op{{Key: fastview.TextContent, Value: cell.Arrow}},
				},
				fastview.EleUpdate{
					EleId: cellEleId(cell.State, "reward"),
					Ops:   []fastview.Op{{Key: fastview.TextContent, Value: cell.RewardLabel}},
				})
		}
	}
	return
}

// Parse adds the grid's template. Clicking an open cell calls the page's editReward(state).
func (vg *ValuesGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = vg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="` + vg.id + `">
			{{ $size := ` + fmt.Sprint(CellSize) + ` }}
			{{ $pad := 2 }}
			{{ $inner := sub $size (mult $pad 2) }}
			{{ $half := div $size 2 }}
			<svg width="{{ mult $size .Width }}px" height="{{ mult $size .Height }}px"
				style="background: #f9fafb; font-family: sans-serif;">
			{{ range $col := .Cells }}
				{{ range $cell := $col }}
				{{ $x := mult $cell.X $size }}
				{{ $y := mult $cell.Y $size }}
				{{ if $cell.Wall }}
					<rect x="{{ add $x $pad }}" y="{{ add $y $pad }}" width="{{ $inner }}" height="{{ $inner }}"
						rx="4" fill="{{ $cell.Fill }}"/>
				{{ else }}
				<g style="cursor: pointer;" onclick="editReward({{ $cell.State }})">
					<rect id="cell-{{ $cell.State }}-rect"
						x="{{ add $x $pad }}" y="{{ add $y $pad }}" width="{{ $inner }}" height="{{ $inner }}"
						rx="4" fill="{{ $cell.Fill }}"/>
					<text id="cell-{{ $cell.State }}-arrow"
						x="{{ add $x $half }}" y="{{ add $y $half }}"
						font-size="16" text-anchor="middle" dominant-baseline="central"
						>{{ $cell.Arrow }}</text>
					<text id="cell-{{ $cell.State }}-value"
						x="{{ add $x $half }}" y="{{ sub (add $y $size) 5 }}"
						font-size="8" text-anchor="middle"
						>{{ printf "%.2f" $cell.Value }}</text>
					<text id="cell-{{ $cell.State }}-reward"
						x="{{ add $x 5 }}" y="{{ add $y 11 }}"
						font-size="8" fill="#7c2d12"
						>{{ $cell.RewardLabel }}</text>
				</g>
				{{ end }}
				{{ end }}
			{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
