package cell_views

import (
	"fmt"
	"html/template"
	"strconv"

	"gridpolicy/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Counter shows the iteration count, whether the run loop is active, and the last delta.
type Counter struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewCounter(
	done <-chan struct{},
	grids <-chan Grid,
) (c *Counter) {
	c = &Counter{id: "counter"}
	c.updates = channerics.Convert(done, grids, c.onUpdate)
	return
}

func (c *Counter) Updates() <-chan []fastview.EleUpdate {
	return c.updates
}

func formatDelta(delta float64) string {
	return fmt.Sprintf("%.3g", delta)
}

func (c *Counter) onUpdate(grid Grid) []fastview.EleUpdate {
	text := func(id, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: id,
			Ops:   []fastview.Op{{Key: fastview.TextContent, Value: value}},
		}
	}
	return []fastview.EleUpdate{
		text(c.id+"-iterations", strconv.Itoa(grid.Iterations)),
		text(c.id+"-status", grid.Status()),
		text(c.id+"-delta", formatDelta(grid.Delta)),
	}
}

func (c *Counter) Parse(
	t *template.Template,
) (name string, err error) {
	name = c.id
	_, err = t.Funcs(template.FuncMap{
		"formatDelta": formatDelta,
	}).Parse(
		`{{ define "` + name + `" }}
		<div id="` + c.id + `" style="font-family: sans-serif; margin: 8px 0;">
			Iteration <span id="` + c.id + `-iterations">{{ .Iterations }}</span>
			&middot; <span id="` + c.id + `-status">{{ .Status }}</span>
			&middot; delta <span id="` + c.id + `-delta">{{ formatDelta .Delta }}</span>
		</div>
		{{ end }}`)
	return
}
