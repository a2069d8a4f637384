package render

import (
	"errors"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var ErrNoData = errors.New("no data to chart")

// ConvergenceChart writes an html page plotting the evaluation delta of each iteration.
// deltas[i] is the delta after iteration i+1.
func ConvergenceChart(w io.Writer, deltas []float64) error {
	if len(deltas) == 0 {
		return ErrNoData
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Policy iteration convergence",
			Subtitle: "max |V'(s) - V(s)| per iteration",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "delta"}),
	)

	steps := make([]string, 0, len(deltas))
	items := make([]opts.LineData, 0, len(deltas))
	for i, delta := range deltas {
		steps = append(steps, strconv.Itoa(i+1))
		items = append(items, opts.LineData{Value: delta})
	}
	line.SetXAxis(steps).AddSeries("delta", items)

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
