package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"gridpolicy/reinforcement"
	"gridpolicy/server/cell_views"
	"gridpolicy/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Element updates arriving within this period are combined into one batch.
const batchPeriod = time.Millisecond * 20

// RootView is the main page: the container for the view components, the controls,
// and the wiring of their update channels.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the views over the snapshot stream. The initial snapshot fixes the
// grid dimensions; later snapshots must match them.
func NewRootView(
	ctx context.Context,
	initial reinforcement.Snapshot,
	snapshots <-chan reinforcement.Snapshot,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[reinforcement.Snapshot, cell_views.Grid]().
		WithContext(ctx).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(done <-chan struct{}, grids <-chan cell_views.Grid) fastview.ViewComponent {
			return cell_views.NewCounter(done, grids)
		}).
		WithView(func(done <-chan struct{}, grids <-chan cell_views.Grid) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, grids)
		}).
		WithView(func(done <-chan struct{}, grids <-chan cell_views.Grid) fastview.ViewComponent {
			return cell_views.NewValueFunction(done, grids, initial.Width, initial.Height)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	return &RootView{
		views:   views,
		updates: fanIn(ctx.Done(), views),
	}, nil
}

// Updates returns the combined ele-update channel of all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with the websocket bootstrap code and
// controls, and returns its name. It also sets up the func-map the child views use.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			return "", parseErr
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<title>Policy iteration</title>
			<link rel="icon" href="data:,">
			<style>
				body { font-family: sans-serif; margin: 16px; }
				button { margin-right: 4px; padding: 4px 12px; }
			</style>
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened");
				};
				ws.onerror = function (event) {
					console.log("WebSocket error: ", event);
				};

				// The server pushes element updates; apply them by id.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data);
					for (const update of items) {
						const ele = document.getElementById(update.id);
						if (ele === null) {
							continue;
						}
						for (const op of update.ops) {
							if (op.key === "textContent") {
								ele.textContent = op.value;
							} else {
								ele.setAttribute(op.key, op.value);
							}
						}
					}
				};

				function command(name) {
					fetch("/api/" + name, { method: "POST" })
						.then(function (resp) { return resp.json(); })
						.then(function (status) {
							document.getElementById("toggle").textContent = status.running ? "Stop" : "Run";
						})
						.catch(function (err) { console.log(name + " failed: ", err); });
				}

				function editReward(state) {
					const input = prompt("Reward for entering state " + state + " (between -1 and 1):");
					if (input === null) {
						return;
					}
					const reward = parseFloat(input);
					if (isNaN(reward)) {
						return;
					}
					fetch("/api/cells/" + state + "/reward", {
						method: "PUT",
						headers: { "Content-Type": "application/json" },
						body: JSON.stringify({ reward: reward }),
					}).catch(function (err) { console.log("set reward failed: ", err); });
				}
			</script>
		</head>
		<body>
			<div>
				<button onclick="command('evaluate')">Evaluate</button>
				<button onclick="command('improve')">Improve</button>
				<button onclick="command('iterate')">Iterate</button>
				<button id="toggle" onclick="command('toggle')">{{ if .Running }}Stop{{ else }}Run{{ end }}</button>
				<button onclick="command('reset')">Reset</button>
			</div>
		` + bodySpec + `
		</body>
	</html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single batched channel.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchPeriod)
}

// batchify collects updates and sends them once per period, keeping only the latest
// update per element id. A partial batch is flushed on the next tick, so the final
// updates of a burst are never held back.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	period time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		var pending []fastview.EleUpdate
		ticks := channerics.NewTicker(done, period)
		flush := func() bool {
			if len(pending) == 0 {
				return true
			}
			select {
			case output <- pending:
				pending = nil
				return true
			case <-done:
				return false
			}
		}

		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				pending = fastview.MergeUpdates(pending, updates)
			case <-ticks:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}
