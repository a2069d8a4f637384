package root_view

import (
	"bytes"
	"context"
	"html/template"
	"testing"
	"time"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"
	"gridpolicy/server/cell_views"
	"gridpolicy/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func text(id, value string) fastview.EleUpdate {
	return fastview.EleUpdate{EleId: id, Ops: []fastview.Op{{Key: fastview.TextContent, Value: value}}}
}

func TestBatchify(t *testing.T) {
	Convey("batchify", t, func() {
		source := make(chan []fastview.EleUpdate)
		batches := batchify(nil, source, time.Millisecond*20)

		Convey("Only the latest update per element is kept", func() {
			source <- []fastview.EleUpdate{text("a", "1"), text("b", "1")}
			source <- []fastview.EleUpdate{text("a", "2")}
			latest := map[string]string{}
			for latest["a"] != "2" {
				for _, update := range <-batches {
					latest[update.EleId] = update.Ops[0].Value
				}
			}
			So(latest, ShouldResemble, map[string]string{"a": "2", "b": "1"})
		})

		Convey("A lone update is flushed without further input", func() {
			source <- []fastview.EleUpdate{text("a", "1")}
			var batch []fastview.EleUpdate
			select {
			case batch = <-batches:
			case <-time.After(5 * time.Second):
			}
			So(batch, ShouldResemble, []fastview.EleUpdate{text("a", "1")})
		})

		Convey("Closing the source flushes the remainder and closes the output", func() {
			source <- []fastview.EleUpdate{text("a", "1")}
			close(source)
			var got []fastview.EleUpdate
			for batch := range batches {
				got = fastview.MergeUpdates(got, batch)
			}
			So(got, ShouldResemble, []fastview.EleUpdate{text("a", "1")})
		})
	})
}

func TestRootView(t *testing.T) {
	Convey("Given a root view over a snapshot stream", t, func() {
		gw := grid_world.NewGridWorld(6, 4)
		agent := reinforcement.NewAgent(gw, 0.9)
		initial := reinforcement.TakeSnapshot(gw, agent)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		snapshots := make(chan reinforcement.Snapshot)
		rv, err := NewRootView(ctx, initial, snapshots)
		So(err, ShouldBeNil)

		Convey("The page renders the controls and every view", func() {
			t := template.New("index.html")
			name, err := rv.Parse(t)
			So(err, ShouldBeNil)
			var buf bytes.Buffer
			So(t.ExecuteTemplate(&buf, name, cell_views.Convert(initial)), ShouldBeNil)

			page := buf.String()
			So(page, ShouldContainSubstring, "<!DOCTYPE html>")
			So(page, ShouldContainSubstring, `id="toggle"`)
			So(page, ShouldContainSubstring, ">Run</button>")
			So(page, ShouldContainSubstring, `id="counter-iterations"`)
			So(page, ShouldContainSubstring, `id="cell-1-rect"`)
			So(page, ShouldContainSubstring, `id="valuefunction-group"`)
		})

		Convey("A snapshot yields updates for all views", func() {
			agent.PolicyIteration()
			snap := reinforcement.TakeSnapshot(gw, agent)
			snap.Iterations = 1
			snapshots <- snap

			ids := map[string]string{}
			deadline := time.After(5 * time.Second)
			timedOut := false
			for !timedOut && (ids["counter-iterations"] == "" || ids["cell-1-value"] == "" || ids["valuefunction-group"] == "") {
				select {
				case batch := <-rv.Updates():
					for _, update := range batch {
						ids[update.EleId] = update.Ops[0].Value
					}
				case <-deadline:
					timedOut = true
				}
			}
			So(timedOut, ShouldBeFalse)
			So(ids["counter-iterations"], ShouldEqual, "1")
		})
	})
}
