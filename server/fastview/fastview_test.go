package fastview

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

// textView writes each view-model into the text of a single element.
type textView struct {
	id      string
	updates chan []EleUpdate
}

func newTextView(id string) ViewBuilderFunc[string] {
	return func(done <-chan struct{}, vms <-chan string) ViewComponent {
		tv := &textView{id: id, updates: make(chan []EleUpdate, 1)}
		go func() {
			defer close(tv.updates)
			for vm := range vms {
				tv.updates <- []EleUpdate{{EleId: tv.id, Ops: []Op{{Key: TextContent, Value: vm}}}}
			}
		}()
		return tv
	}
}

func (tv *textView) Updates() <-chan []EleUpdate {
	return tv.updates
}

func (tv *textView) Parse(t *template.Template) (string, error) {
	_, err := t.New(tv.id).Parse(`<span id="` + tv.id + `"></span>`)
	return tv.id, err
}

func TestViewBuilder(t *testing.T) {
	Convey("ViewBuilder", t, func() {
		Convey("When views and model are given, every view receives each model", func() {
			input := make(chan int)
			views, err := NewViewBuilder[int, string]().
				WithModel(input, strconv.Itoa).
				WithView(newTextView("a")).
				WithView(newTextView("b")).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			input <- 7
			for i, id := range []string{"a", "b"} {
				updates := <-views[i].Updates()
				So(updates, ShouldResemble, []EleUpdate{{EleId: id, Ops: []Op{{Key: TextContent, Value: "7"}}}})
			}

			close(input)
			_, ok := <-views[0].Updates()
			So(ok, ShouldBeFalse)
		})

		Convey("When no view is given", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(make(chan int), strconv.Itoa).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("When no model is given", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(newTextView("a")).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("When the context is cancelled, views close", func() {
			ctx, cancel := context.WithCancel(context.Background())
			views, err := NewViewBuilder[int, string]().
				WithModel(make(chan int), strconv.Itoa).
				WithView(newTextView("a")).
				WithContext(ctx).
				Build()
			So(err, ShouldBeNil)
			cancel()
			_, ok := <-views[0].Updates()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestClient(t *testing.T) {
	Convey("Given a client publishing to a websocket", t, func() {
		updates := make(chan []EleUpdate)
		synced := make(chan error, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cli, err := NewClient[[]EleUpdate](updates, nil, w, r)
			if err != nil {
				synced <- err
				return
			}
			synced <- cli.Sync()
		}))
		defer srv.Close()

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("The last update of a burst is delivered", func() {
			for i := 1; i <= 3; i++ {
				updates <- []EleUpdate{text("n", strconv.Itoa(i))}
			}

			So(conn.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			var got []EleUpdate
			for len(got) == 0 || got[0].Ops[0].Value != "3" {
				So(conn.ReadJSON(&got), ShouldBeNil)
			}
			So(got[0].EleId, ShouldEqual, "n")
		})

		Convey("Closing the updates channel ends the sync", func() {
			close(updates)
			var err error
			returned := false
			select {
			case err = <-synced:
				returned = true
			case <-time.After(5 * time.Second):
			}
			So(returned, ShouldBeTrue)
			So(err, ShouldBeNil)
		})
	})
}

func text(id, value string) EleUpdate {
	return EleUpdate{EleId: id, Ops: []Op{{Key: TextContent, Value: value}}}
}

func TestMergeUpdates(t *testing.T) {
	Convey("MergeUpdates", t, func() {
		merged := MergeUpdates(
			[]EleUpdate{text("a", "1"), text("b", "1")},
			[]EleUpdate{text("c", "2"), text("a", "2")},
		)
		So(merged, ShouldResemble, []EleUpdate{text("a", "2"), text("b", "1"), text("c", "2")})
		So(MergeUpdates(nil, nil), ShouldBeEmpty)
	})
}

func TestHub(t *testing.T) {
	Convey("Given a hub with two subscribers", t, func() {
		hub := NewHub(MergeUpdates)
		source := make(chan []EleUpdate)
		first, unsubFirst := hub.Subscribe()
		second, _ := hub.Subscribe()
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			hub.Run(nil, source)
		}()

		Convey("Each receives every update", func() {
			source <- []EleUpdate{text("a", "1")}
			So(<-first, ShouldResemble, []EleUpdate{text("a", "1")})
			So(<-second, ShouldResemble, []EleUpdate{text("a", "1")})
		})

		Convey("Unread updates are merged, not dropped", func() {
			source <- []EleUpdate{text("a", "1")}
			source <- []EleUpdate{text("b", "2")}
			source <- []EleUpdate{text("a", "3")}
			close(source)
			<-finished
			So(<-first, ShouldResemble, []EleUpdate{text("a", "3"), text("b", "2")})
		})

		Convey("An unsubscribed channel receives nothing further", func() {
			unsubFirst()
			unsubFirst()
			source <- []EleUpdate{text("a", "1")}
			<-second
			stale := false
			select {
			case <-first:
				stale = true
			default:
			}
			So(stale, ShouldBeFalse)
		})

		Convey("Closing the source closes subscribers", func() {
			close(source)
			<-finished
			_, ok := <-first
			So(ok, ShouldBeFalse)
			_, ok = <-second
			So(ok, ShouldBeFalse)
		})
	})
}
