package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"gridpolicy/reinforcement"
	"gridpolicy/server/cell_views"
	"gridpolicy/server/fastview"
	"gridpolicy/server/root_view"
	"gridpolicy/session"

	"github.com/gorilla/mux"
)

const (
	shutdownGracePeriod = 5 * time.Second
	// Rewards set through the api are clamped to this magnitude.
	maxRewardMagnitude = 1.0
	maxBodyBytes       = 4096
)

// Controller is the set of session operations the server exposes.
type Controller interface {
	Evaluate(ctx context.Context) error
	Improve(ctx context.Context) error
	Iterate(ctx context.Context) error
	Toggle(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	SetReward(ctx context.Context, state int, reward float64) error
	Snapshot(ctx context.Context) (reinforcement.Snapshot, error)
	Status() session.Status
}

// Server serves the main page, its websocket, and a small json api for driving the
// session. Any number of pages may be open; each gets its own websocket client fed
// from a shared hub.
type Server struct {
	addr     string
	ctrl     Controller
	rootView *root_view.RootView
	hub      *fastview.Hub[[]fastview.EleUpdate]
	router   *mux.Router
}

// NewServer builds the views over the snapshot stream and starts fanning their updates
// out to clients until ctx is cancelled. The controller must be running, since the
// initial snapshot is requested from it.
func NewServer(
	ctx context.Context,
	addr string,
	ctrl Controller,
	snapshots <-chan reinforcement.Snapshot,
) (*Server, error) {
	initial, err := ctrl.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	rootView, err := root_view.NewRootView(ctx, initial, snapshots)
	if err != nil {
		return nil, err
	}

	hub := fastview.NewHub(fastview.MergeUpdates)
	go hub.Run(ctx.Done(), rootView.Updates())

	server := &Server{
		addr:     addr,
		ctrl:     ctrl,
		rootView: rootView,
		hub:      hub,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/evaluate", server.command(server.ctrl.Evaluate)).Methods(http.MethodPost)
	api.HandleFunc("/improve", server.command(server.ctrl.Improve)).Methods(http.MethodPost)
	api.HandleFunc("/iterate", server.command(server.ctrl.Iterate)).Methods(http.MethodPost)
	api.HandleFunc("/reset", server.command(server.ctrl.Reset)).Methods(http.MethodPost)
	api.HandleFunc("/toggle", server.command(func(ctx context.Context) error {
		_, err := server.ctrl.Toggle(ctx)
		return err
	})).Methods(http.MethodPost)
	api.HandleFunc("/cells/{state:[0-9]+}/reward", server.setReward).Methods(http.MethodPut)
	api.HandleFunc("/snapshot", server.serveSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/status", server.serveStatus).Methods(http.MethodGet)
	return router
}

// Handler returns the server's routes, e.g. for mounting under httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (server *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("serving on http://%s", server.addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

// serveWebsocket subscribes the client to view updates until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := server.hub.Subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(updates, fastview.MergeUpdates, w, r)
	if err != nil {
		log.Println(err)
		return
	}
	if err := cli.Sync(); err != nil {
		log.Printf("client %s: %v", cli.ID(), err)
	}
}

// serveIndex renders the main page from a fresh snapshot, so a page loaded mid-run
// starts from the current state.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := server.ctrl.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, cell_views.Convert(snap)); err != nil {
		log.Printf("render index: %v", err)
		_, _ = w.Write([]byte(err.Error()))
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}

// command runs a session operation and responds with the resulting status.
func (server *Server) command(op func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, server.ctrl.Status())
	}
}

type rewardRequest struct {
	Reward *float64 `json:"reward"`
}

type rewardResponse struct {
	State  int     `json:"state"`
	Reward float64 `json:"reward"`
}

// setReward overrides a cell's reward, clamped to [-1,1].
func (server *Server) setReward(w http.ResponseWriter, r *http.Request) {
	state, err := strconv.Atoi(mux.Vars(r)["state"])
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", session.ErrInvalidState, err))
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body: " + err.Error()})
		return
	}
	if req.Reward == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing reward"})
		return
	}

	reward := math.Max(-maxRewardMagnitude, math.Min(maxRewardMagnitude, *req.Reward))
	if err := server.ctrl.SetReward(r.Context(), state, reward); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewardResponse{State: state, Reward: reward})
}

func (server *Server) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := server.ctrl.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (server *Server) serveStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, server.ctrl.Status())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidState):
		code = http.StatusBadRequest
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
