package fastview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second

	// Updates are sent no faster than this; intervening updates are coalesced.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of lost pings tolerated before the peer is considered gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// ErrPongDeadlineExceeded means the peer stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")

// Client publishes updates one way to a browser over a websocket. Updates received
// during a publishing interval are combined by merge and sent as one message; with a
// nil merge only the latest is sent, which suits idempotent updates.
type Client[T any] struct {
	id      uuid.UUID
	updates <-chan T
	merge   func(pending, next T) T
	ws      *websock
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket. On failure the error has already
// been written to the response.
func NewClient[T any](
	updates <-chan T,
	merge func(pending, next T) T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}

	return &Client[T]{
		id:      uuid.New(),
		updates: updates,
		merge:   merge,
		ws:      newWebSock(conn),
		rootCtx: r.Context(),
	}, nil
}

func (cli *Client[T]) ID() string {
	return cli.id.String()
}

// Sync publishes updates until the peer disconnects, the request context is cancelled,
// or the updates channel closes. It returns nil on orderly disconnect.
func (cli *Client[T]) Sync() error {
	log.Printf("client %s connected", cli.id)
	ctx, cancel := context.WithCancel(cli.rootCtx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	// The first routine to finish ends the others.
	run := func(fn func(context.Context) error) func() error {
		return func() error {
			defer cancel()
			return fn(groupCtx)
		}
	}
	group.Go(run(cli.readMessages))
	group.Go(run(cli.pingPong))
	group.Go(run(cli.publish))
	// Reads block in the connection, so closing it is the only way to end them.
	group.Go(func() error {
		<-groupCtx.Done()
		_ = cli.ws.Close()
		return nil
	})

	err := group.Wait()
	if isClosure(err) {
		err = nil
	}
	log.Printf("client %s disconnected: %v", cli.id, err)
	return err
}

func (cli *Client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(conn *websocket.Conn) (err error) {
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				err = fmt.Errorf("ping failed: %w", err)
			}
			return
		})
}

// readMessages drains the peer's messages so that control frames (pongs, close) are
// processed. Read errors are permanent.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(conn *websocket.Conn) (readErr error) {
				_, _, readErr = conn.ReadMessage()
				return
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// publish holds pending updates and writes them on the next publishing tick, so the
// last update of a burst is never lost.
func (cli *Client[T]) publish(ctx context.Context) error {
	ticks := channerics.NewTicker(ctx.Done(), pubResolution)
	var pending *T
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if pending != nil && cli.merge != nil {
				update = cli.merge(*pending, update)
			}
			pending = &update
		case <-ticks:
			if pending == nil {
				continue
			}
			update := *pending
			pending = nil
			if err := cli.send(ctx, update); err != nil {
				return err
			}
		}
	}
}

func (cli *Client[T]) send(ctx context.Context, update T) error {
	return cli.ws.Write(
		ctx,
		func(conn *websocket.Conn) (err error) {
			if err = conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("failed to set deadline: %w", err)
			}
			if err = conn.WriteJSON(update); err != nil {
				err = fmt.Errorf("publish failed: %w", err)
			}
			return
		})
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
