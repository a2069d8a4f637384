package fastview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline  = time.Second
	writeDeadline = time.Second
)

// websock serializes reads and writes to the websocket, which allows at most one
// concurrent reader and one concurrent writer.
type websock struct {
	// Semaphores rather than mutexes so that acquisition can time out.
	readSem   chan struct{}
	writeSem  chan struct{}
	conn      *websocket.Conn
	closeOnce sync.Once
}

func newWebSock(conn *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		conn:     conn,
	}
}

// Conn returns the underlying connection, for setup only (e.g. adding handlers).
func (sock *websock) Conn() *websocket.Conn {
	return sock.conn
}

// Close sends a close frame, best effort, and closes the connection. Blocked reads
// return with an error.
func (sock *websock) Close() (err error) {
	sock.closeOnce.Do(func() {
		select {
		case sock.writeSem <- struct{}{}:
			_ = sock.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			<-sock.writeSem
		case <-time.After(writeDeadline):
		}
		err = sock.conn.Close()
	})
	return
}

// Read serializes read operations on the websocket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.conn)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations on the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.conn)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
